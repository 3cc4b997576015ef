package tsdb

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/pkg/timestamp"
	"github.com/prometheus/prometheus/tsdb"
	"github.com/prometheus/prometheus/tsdb/chunkenc"
)

// NewWriter creates a Writer producing blocks under dir.
func NewWriter(logger log.Logger, dir string) (Writer, error) {
	w := &blockWriterT{
		logger: logger,
		dir:    dir,
	}

	if err := w.reset(); err != nil {
		return nil, err
	}

	return w, nil
}

// blockWriterT buffers samples in an in-memory head and cuts one block
// per Flush. It is not safe for concurrent use.
type blockWriterT struct {
	logger log.Logger
	dir    string

	head     *tsdb.Head
	appender tsdb.Appender

	// pending counts samples appended since the last block was cut.
	pending int64
}

func (w *blockWriterT) Write(t time.Time, v Val) error {
	if _, err := w.appender.Add(v.Labels(), timestamp.FromTime(t), v.Val()); err != nil {
		return errors.Wrap(err, "appender.Add")
	}

	w.pending++
	return nil
}

func (w *blockWriterT) Flush() error {
	// An empty head has no valid time range.
	if w.pending == 0 {
		return nil
	}

	if err := w.cutBlock(); err != nil {
		return err
	}

	if err := w.head.Close(); err != nil {
		return errors.Wrap(err, "close head")
	}

	return w.reset()
}

func (w *blockWriterT) Close() error {
	return w.head.Close()
}

// reset replaces the head with an empty one. No WAL and no registerer:
// the head only lives until the next block is cut.
//
// The head rejects samples older than its max time minus half the chunk
// range. Concurrent sensors append slightly out of order across series,
// so the chunk range is the default block range rather than 1.
func (w *blockWriterT) reset() error {
	h, err := tsdb.NewHead(nil, w.logger, nil, tsdb.DefaultOptions.BlockRanges[0])
	if err != nil {
		return errors.Wrap(err, "tsdb.NewHead")
	}

	w.head = h
	w.appender = h.Appender()
	w.pending = 0
	return nil
}

// cutBlock commits pending samples and writes the head as one block.
func (w *blockWriterT) cutBlock() error {
	if err := w.appender.Commit(); err != nil {
		return errors.Wrap(err, "appender.Commit")
	}

	mint, maxt := w.head.MinTime(), w.head.MaxTime()

	compactor, err := tsdb.NewLeveledCompactor(context.Background(), nil, w.logger, tsdb.DefaultOptions.BlockRanges, chunkenc.NewPool())
	if err != nil {
		return errors.Wrap(err, "create leveled compactor")
	}

	// Block intervals are half-open [mint, maxt), hence maxt+1.
	id, err := compactor.Write(w.dir, w.head, mint, maxt+1, nil)
	if err != nil {
		return errors.Wrap(err, "write block")
	}

	level.Info(w.logger).Log(
		"msg", "block written",
		"dir", w.dir,
		"ulid", id,
		"series", w.head.NumSeries(),
		"samples", w.pending,
		"mint", timestamp.Time(mint),
		"maxt", timestamp.Time(maxt),
	)
	return nil
}
