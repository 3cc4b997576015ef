package tsdb

import (
	"time"

	"github.com/prometheus/prometheus/tsdb/labels"
)

// Val is one sample value with the labels of its series.
type Val interface {
	Val() float64
	Labels() labels.Labels
}

// Writer buffers samples and writes them out as Prometheus blocks.
type Writer interface {
	// Write buffers one sample at time t.
	Write(t time.Time, v Val) error

	// Flush writes the buffered samples as one block. A Writer with
	// nothing buffered writes nothing.
	Flush() error

	// Close releases the buffer without writing it.
	Close() error
}
