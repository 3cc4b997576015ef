package tsdb

import (
	"sort"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/tsdb/labels"
)

// MetricName is the name of every archived series.
const MetricName = "sensorgen_field"

// fieldVal is one numeric leaf of a record.
type fieldVal struct {
	val    float64
	labels labels.Labels
}

func (f fieldVal) Val() float64          { return f.val }
func (f fieldVal) Labels() labels.Labels { return f.labels }

// Archive writes records of concurrent sensor runners through one Writer.
type Archive struct {
	logger log.Logger

	// timestampField is the top level record field not archived.
	timestampField string

	mu      sync.Mutex
	writer  Writer
	dropped int64
}

// NewArchive creates an Archive writing through w. The record's own
// timestamp field is skipped, the tick time is the sample time.
func NewArchive(logger log.Logger, w Writer, timestampField string) *Archive {
	return &Archive{
		logger:         logger,
		timestampField: timestampField,
		writer:         w,
	}
}

// Record archives the numeric and boolean leaves of record at time at.
// Samples the head rejects, such as two records of one sensor within
// the same millisecond, are dropped and logged.
func (a *Archive) Record(sensor string, at time.Time, record map[string]interface{}) {
	vals := Flatten(sensor, record, a.timestampField)

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, v := range vals {
		if err := a.writer.Write(at, v); err != nil {
			a.dropped++
			level.Warn(a.logger).Log("msg", "dropping archived sample", "series", v.Labels().String(), "err", err)
		}
	}
}

// Dropped returns the number of samples which could not be archived.
func (a *Archive) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Close writes the archived samples as a block and closes the writer.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.writer.Flush(); err != nil {
		a.writer.Close()
		return errors.Wrap(err, "flush archive")
	}
	return a.writer.Close()
}

// Flatten returns one Val per numeric or boolean leaf of record, sorted
// by field. Nested fields are named by their dotted path. Strings, nulls
// and sequences are not archived, neither is the top level skip field.
func Flatten(sensor string, record map[string]interface{}, skip string) []Val {
	var out []Val
	flatten(sensor, "", record, skip, &out)
	return out
}

func flatten(sensor, prefix string, m map[string]interface{}, skip string, out *[]Val) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if prefix == "" && k == skip {
			continue
		}
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}

		if nested, ok := m[k].(map[string]interface{}); ok {
			flatten(sensor, path, nested, "", out)
			continue
		}

		f, ok := toFloat(m[k])
		if !ok {
			continue
		}
		*out = append(*out, fieldVal{
			val:    f,
			labels: labels.FromStrings("__name__", MetricName, "sensor", sensor, "field", path),
		})
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
