package tsdb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	samples []sample
	flushed bool
	closed  bool
	failAt  int
}

type sample struct {
	t      time.Time
	series string
	val    float64
}

func (w *memWriter) Write(t time.Time, v Val) error {
	if w.failAt > 0 && len(w.samples)+1 == w.failAt {
		w.failAt = 0
		return assert.AnError
	}
	w.samples = append(w.samples, sample{t: t, series: v.Labels().String(), val: v.Val()})
	return nil
}

func (w *memWriter) Flush() error { w.flushed = true; return nil }
func (w *memWriter) Close() error { w.closed = true; return nil }

func TestFlatten(t *testing.T) {
	vals := Flatten("room1", map[string]interface{}{
		"timestamp": int64(1700000000000),
		"temp":      21.5,
		"count":     3,
		"on":        true,
		"mode":      "A",
		"seq":       []interface{}{1, 2},
		"none":      nil,
		"env":       map[string]interface{}{"hum": int64(40), "inner": map[string]interface{}{"off": false}},
	}, "timestamp")

	var got []string
	var vs []float64
	for _, v := range vals {
		got = append(got, v.Labels().Get("field"))
		vs = append(vs, v.Val())
		assert.Equal(t, MetricName, v.Labels().Get("__name__"))
		assert.Equal(t, "room1", v.Labels().Get("sensor"))
	}

	assert.Equal(t, []string{"count", "env.hum", "env.inner.off", "on", "temp"}, got)
	assert.Equal(t, []float64{3, 40, 0, 1, 21.5}, vs)
}

func TestFlatten_SkipOnlyAtTopLevel(t *testing.T) {
	vals := Flatten("s", map[string]interface{}{
		"ts": 1,
		"n":  map[string]interface{}{"ts": 2},
	}, "ts")

	require.Len(t, vals, 1)
	assert.Equal(t, "n.ts", vals[0].Labels().Get("field"))
}

func TestArchive_RecordAndClose(t *testing.T) {
	w := &memWriter{}
	a := NewArchive(nopLogger(), w, "timestamp")
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	a.Record("s1", at, map[string]interface{}{"timestamp": 1, "v": 2.5})
	a.Record("s2", at.Add(time.Second), map[string]interface{}{"timestamp": 2, "v": 3})

	require.Len(t, w.samples, 2)
	assert.Equal(t, at, w.samples[0].t)
	assert.Equal(t, 2.5, w.samples[0].val)
	assert.Contains(t, w.samples[1].series, `sensor="s2"`)

	require.NoError(t, a.Close())
	assert.True(t, w.flushed)
	assert.True(t, w.closed)
}

func TestArchive_DropsRejectedSamples(t *testing.T) {
	w := &memWriter{failAt: 1}
	a := NewArchive(nopLogger(), w, "timestamp")

	a.Record("s1", time.Now(), map[string]interface{}{"a": 1, "b": 2})

	assert.Equal(t, int64(1), a.Dropped())
	require.Len(t, w.samples, 1)
	assert.Contains(t, w.samples[0].series, `field="b"`)
}
