package synth

import (
	"time"

	"github.com/ppanyukov/sensorgen/pkg/randval"
	"github.com/ppanyukov/sensorgen/pkg/template"
)

// Tick is the time of one synthesis cycle.
type Tick struct {
	// ElapsedSecs is the whole number of seconds since the runner started.
	ElapsedSecs int
	// Now is the continuous wall-clock time of the tick.
	Now time.Time
}

// TransitionFunc is told about every outlier state change.
type TransitionFunc func(field string, tr Transition)

// Synthesizer resolves field values for one sensor. It holds that
// sensor's outlier machines and cyclic cursors, keyed by bare field name:
// identically named fields at different depths share state.
//
// A Synthesizer is not safe for concurrent use.
type Synthesizer struct {
	src          *randval.Source
	outliers     map[string]*Outlier
	cursors      map[string]*Cursor
	onTransition TransitionFunc
}

// NewSynthesizer creates a Synthesizer drawing random values from src.
func NewSynthesizer(src *randval.Source) *Synthesizer {
	return &Synthesizer{
		src:      src,
		outliers: make(map[string]*Outlier),
		cursors:  make(map[string]*Cursor),
	}
}

// OnTransition registers fn to be told about outlier state changes.
func (s *Synthesizer) OnTransition(fn TransitionFunc) {
	s.onTransition = fn
}

// Outlier returns the outlier machine of the named field.
func (s *Synthesizer) Outlier(field string) *Outlier {
	o, ok := s.outliers[field]
	if !ok {
		o = &Outlier{}
		s.outliers[field] = o
	}
	return o
}

// Cursor returns the cyclic cursor of the named field.
func (s *Synthesizer) Cursor(field string) *Cursor {
	c, ok := s.cursors[field]
	if !ok {
		c = &Cursor{}
		s.cursors[field] = c
	}
	return c
}

// Field resolves the value of f for this tick. The second result is
// false when nothing is emitted for f, which is the case for a field
// carrying an outlier literal but neither a range nor a cyclic marker.
//
// Branches are applied in order and later ones overwrite earlier ones:
// a cyclic field always emits its sequence even when it has a range.
func (s *Synthesizer) Field(f *template.Field, tick Tick) (interface{}, bool) {
	if f.IsLiteral() {
		return f.Value, true
	}

	var (
		val  interface{}
		emit bool
	)

	if f.Range != nil {
		o := s.Outlier(f.Name)
		if tr := o.Advance(tick.ElapsedSecs, tick.Now, f.OutlierEverySecs, f.OutlierDuration); tr != None && s.onTransition != nil {
			s.onTransition(f.Name, tr)
		}

		if o.Active() && f.HasOutlier {
			val = f.Outlier
		} else {
			val = s.src.Uniform(f.Range.Min, f.Range.Max)
		}
		emit = true
	}

	if f.IsCyclic() {
		val = s.Cursor(f.Name).Next(f.Cyclic)
		emit = true
	}

	return val, emit
}
