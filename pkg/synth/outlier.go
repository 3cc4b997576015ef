package synth

import "time"

// Transition is a change of outlier state.
type Transition int

const (
	// None means the state did not change.
	None Transition = iota
	// Entered means Normal -> Outlier.
	Entered
	// Recovered means Outlier -> Normal.
	Recovered
)

func (t Transition) String() string {
	switch t {
	case Entered:
		return "entered"
	case Recovered:
		return "recovered"
	}
	return "none"
}

// Outlier is a two-state (Normal/Outlier) machine. The zero value is Normal.
type Outlier struct {
	active    bool
	startedAt time.Time
}

// Active reports whether the machine is in Outlier state.
func (o *Outlier) Active() bool {
	return o.active
}

// Advance evaluates both transitions once for the current tick.
//
// elapsedSecs is the runner's whole seconds since start and drives the
// trigger: the machine enters Outlier on the first tick observing
// elapsedSecs > 0 && elapsedSecs%every == 0. Recovery uses continuous
// time: once now-startedAt >= duration the machine is Normal again.
// A zero every never triggers.
//
// The trigger is checked before recovery, so a zero duration enters
// and leaves Outlier within the same tick, reported as Recovered.
func (o *Outlier) Advance(elapsedSecs int, now time.Time, every int, duration time.Duration) Transition {
	tr := None

	if !o.active && every > 0 && elapsedSecs > 0 && elapsedSecs%every == 0 {
		o.active = true
		o.startedAt = now
		tr = Entered
	}

	if o.active && now.Sub(o.startedAt) >= duration {
		o.active = false
		o.startedAt = time.Time{}
		tr = Recovered
	}

	return tr
}
