package synth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// drive ticks the machine every step from start for total and returns
// the elapsed seconds at which each transition happened.
func drive(o *Outlier, every int, duration, step, total time.Duration) (entered, recovered []int) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for d := time.Duration(0); d <= total; d += step {
		elapsed := int(d / time.Second)
		switch o.Advance(elapsed, start.Add(d), every, duration) {
		case Entered:
			entered = append(entered, elapsed)
		case Recovered:
			recovered = append(recovered, elapsed)
		}
	}
	return entered, recovered
}

func TestOutlier_ZeroValueIsNormal(t *testing.T) {
	var o Outlier
	assert.False(t, o.Active())
}

func TestOutlier_TriggersOnEveryBoundary(t *testing.T) {
	var o Outlier
	entered, recovered := drive(&o, 5, 2*time.Second, 250*time.Millisecond, 20*time.Second)

	assert.Equal(t, []int{5, 10, 15, 20}, entered)
	assert.Equal(t, []int{7, 12, 17}, recovered)
	assert.True(t, o.Active())
}

func TestOutlier_NoTriggerWithinDurationWindow(t *testing.T) {
	var o Outlier
	entered, recovered := drive(&o, 5, 7*time.Second, 250*time.Millisecond, 20*time.Second)

	assert.Equal(t, []int{5, 15}, entered)
	assert.Equal(t, []int{12}, recovered)
}

func TestOutlier_FirstTickOfMatchingSecondOnly(t *testing.T) {
	var o Outlier
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, Entered, o.Advance(2, start, 2, time.Second))
	// Same elapsed second seen again while active: nothing happens.
	assert.Equal(t, None, o.Advance(2, start.Add(100*time.Millisecond), 2, time.Second))
	assert.Equal(t, None, o.Advance(2, start.Add(900*time.Millisecond), 2, time.Second))
	assert.Equal(t, Recovered, o.Advance(3, start.Add(time.Second), 2, time.Second))
}

func TestOutlier_RecoveryUsesContinuousTime(t *testing.T) {
	var o Outlier
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	// Entered late in second 4.
	assert.Equal(t, Entered, o.Advance(4, start.Add(4900*time.Millisecond), 4, 2*time.Second))
	// Elapsed seconds advanced by 2 but only 1.2s of real time passed.
	assert.Equal(t, None, o.Advance(6, start.Add(6100*time.Millisecond), 4, 2*time.Second))
	assert.True(t, o.Active())
	assert.Equal(t, Recovered, o.Advance(6, start.Add(6900*time.Millisecond), 4, 2*time.Second))
	assert.False(t, o.Active())
}

func TestOutlier_NeverAtZeroElapsed(t *testing.T) {
	var o Outlier
	assert.Equal(t, None, o.Advance(0, time.Now(), 1, time.Second))
	assert.False(t, o.Active())
}

func TestOutlier_ZeroEveryNeverTriggers(t *testing.T) {
	var o Outlier
	entered, _ := drive(&o, 0, time.Second, time.Second, 10*time.Second)
	assert.Empty(t, entered)
}

func TestOutlier_ZeroDurationRecoversSameTick(t *testing.T) {
	var o Outlier
	assert.Equal(t, Recovered, o.Advance(3, time.Now(), 3, 0))
	assert.False(t, o.Active())
}

func TestOutlier_SlowTicksMaySkipBoundary(t *testing.T) {
	var o Outlier
	entered, _ := drive(&o, 5, time.Second, 3*time.Second, 12*time.Second)
	// Ticks at 0, 3, 6, 9, 12: 5 and 10 are never observed.
	assert.Empty(t, entered)
}

func TestTransition_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "entered", Entered.String())
	assert.Equal(t, "recovered", Recovered.String())
}
