// Package sensor drives synthetic sensors: one Runner per sensor ticks
// its template on a fixed interval for a bounded duration, and the
// Orchestrator runs all active sensors concurrently.
package sensor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"github.com/prometheus/prometheus/pkg/timestamp"

	"github.com/ppanyukov/sensorgen/pkg/publish"
	"github.com/ppanyukov/sensorgen/pkg/randval"
	"github.com/ppanyukov/sensorgen/pkg/synth"
	"github.com/ppanyukov/sensorgen/pkg/template"
)

// State is the lifecycle state of a Runner.
type State int32

// Runner states. A Runner only moves forward.
const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return "idle"
}

// RunnerConfig is everything a Runner needs to know about its sensor.
type RunnerConfig struct {
	Name     string
	Topic    string
	Template *template.Template

	// Wait is the sleep between ticks, Duration bounds the whole run.
	Wait     time.Duration
	Duration time.Duration

	TimestampField     string
	TimestampInSeconds bool

	// DryRun produces records but never connects nor publishes.
	DryRun bool

	// Verbose logs every record and outlier transition.
	Verbose bool
}

// RecordHook is handed every produced record with its tick time, in dry
// run too. Hooks of different runners may be called concurrently.
type RecordHook func(sensor string, at time.Time, record map[string]interface{})

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecordHook registers fn to inspect produced records.
func WithRecordHook(fn RecordHook) RunnerOption {
	return func(r *Runner) { r.hook = fn }
}

// WithMetrics makes the Runner count into m.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

// WithClock replaces time.Now and the inter-tick sleep. sleep returns
// false when the run must stop.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) bool) RunnerOption {
	return func(r *Runner) {
		r.now = now
		r.sleep = sleep
	}
}

// Runner drives one sensor. It owns the sensor's synthesis state and
// transport handle, so no two runners share mutable state.
type Runner struct {
	logger  log.Logger
	cfg     RunnerConfig
	pub     publish.Publisher
	codec   publish.Codec
	synth   *synth.Synthesizer
	metrics *Metrics
	hook    RecordHook
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) bool

	state int32
}

// NewRunner creates an idle Runner. pub may be nil in dry run.
func NewRunner(logger log.Logger, cfg RunnerConfig, pub publish.Publisher, codec publish.Codec, src *randval.Source, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: log.With(logger, "sensor", cfg.Name),
		cfg:    cfg,
		pub:    pub,
		codec:  codec,
		synth:  synth.NewSynthesizer(src),
		now:    time.Now,
		sleep:  sleepCtx,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = NewMetrics(nil)
	}
	if r.cfg.Template == nil {
		r.cfg.Template = &template.Template{}
	}

	r.synth.OnTransition(r.onTransition)
	return r
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

// Run ticks until Duration has passed since start or ctx is done. A
// Runner runs once. Transport failures are logged and counted; only a
// record that cannot be encoded stops the run with an error.
func (r *Runner) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.state, int32(Idle), int32(Running)) {
		return errors.Errorf("sensor %s: runner is %s", r.cfg.Name, r.State())
	}
	defer atomic.StoreInt32(&r.state, int32(Stopped))

	r.metrics.runnersRunning.Inc()
	defer r.metrics.runnersRunning.Dec()

	r.debugOrInfo().Log("msg", "runner started", "topic", r.cfg.Topic, "wait", r.cfg.Wait, "duration", r.cfg.Duration, "dry_run", r.cfg.DryRun)
	defer r.debugOrInfo().Log("msg", "runner stopped")

	if !r.cfg.DryRun {
		if err := r.pub.Connect(ctx); err != nil {
			r.metrics.connectFailures.WithLabelValues(r.cfg.Name).Inc()
			level.Error(r.logger).Log("msg", "connect failed, records will not be delivered", "err", err)
		}
		defer r.pub.Close()
	}

	startedAt := r.now()
	for ctx.Err() == nil {
		now := r.now()
		elapsed := now.Sub(startedAt)
		if elapsed >= r.cfg.Duration {
			break
		}

		if err := r.tick(now, elapsed); err != nil {
			level.Error(r.logger).Log("msg", "tick failed, stopping runner", "err", err)
			return errors.Wrapf(err, "sensor %s", r.cfg.Name)
		}

		if !r.sleep(ctx, r.cfg.Wait) {
			break
		}
	}

	return nil
}

func (r *Runner) tick(now time.Time, elapsed time.Duration) error {
	record := r.synth.Record(r.cfg.Template, synth.Tick{
		ElapsedSecs: int(elapsed / time.Second),
		Now:         now,
	})
	record[r.cfg.TimestampField] = r.timestamp(now)

	payload, err := r.codec.Encode(record)
	if err != nil {
		return err
	}
	r.metrics.recordsProduced.WithLabelValues(r.cfg.Name).Inc()

	if r.cfg.Verbose {
		if r.codec.Name() == publish.FormatJSON {
			level.Info(r.logger).Log("msg", "record", "topic", r.cfg.Topic, "payload", string(payload))
		} else {
			level.Info(r.logger).Log("msg", "record", "topic", r.cfg.Topic, "record", fmt.Sprint(record))
		}
	}
	if r.hook != nil {
		r.hook(r.cfg.Name, now, record)
	}

	if r.cfg.DryRun {
		return nil
	}

	if err := r.pub.Publish(r.cfg.Topic, payload); err != nil {
		r.metrics.publishFailures.WithLabelValues(r.cfg.Name).Inc()
		level.Error(r.logger).Log("msg", "publish failed", "err", err)
	}
	return nil
}

func (r *Runner) timestamp(now time.Time) int64 {
	if r.cfg.TimestampInSeconds {
		return now.Round(time.Second).Unix()
	}
	return timestamp.FromTime(now)
}

func (r *Runner) onTransition(field string, tr synth.Transition) {
	r.metrics.outlierTransitions.WithLabelValues(r.cfg.Name, field, tr.String()).Inc()
	if r.cfg.Verbose {
		level.Info(r.logger).Log("msg", "outlier state changed", "field", field, "transition", tr)
	}
}

func (r *Runner) debugOrInfo() log.Logger {
	if r.cfg.Verbose {
		return level.Info(r.logger)
	}
	return level.Debug(r.logger)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
