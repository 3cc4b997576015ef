package sensor

import (
	"context"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	tsdb_errors "github.com/prometheus/prometheus/tsdb/errors"

	"github.com/ppanyukov/sensorgen/pkg/config"
	"github.com/ppanyukov/sensorgen/pkg/publish"
	"github.com/ppanyukov/sensorgen/pkg/randval"
)

// Dialer creates the transport handle of one sensor. It must not connect.
type Dialer func(name string, sensor config.SensorConfig) publish.Publisher

// MQTTDialer returns a Dialer creating one MQTT client per sensor
// against the broker in cfg, using the sensor's own credentials.
func MQTTDialer(logger log.Logger, cfg config.MQTTConfig) Dialer {
	return func(name string, sensor config.SensorConfig) publish.Publisher {
		return publish.NewMQTTPublisher(logger, name, publish.MQTTConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: sensor.Username,
			Password: sensor.Password,
			QoS:      cfg.QoS,
		})
	}
}

// Orchestrator runs one Runner per active sensor.
type Orchestrator struct {
	logger log.Logger
	cfg    *config.Config
	dial   Dialer
	codec  publish.Codec
	opts   []RunnerOption
}

// NewOrchestrator creates an Orchestrator. opts are applied to every Runner.
func NewOrchestrator(logger log.Logger, cfg *config.Config, dial Dialer, codec publish.Codec, opts ...RunnerOption) *Orchestrator {
	return &Orchestrator{
		logger: logger,
		cfg:    cfg,
		dial:   dial,
		codec:  codec,
		opts:   opts,
	}
}

// Run starts all active sensors concurrently and blocks until every one
// of them stopped. An active sensor which cannot start is skipped, and a
// failing runner never stops the others. The errors of all failed
// sensors are returned together once all are done.
func (o *Orchestrator) Run(ctx context.Context) error {
	// Sensors draw from sources forked in name order so a fixed seed
	// reproduces every sensor's values.
	src := randval.NewSource(randval.Config{RandSeed: o.cfg.Misc.Seed})

	var (
		runners []*Runner
		active  int

		mu   sync.Mutex
		errs tsdb_errors.MultiError
	)
	for _, name := range o.cfg.SensorNames() {
		sensor := o.cfg.Sensors[name]
		if !sensor.Active {
			level.Info(o.logger).Log("msg", "skipping inactive sensor", "sensor", name)
			continue
		}
		active++

		if sensor.Err != nil {
			level.Error(o.logger).Log("msg", "sensor cannot start, skipping", "sensor", name, "err", sensor.Err)
			errs.Add(errors.Wrapf(sensor.Err, "sensor %s", name))
			continue
		}
		runners = append(runners, o.newRunner(name, sensor, src.Fork()))
	}

	if active == 0 {
		level.Warn(o.logger).Log("msg", "no active sensors")
		return nil
	}

	var wg sync.WaitGroup
	for _, r := range runners {
		wg.Add(1)
		go func(r *Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				mu.Lock()
				errs.Add(err)
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()

	if err := errs.Err(); err != nil {
		return errors.Wrapf(err, "%d of %d sensors failed", len(errs), active)
	}
	return nil
}

func (o *Orchestrator) newRunner(name string, sensor config.SensorConfig, src *randval.Source) *Runner {
	misc := o.cfg.Misc

	var pub publish.Publisher
	if !misc.DryRun {
		pub = o.dial(name, sensor)
	}

	return NewRunner(o.logger, RunnerConfig{
		Name:               name,
		Topic:              o.cfg.MQTT.Topic + name,
		Template:           sensor.Template,
		Wait:               sensor.Wait(),
		Duration:           misc.Duration(),
		TimestampField:     misc.TimestampFieldName,
		TimestampInSeconds: misc.TimestampUnixInSeconds,
		DryRun:             misc.DryRun,
		Verbose:            misc.Verbose,
	}, pub, o.codec, src, o.opts...)
}
