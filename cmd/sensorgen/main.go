package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/promlog"
	promlogflag "github.com/prometheus/common/promlog/flag"
	"github.com/prometheus/common/version"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/ppanyukov/sensorgen/pkg/config"
	"github.com/ppanyukov/sensorgen/pkg/publish"
	"github.com/ppanyukov/sensorgen/pkg/sensor"
	"github.com/ppanyukov/sensorgen/pkg/tsdb"
)

// args is one place for command-line args
type args struct {
	configPath  string
	dryRun      bool
	verbose     bool
	duration    time.Duration
	seed        int64
	format      string
	httpAddress string
	tsdbDir     string
}

func main() {
	app := kingpin.New("sensorgen", "Synthesizes sensor readings and publishes them to an MQTT broker, one stream per sensor.")
	app.Version(version.Print("sensorgen"))
	app.HelpFlag.Short('h')

	var a args
	app.Arg("config", "JSON or YAML configuration file.").Required().ExistingFileVar(&a.configPath)
	app.Flag("dry-run", "Produce records without publishing them. Overrides misc.dry-run when set.").BoolVar(&a.dryRun)
	app.Flag("verbose", "Log every record and outlier transition. Overrides misc.verbose when set.").Short('v').BoolVar(&a.verbose)
	app.Flag("duration", "How long every sensor runs. Overrides misc.duration when set.").DurationVar(&a.duration)
	app.Flag("seed", "Random seed, 0 for time based. Overrides misc.seed when set.").Int64Var(&a.seed)
	app.Flag("format", "Wire format of published records.").Default(publish.FormatJSON).EnumVar(&a.format, publish.Formats...)
	app.Flag("http-address", "Listen address for /metrics. Disabled when empty.").StringVar(&a.httpAddress)
	app.Flag("tsdb.dir", "Also archive numeric fields as a Prometheus block under this directory. Disabled when empty.").StringVar(&a.tsdbDir)

	var logConfig promlog.Config
	promlogflag.AddFlags(app, &logConfig)

	kingpin.MustParse(app.Parse(os.Args[1:]))
	logger := promlog.New(&logConfig)

	if err := runMain(logger, a); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

func runMain(logger log.Logger, a args) error {
	undo, err := maxprocs.Set(maxprocs.Logger(func(template string, args ...interface{}) {
		level.Debug(logger).Log("msg", fmt.Sprintf(template, args...))
	}))
	defer undo()
	if err != nil {
		level.Warn(logger).Log("msg", "failed to set GOMAXPROCS", "err", err)
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	applyOverrides(cfg, a)

	codec, err := publish.NewCodec(a.format)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		version.NewCollector("sensorgen"),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	opts := []sensor.RunnerOption{sensor.WithMetrics(sensor.NewMetrics(reg))}

	var archive *tsdb.Archive
	if a.tsdbDir != "" {
		if err := os.MkdirAll(a.tsdbDir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", a.tsdbDir)
		}
		w, err := tsdb.NewWriter(log.With(logger, "component", "tsdb"), a.tsdbDir)
		if err != nil {
			return errors.Wrap(err, "tsdb.NewWriter")
		}
		archive = tsdb.NewArchive(logger, w, cfg.Misc.TimestampFieldName)
		opts = append(opts, sensor.WithRecordHook(archive.Record))
	}

	orchestrator := sensor.NewOrchestrator(
		logger,
		cfg,
		sensor.MQTTDialer(log.With(logger, "component", "mqtt"), cfg.MQTT),
		codec,
		opts...,
	)

	level.Info(logger).Log("msg", "starting sensorgen", "version", version.Info(), "sensors", len(cfg.Sensors), "active", len(cfg.ActiveSensorNames()), "duration", cfg.Misc.Duration(), "dry_run", cfg.Misc.DryRun)

	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return orchestrator.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		term := make(chan os.Signal, 1)
		cancel := make(chan struct{})
		signal.Notify(term, os.Interrupt, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case s := <-term:
				level.Info(logger).Log("msg", "received signal, stopping sensors", "signal", s)
			case <-cancel:
			}
			return nil
		}, func(error) {
			signal.Stop(term)
			close(cancel)
		})
	}
	if a.httpAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: a.httpAddress, Handler: mux}

		g.Add(func() error {
			level.Info(logger).Log("msg", "serving metrics", "address", a.httpAddress)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}

	err = g.Run()

	if archive != nil {
		if cerr := archive.Close(); cerr != nil {
			level.Error(logger).Log("msg", "archive not written", "err", cerr)
		}
	}

	if err != nil {
		return err
	}
	level.Info(logger).Log("msg", "all sensors stopped")
	return nil
}

// applyOverrides lets flags win over the configuration file. Flags
// only override when set.
func applyOverrides(cfg *config.Config, a args) {
	if a.dryRun {
		cfg.Misc.DryRun = true
	}
	if a.verbose {
		cfg.Misc.Verbose = true
	}
	if a.duration > 0 {
		secs := a.duration.Seconds()
		cfg.Misc.DurationSecs = &secs
	}
	if a.seed != 0 {
		cfg.Misc.Seed = a.seed
	}
}
