package sensor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the runner counters, labelled by sensor name.
type Metrics struct {
	recordsProduced    *prometheus.CounterVec
	publishFailures    *prometheus.CounterVec
	connectFailures    *prometheus.CounterVec
	outlierTransitions *prometheus.CounterVec
	runnersRunning     prometheus.Gauge
}

// NewMetrics creates the metrics and registers them with reg unless
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recordsProduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorgen_records_produced_total",
			Help: "Total records synthesized.",
		}, []string{"sensor"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorgen_publish_failures_total",
			Help: "Total records which could not be published.",
		}, []string{"sensor"}),
		connectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorgen_connect_failures_total",
			Help: "Total failed broker connection attempts.",
		}, []string{"sensor"}),
		outlierTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sensorgen_outlier_transitions_total",
			Help: "Total outlier state changes per field.",
		}, []string{"sensor", "field", "transition"}),
		runnersRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorgen_runners_running",
			Help: "Number of sensor runners currently running.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.recordsProduced,
			m.publishFailures,
			m.connectFailures,
			m.outlierTransitions,
			m.runnersRunning,
		)
	}

	return m
}
