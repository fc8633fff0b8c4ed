package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/armadaproject/jobbench/internal/jobbench/lifecycle"
)

const metricsPrefix = "jobbench_"

// Metrics instruments lifecycle transitions. It implements prometheus.Collector and a nil *Metrics records nothing.
type Metrics struct {
	transitions       *prometheus.CounterVec
	transitionErrors  *prometheus.CounterVec
	transitionLatency *prometheus.HistogramVec
	executionDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "job_transitions_total",
				Help: "Lifecycle transitions recorded, by status",
			},
			[]string{"status"},
		),
		transitionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricsPrefix + "job_transition_errors_total",
				Help: "Lifecycle transitions that could not be recorded, by status",
			},
			[]string{"status"},
		),
		transitionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "job_transition_write_seconds",
				Help:    "Latency of lifecycle store writes",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"transition"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricsPrefix + "job_execution_seconds",
				Help:    "Time spent inside the task, by outcome",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"task", "status"},
		),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.transitions.Describe(ch)
	m.transitionErrors.Describe(ch)
	m.transitionLatency.Describe(ch)
	m.executionDuration.Describe(ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.transitions.Collect(ch)
	m.transitionErrors.Collect(ch)
	m.transitionLatency.Collect(ch)
	m.executionDuration.Collect(ch)
}

func (m *Metrics) observeTransition(status lifecycle.Status, latency time.Duration, err error) {
	if m == nil {
		return
	}
	m.transitionLatency.WithLabelValues(string(status)).Observe(latency.Seconds())
	if err != nil {
		m.transitionErrors.WithLabelValues(string(status)).Inc()
		return
	}
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeExecution(task string, status lifecycle.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executionDuration.WithLabelValues(task, string(status)).Observe(elapsed.Seconds())
}
