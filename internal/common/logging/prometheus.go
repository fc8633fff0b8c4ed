package logging

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// PrometheusHook implements zerolog.Hook and prometheus.Collector, counting log lines by level.
type PrometheusHook struct {
	messages *prometheus.CounterVec
}

func NewPrometheusHook() *PrometheusHook {
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jobbench_log_messages_total",
		Help: "Total number of log lines logged by level",
	}, []string{"level"})
	for _, level := range []zerolog.Level{
		zerolog.DebugLevel,
		zerolog.InfoLevel,
		zerolog.WarnLevel,
		zerolog.ErrorLevel,
	} {
		messages.WithLabelValues(level.String())
	}
	return &PrometheusHook{messages: messages}
}

func (h *PrometheusHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level >= zerolog.DebugLevel && level <= zerolog.ErrorLevel {
		h.messages.WithLabelValues(level.String()).Inc()
	}
}

func (h *PrometheusHook) Describe(ch chan<- *prometheus.Desc) {
	h.messages.Describe(ch)
}

func (h *PrometheusHook) Collect(ch chan<- prometheus.Metric) {
	h.messages.Collect(ch)
}

// WithHook returns a Logger that runs hook on every event.
func (l *Logger) WithHook(hook zerolog.Hook) *Logger {
	return l.derive(l.underlying.Hook(hook))
}
