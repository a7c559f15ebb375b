package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters for runs, tasks and handlers. A nil
// or disabled Metrics is a safe no-op, so callers never need to branch.
type Metrics struct {
	enabled bool

	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	tasksExecuted *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec

	handlersFired  prometheus.Counter
	hostsCompleted *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector. Disabled configs produce a no-op
// instance.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "drover"
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		enabled:  true,
		registry: registry,

		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of play runs started",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_completed_total",
			Help:      "Total number of play runs completed",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of play runs in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		tasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_executed_total",
			Help:      "Total number of task applications",
		}, []string{"module", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of task applications in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module"}),

		handlersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handlers_fired_total",
			Help:      "Total number of handler firings",
		}),
		hostsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hosts_completed_total",
			Help:      "Total number of per-host executions",
		}, []string{"state"}),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.tasksExecuted,
		m.taskDuration,
		m.handlersFired,
		m.hostsCompleted,
	)
	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil || !m.enabled {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RunStarted records the start of a play run.
func (m *Metrics) RunStarted() {
	if m == nil || !m.enabled {
		return
	}
	m.runsStarted.Inc()
}

// RunCompleted records a finished play run.
func (m *Metrics) RunCompleted(status string, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.runsCompleted.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// TaskExecuted records one task application.
func (m *Metrics) TaskExecuted(module, status string, d time.Duration) {
	if m == nil || !m.enabled {
		return
	}
	m.tasksExecuted.WithLabelValues(module, status).Inc()
	m.taskDuration.WithLabelValues(module).Observe(d.Seconds())
}

// HandlerFired records one handler firing.
func (m *Metrics) HandlerFired() {
	if m == nil || !m.enabled {
		return
	}
	m.handlersFired.Inc()
}

// HostCompleted records a host reaching a terminal state.
func (m *Metrics) HostCompleted(state string) {
	if m == nil || !m.enabled {
		return
	}
	m.hostsCompleted.WithLabelValues(state).Inc()
}
