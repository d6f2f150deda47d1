// Package metrics exposes the coordination instruments on a dedicated
// Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Label values for the status label
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics holds the instruments recorded by the coordinator
type Metrics struct {
	registry *prometheus.Registry

	// coordinationTimer records wall-clock duration of every Submit call,
	// tagged with the outcome and (on failure) the failure class
	coordinationTimer *prometheus.HistogramVec

	// setJobEnvironmentTimer records the duration of the runtime-binding
	// write, tagged likewise
	setJobEnvironmentTimer *prometheus.HistogramVec

	// userLimitRejections counts user-quota rejections, tagged by user and
	// the limit in force
	userLimitRejections *prometheus.CounterVec
}

// New creates the metrics set on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		coordinationTimer: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_jobs_coordination_duration_seconds",
				Help:    "Duration of the job coordination pipeline per submission.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status", "error"},
		),
		setJobEnvironmentTimer: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "conductor_jobs_set_job_environment_duration_seconds",
				Help:    "Duration of persisting the runtime binding for a job.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status", "error"},
		),
		userLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "conductor_jobs_rejected_user_limit_total",
				Help: "Submissions rejected because the user's active-job limit was reached.",
			},
			[]string{"user", "limit"},
		),
	}

	m.registry.MustRegister(
		m.coordinationTimer,
		m.setJobEnvironmentTimer,
		m.userLimitRejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveCoordination records one Submit call. errorKind is empty on success.
func (m *Metrics) ObserveCoordination(d time.Duration, errorKind string) {
	status := StatusSuccess
	if errorKind != "" {
		status = StatusFailure
	}
	m.coordinationTimer.WithLabelValues(status, errorKind).Observe(d.Seconds())
}

// ObserveSetJobEnvironment records one runtime-binding write
func (m *Metrics) ObserveSetJobEnvironment(d time.Duration, errorKind string) {
	status := StatusSuccess
	if errorKind != "" {
		status = StatusFailure
	}
	m.setJobEnvironmentTimer.WithLabelValues(status, errorKind).Observe(d.Seconds())
}

// IncUserLimitExceeded counts one user-quota rejection
func (m *Metrics) IncUserLimitExceeded(user string, limit int) {
	m.userLimitRejections.WithLabelValues(user, strconv.Itoa(limit)).Inc()
}

// Registry returns the underlying registry (used by tests)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler serving the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
