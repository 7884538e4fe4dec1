package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the separation service and the
// playback client.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	jobsSubmitted    prometheus.Counter
	jobsCompleted    prometheus.Counter
	jobsFailed       prometheus.Counter
	driftCorrections *prometheus.CounterVec
	driftSeconds     prometheus.Histogram
}

// New creates and registers the metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	jobsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_jobs_submitted_total",
		Help: "Total number of separation jobs queued",
	})
	jobsCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_jobs_completed_total",
		Help: "Total number of separation jobs that produced media",
	})
	jobsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "karaoke_jobs_failed_total",
		Help: "Total number of separation jobs that ended in error",
	})
	driftCorrections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "karaoke_drift_corrections_total",
		Help: "Playhead snaps performed by the drift corrector, by kind (audio, video)",
	}, []string{"kind"})
	driftSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "karaoke_drift_seconds",
		Help:    "Drift measured at the time of a correction",
		Buckets: []float64{0.1, 0.15, 0.25, 0.5, 1, 2, 5},
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		jobsSubmitted,
		jobsCompleted,
		jobsFailed,
		driftCorrections,
		driftSeconds,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		jobsSubmitted:    jobsSubmitted,
		jobsCompleted:    jobsCompleted,
		jobsFailed:       jobsFailed,
		driftCorrections: driftCorrections,
		driftSeconds:     driftSeconds,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncJobsSubmitted increments the submitted jobs counter.
func (m *Metrics) IncJobsSubmitted() {
	m.jobsSubmitted.Inc()
}

// IncJobsCompleted increments the completed jobs counter.
func (m *Metrics) IncJobsCompleted() {
	m.jobsCompleted.Inc()
}

// IncJobsFailed increments the failed jobs counter.
func (m *Metrics) IncJobsFailed() {
	m.jobsFailed.Inc()
}

// ObserveDriftCorrection records one drift snap. It satisfies
// playback.DriftObserver.
func (m *Metrics) ObserveDriftCorrection(kind string, drift float64) {
	m.driftCorrections.WithLabelValues(kind).Inc()
	m.driftSeconds.Observe(drift)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
