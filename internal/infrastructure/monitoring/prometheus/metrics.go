// Package prometheus exposes the pipeline's operational metrics on a private
// registry served at /metrics.
package prometheus

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clausehound/citex/internal/application/citation"
)

const namespace = "citex"

// PipelineMetrics is the prometheus-backed implementation of
// citation.PipelineMetrics, plus the HTTP-layer metrics used by the gin
// middleware.
type PipelineMetrics struct {
	registry *prometheus.Registry

	jobsFinished       *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	analysisDuration   prometheus.Histogram
	analysisAttempts   *prometheus.CounterVec
	validationVerdicts *prometheus.CounterVec

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewPipelineMetrics builds and registers all pipeline metrics on a fresh
// registry.
func NewPipelineMetrics() *PipelineMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())

	m := &PipelineMetrics{
		registry: registry,

		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Citation jobs that reached a terminal status, by status.",
		}, []string{"status"}),

		extractionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of the extraction phase (submit through poll completion).",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		analysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time of the deep-analysis phase.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		analysisAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_attempts_total",
			Help:      "LLM analysis attempts, by outcome (ok, retry, salvaged, failed).",
		}, []string{"outcome"}),

		validationVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_verdicts_total",
			Help:      "Amendment validation verdicts, by disclosure outcome.",
		}, []string{"disclosed"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by method and route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.jobsFinished,
		m.extractionDuration,
		m.analysisDuration,
		m.analysisAttempts,
		m.validationVerdicts,
		m.httpRequests,
		m.httpRequestDuration,
	)
	return m
}

var _ citation.PipelineMetrics = (*PipelineMetrics)(nil)

// JobFinished counts a job reaching a terminal status.
func (m *PipelineMetrics) JobFinished(status string) {
	m.jobsFinished.WithLabelValues(status).Inc()
}

// ExtractionDuration records the extraction phase wall time.
func (m *PipelineMetrics) ExtractionDuration(seconds float64) {
	m.extractionDuration.Observe(seconds)
}

// AnalysisDuration records the deep-analysis phase wall time.
func (m *PipelineMetrics) AnalysisDuration(seconds float64) {
	m.analysisDuration.Observe(seconds)
}

// AnalysisAttempt counts one LLM attempt with its outcome.
func (m *PipelineMetrics) AnalysisAttempt(outcome string) {
	m.analysisAttempts.WithLabelValues(outcome).Inc()
}

// ValidationVerdict counts one amendment validation verdict.
func (m *PipelineMetrics) ValidationVerdict(disclosed bool) {
	m.validationVerdicts.WithLabelValues(strconv.FormatBool(disclosed)).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func (m *PipelineMetrics) ObserveHTTPRequest(method, route string, status int, seconds float64) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Handler serves the registry for scraping.
func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry exposes the underlying registry for test assertions.
func (m *PipelineMetrics) Registry() *prometheus.Registry {
	return m.registry
}
