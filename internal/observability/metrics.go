package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/bizportal/internal/quotes"
)

// Metrics collects Prometheus metrics for the portal.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	submissions     *prometheus.CounterVec
	submitDuration  prometheus.Histogram
	reconciles      *prometheus.CounterVec
	degradations    *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and quote metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizportal_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bizportal_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizportal_quote_submissions_total",
		Help: "Quote submissions by outcome.",
	}, []string{"outcome"})
	submitDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bizportal_quote_submit_duration_seconds",
		Help:    "Round trip time of the quote creation endpoint.",
		Buckets: prometheus.DefBuckets,
	})
	reconciles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizportal_quote_reconciliations_total",
		Help: "Session cache reconciliations by result.",
	}, []string{"result"})
	degradations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bizportal_quote_degradations_total",
		Help: "Payloads built with fallback values, by resolution stage.",
	}, []string{"stage"})
	registry.MustRegister(requests, duration, submissions, submitDuration, reconciles, degradations)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		submissions:     submissions,
		submitDuration:  submitDuration,
		reconciles:      reconciles,
		degradations:    degradations,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObserveSubmission implements quotes.Recorder.
func (m *Metrics) ObserveSubmission(outcome quotes.State, d time.Duration) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(outcome)).Inc()
	m.submitDuration.Observe(d.Seconds())
}

// ObserveReconcile implements quotes.Recorder.
func (m *Metrics) ObserveReconcile(err error) {
	if m == nil {
		return
	}
	result := "applied"
	switch {
	case errors.Is(err, quotes.ErrNothingToReconcile):
		result = "empty"
	case err != nil:
		result = "failed"
	}
	m.reconciles.WithLabelValues(result).Inc()
}

// ObserveDegradation implements quotes.Recorder.
func (m *Metrics) ObserveDegradation(stage string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(stage).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
