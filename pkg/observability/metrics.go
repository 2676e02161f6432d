package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the gatekeeping layer
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec // labels: outcome, kind
	ResolverErrorsTotal prometheus.Counter

	// Rate limit metrics
	RateLimitDecisionsTotal *prometheus.CounterVec // labels: limit, outcome
	RateLimitFallbacksTotal prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_http_requests_total",
				Help: "Total HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "steward_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_authz_decisions_total",
				Help: "Authorization decisions by outcome and denial kind",
			},
			[]string{"outcome", "kind"},
		),
		ResolverErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_authz_resolver_errors_total",
				Help: "Session/role resolution failures (store unavailable)",
			},
		),
		RateLimitDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "steward_ratelimit_decisions_total",
				Help: "Rate limit decisions by named limit and outcome",
			},
			[]string{"limit", "outcome"},
		),
		RateLimitFallbacksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "steward_ratelimit_fallbacks_total",
				Help: "Requests served by the in-process fallback store because the counter store was unreachable",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.ResolverErrorsTotal,
		m.RateLimitDecisionsTotal,
		m.RateLimitFallbacksTotal,
	)

	return m
}

// Handler returns the Prometheus scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordDecision records an authorization decision. kind is empty for
// allowed decisions.
func (m *Metrics) RecordDecision(allowed bool, kind string) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.AuthzDecisionsTotal.WithLabelValues(outcome, kind).Inc()
}

// RecordRateLimit records a rate limit decision for a named limit.
func (m *Metrics) RecordRateLimit(limit string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.RateLimitDecisionsTotal.WithLabelValues(limit, outcome).Inc()
}

// InstrumentHandler wraps an HTTP handler with request count and duration
// metrics. path should be the route template, not the raw URL, to keep
// cardinality bounded.
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
