package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthMetrics records identity-service activity. A nil receiver is a no-op.
type AuthMetrics struct {
	events      *prometheus.CounterVec
	rateLimited *prometheus.CounterVec
	requests    *prometheus.HistogramVec
}

// NewAuthMetrics registers the identity metrics on the provided registerer.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	if reg == nil {
		return &AuthMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_auth_events_total",
		Help: "Authentication lifecycle events by outcome.",
	}, []string{"event", "outcome"})
	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_rate_limit_rejections_total",
		Help: "Requests rejected by a rate limiter.",
	}, []string{"limiter"})
	requests := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "identity_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(events, rateLimited, requests)
	return &AuthMetrics{
		events:      events,
		rateLimited: rateLimited,
		requests:    requests,
	}
}

// ObserveAuth counts one auth event such as login or refresh.
func (m *AuthMetrics) ObserveAuth(event string, err error) {
	if m == nil || m.events == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.events.WithLabelValues(normalizeLabel(event), outcome).Inc()
}

// IncRateLimited counts a rejection by the named limiter.
func (m *AuthMetrics) IncRateLimited(limiter string) {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.WithLabelValues(normalizeLabel(limiter)).Inc()
}

// ObserveRequest records latency for a routed request.
func (m *AuthMetrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
