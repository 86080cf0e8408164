package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway-wide Prometheus metrics. Domain packages keep
// their own metrics structs next to the code that drives them.
type Metrics struct {
	SessionsStarted *prometheus.CounterVec
	RequestLatency  *prometheus.HistogramVec
}

// New creates and registers all gateway-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_gateway_sessions_started_total",
			Help: "Total number of verification sessions started, by mode",
		}, []string{"mode"}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "verify_gateway_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// IncSessionsStarted increments the started-session counter for a mode.
func (m *Metrics) IncSessionsStarted(mode string) {
	m.SessionsStarted.WithLabelValues(mode).Inc()
}

// ObserveRequest records one request's latency.
func (m *Metrics) ObserveRequest(route, status string, seconds float64) {
	m.RequestLatency.WithLabelValues(route, status).Observe(seconds)
}
