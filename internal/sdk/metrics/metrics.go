package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the SDK bundle loader.
type Metrics struct {
	Attempts     *prometheus.CounterVec
	Exhaustions  prometheus.Counter
	CacheHits    prometheus.Counter
	LoadDuration prometheus.Histogram
}

// New creates and registers all loader metrics.
func New() *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_gateway_sdk_fetch_attempts_total",
			Help: "SDK bundle fetch attempts by outcome (success, timeout, network, status)",
		}, []string{"outcome"}),
		Exhaustions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verify_gateway_sdk_load_exhaustions_total",
			Help: "Loads that failed after every candidate and cycle",
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verify_gateway_sdk_bundle_cache_hits_total",
			Help: "Loads satisfied from the bundle cache without a network cycle",
		}),
		LoadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verify_gateway_sdk_load_duration_seconds",
			Help:    "End-to-end SDK load duration including retries",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// IncAttempt records one candidate attempt with its outcome.
func (m *Metrics) IncAttempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

// IncExhaustion records a fully failed load.
func (m *Metrics) IncExhaustion() {
	if m == nil {
		return
	}
	m.Exhaustions.Inc()
}

// IncCacheHit records a load served from cache.
func (m *Metrics) IncCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// ObserveLoad records one completed load's duration.
func (m *Metrics) ObserveLoad(seconds float64) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(seconds)
}
