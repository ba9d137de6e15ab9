package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the insights engine.
type Metrics struct {
	// Cache lookups by result kind
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Entries dropped to stay within capacity
	CacheEvictions prometheus.Counter

	// Callers that joined an in-flight computation instead of starting one
	CacheCoalesced prometheus.Counter

	// Live entries, including expired ones not yet read
	CacheEntries prometheus.Gauge

	// Full miss-path computation latency by result kind
	ComputeLatency *prometheus.HistogramVec

	// Record source failures by operation
	SourceFailures *prometheus.CounterVec
}

// New registers the insights metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_insights_cache_hits_total",
			Help: "Total cache hits by result kind",
		}, []string{"kind"}), // kind: "insights", "kpis"

		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_insights_cache_misses_total",
			Help: "Total cache misses by result kind, expired entries included",
		}, []string{"kind"}),

		CacheEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_insights_cache_evictions_total",
			Help: "Total least-recently-used evictions",
		}),

		CacheCoalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_insights_cache_coalesced_total",
			Help: "Total callers that waited on an in-flight computation for the same key",
		}),

		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_insights_cache_entries",
			Help: "Current number of cache entries",
		}),

		ComputeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_insights_compute_duration_seconds",
			Help:    "Duration of result computation on a cache miss, including the record fetch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"kind"}),

		SourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_insights_source_failures_total",
			Help: "Total record source failures by operation",
		}, []string{"operation"}),
	}
}

// IncrementHit records a cache hit.
func (m *Metrics) IncrementHit(kind string) {
	if m != nil {
		m.CacheHits.WithLabelValues(kind).Inc()
	}
}

// IncrementMiss records a cache miss.
func (m *Metrics) IncrementMiss(kind string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(kind).Inc()
	}
}

// IncrementEviction records one LRU eviction.
func (m *Metrics) IncrementEviction() {
	if m != nil {
		m.CacheEvictions.Inc()
	}
}

// IncrementCoalesced records a caller that shared another caller's computation.
func (m *Metrics) IncrementCoalesced() {
	if m != nil {
		m.CacheCoalesced.Inc()
	}
}

// SetEntries reports the current cache size.
func (m *Metrics) SetEntries(n int) {
	if m != nil {
		m.CacheEntries.Set(float64(n))
	}
}

// ObserveCompute records how long a miss took to compute.
func (m *Metrics) ObserveCompute(kind string, d time.Duration) {
	if m != nil {
		m.ComputeLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementSourceFailure records a failed record fetch.
func (m *Metrics) IncrementSourceFailure(operation string) {
	if m != nil {
		m.SourceFailures.WithLabelValues(operation).Inc()
	}
}
