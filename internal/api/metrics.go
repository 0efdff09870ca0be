package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Ranking metric names.
const (
	MetricRankingRequests    = "ranking_requests_total"
	MetricRankingDuration    = "ranking_duration_seconds"
	MetricRankingRecordsIn   = "ranking_records_in"
	MetricRankingItemsOut    = "ranking_items_out"
	MetricRankingCacheHits   = "ranking_cache_hits_total"
	MetricRankingCacheMisses = "ranking_cache_misses_total"
	MetricRankingCacheErrors = "ranking_cache_errors_total"
)

// Ranking request outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics contains Prometheus metrics for the ranking endpoint.
// All operations are thread-safe.
type Metrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	recordsIn   prometheus.Histogram
	itemsOut    prometheus.Histogram
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankingRequests,
				Help: "Total number of ranking requests by preset and outcome",
			},
			[]string{"preset", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankingDuration,
				Help:    "Time spent ranking records in seconds, excluding cache hits",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"preset"},
		),
		recordsIn: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankingRecordsIn,
				Help:    "Number of records submitted per ranking request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1 to ~16k
			},
		),
		itemsOut: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRankingItemsOut,
				Help:    "Number of ranked items returned per request",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRankingCacheHits,
				Help: "Total number of ranking requests served from cache",
			},
		),
		cacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricRankingCacheMisses,
				Help: "Total number of ranking requests not found in cache",
			},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankingCacheErrors,
				Help: "Total number of cache errors by operation (fail-open events)",
			},
			[]string{"operation"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRanking records a completed ranking computation.
func (m *Metrics) ObserveRanking(preset string, seconds float64, recordsIn, itemsOut int) {
	m.duration.WithLabelValues(preset).Observe(seconds)
	m.recordsIn.Observe(float64(recordsIn))
	m.itemsOut.Observe(float64(itemsOut))
}

// IncRequests increments the ranking request counter.
// outcome: one of OutcomeOK, OutcomeInvalid, OutcomeError
func (m *Metrics) IncRequests(preset, outcome string) {
	m.requests.WithLabelValues(preset, outcome).Inc()
}

// IncCacheHit increments the cache hit counter.
func (m *Metrics) IncCacheHit() {
	m.cacheHits.Inc()
}

// IncCacheMiss increments the cache miss counter.
func (m *Metrics) IncCacheMiss() {
	m.cacheMisses.Inc()
}

// IncCacheError increments the cache error counter for operation ("get" or "set").
func (m *Metrics) IncCacheError(operation string) {
	m.cacheErrors.WithLabelValues(operation).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.duration,
		m.recordsIn,
		m.itemsOut,
		m.cacheHits,
		m.cacheMisses,
		m.cacheErrors,
	}
}
