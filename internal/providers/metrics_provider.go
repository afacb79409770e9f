package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"juju/internal/structures"
	"strconv"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncCacheInvalidations()
	ObservePersistenceDuration(duration time.Duration)
	SetSessionsTotal(year int, count int)
	IncQuarantinedUnits()
	AddMigratedRecords(count int)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	cacheInvalidations  prometheus.Counter
	persistenceDuration prometheus.Histogram
	sessionsTotal       *prometheus.GaugeVec
	quarantinedUnits    prometheus.Counter
	migratedRecords     prometheus.Counter
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncCacheInvalidations() {
	m.cacheInvalidations.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) SetSessionsTotal(year int, count int) {
	m.sessionsTotal.WithLabelValues(strconv.Itoa(year)).Set(float64(count))
}

func (m *MetricsProvider) IncQuarantinedUnits() {
	m.quarantinedUnits.Inc()
}

func (m *MetricsProvider) AddMigratedRecords(count int) {
	m.migratedRecords.Add(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "juju_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "juju_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juju_cache_hits_total",
			Help: "Total number of statistics cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juju_cache_misses_total",
			Help: "Total number of statistics cache misses",
		}),

		cacheInvalidations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juju_cache_invalidations_total",
			Help: "Total number of statistics cache invalidations",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "juju_persistence_duration_seconds",
			Help:    "Duration of year unit rewrites in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		sessionsTotal: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "juju_sessions_total",
			Help: "Number of sessions stored per year unit",
		}, []string{"year"}),

		quarantinedUnits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juju_quarantined_units_total",
			Help: "Year units moved aside because they could not be read",
		}),

		migratedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "juju_migrated_records_total",
			Help: "Legacy session records converted to the canonical schema",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncCacheInvalidations()                           {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) SetSessionsTotal(_ int, _ int)                    {}
func (n *noopMetrics) IncQuarantinedUnits()                             {}
func (n *noopMetrics) AddMigratedRecords(_ int)                         {}
