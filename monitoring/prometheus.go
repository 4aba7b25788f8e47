package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// PrometheusConfig configures the metric namespace.
type PrometheusConfig struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// CacheMonitor exports the engine's counters through a private Prometheus
// registry. All record methods are nil-receiver safe so the engine can run
// without monitoring wired in.
type CacheMonitor struct {
	registry *prometheus.Registry
	logger   *zap.SugaredLogger

	hitsTotal          *prometheus.CounterVec
	missesTotal        *prometheus.CounterVec
	setsTotal          *prometheus.CounterVec
	setDuration        *prometheus.HistogramVec
	invalidationsTotal prometheus.Counter
	invalidatedKeys    prometheus.Counter
	warmedKeysTotal    prometheus.Counter
	tierEntries        *prometheus.GaugeVec
	trackedKeys        prometheus.Gauge
}

func NewCacheMonitor(config *PrometheusConfig, logger *zap.SugaredLogger) (*CacheMonitor, error) {
	if config == nil {
		config = &PrometheusConfig{Namespace: "tiercache", Subsystem: "engine"}
	}
	namespace := config.Namespace
	subsystem := config.Subsystem

	m := &CacheMonitor{
		registry: prometheus.NewRegistry(),
		logger:   logger,
	}

	m.hitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "hits_total",
			Help:      "Total number of tier hits",
		},
		[]string{"strategy", "tier"},
	)

	m.missesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "misses_total",
			Help:      "Total number of tier misses",
		},
		[]string{"strategy", "tier"},
	)

	m.setsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sets_total",
			Help:      "Total number of tier writes",
		},
		[]string{"strategy", "tier"},
	)

	m.setDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "set_duration_seconds",
			Help:      "Tier write latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"strategy", "tier"},
	)

	m.invalidationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidations_total",
			Help:      "Total number of invalidation calls",
		},
	)

	m.invalidatedKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "invalidated_keys_total",
			Help:      "Total number of tier entries removed by invalidation",
		},
	)

	m.warmedKeysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "warmed_keys_total",
			Help:      "Total number of keys populated by the warming scheduler",
		},
	)

	m.tierEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tier_entries",
			Help:      "Current entry count per tier",
		},
		[]string{"strategy", "tier"},
	)

	m.trackedKeys = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tracked_keys",
			Help:      "Number of keys in the access tracker",
		},
	)

	collectors := []prometheus.Collector{
		m.hitsTotal,
		m.missesTotal,
		m.setsTotal,
		m.setDuration,
		m.invalidationsTotal,
		m.invalidatedKeys,
		m.warmedKeysTotal,
		m.tierEntries,
		m.trackedKeys,
	}
	for _, collector := range collectors {
		if err := m.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("failed to register metric: %v", err)
		}
	}
	return m, nil
}

func (m *CacheMonitor) RecordHit(strategy, tier string) {
	if m == nil {
		return
	}
	m.hitsTotal.WithLabelValues(strategy, tier).Inc()
}

func (m *CacheMonitor) RecordMiss(strategy, tier string) {
	if m == nil {
		return
	}
	m.missesTotal.WithLabelValues(strategy, tier).Inc()
}

func (m *CacheMonitor) RecordSet(strategy, tier string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.setsTotal.WithLabelValues(strategy, tier).Inc()
	m.setDuration.WithLabelValues(strategy, tier).Observe(elapsed.Seconds())
}

func (m *CacheMonitor) RecordInvalidation(removed int) {
	if m == nil {
		return
	}
	m.invalidationsTotal.Inc()
	m.invalidatedKeys.Add(float64(removed))
}

func (m *CacheMonitor) RecordWarmedKeys(count int) {
	if m == nil {
		return
	}
	m.warmedKeysTotal.Add(float64(count))
}

func (m *CacheMonitor) SetTierEntries(strategy, tier string, entries int64) {
	if m == nil {
		return
	}
	m.tierEntries.WithLabelValues(strategy, tier).Set(float64(entries))
}

func (m *CacheMonitor) SetTrackedKeys(count int) {
	if m == nil {
		return
	}
	m.trackedKeys.Set(float64(count))
}

// Handler exposes the registry in Prometheus exposition format.
func (m *CacheMonitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
