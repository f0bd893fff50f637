package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipeta_refresh_total",
		Help: "Dataset refresh attempts by result",
	}, []string{"result"})
	RefreshDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sipeta_refresh_duration_ms",
		Help:    "Dataset refresh duration in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
	RegionNodes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sipeta_region_nodes",
		Help: "Region nodes in the current dataset",
	})
	JoinedFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sipeta_joined_features",
		Help: "Boundaries joined to a region or unit, by level",
	}, []string{"level"})
	UnmatchedFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sipeta_unmatched_features",
		Help: "Boundaries left unmatched or ambiguous, by level",
	}, []string{"level"})
	MalformedFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sipeta_malformed_features",
		Help: "Boundaries skipped while loading, by level",
	}, []string{"level"})
	ComposeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sipeta_compose_total",
		Help: "Feed compositions by marker level and result",
	}, []string{"level", "result"})
	ComposeDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sipeta_compose_duration_ms",
		Help:    "Feed composition duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	})
	FeedCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sipeta_feed_cache_hits_total",
		Help: "Feed cache hits",
	})
	FeedCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sipeta_feed_cache_misses_total",
		Help: "Feed cache misses",
	})
)

func init() {
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(RefreshDurationMs)
	prometheus.MustRegister(RegionNodes)
	prometheus.MustRegister(JoinedFeatures)
	prometheus.MustRegister(UnmatchedFeatures)
	prometheus.MustRegister(MalformedFeatures)
	prometheus.MustRegister(ComposeTotal)
	prometheus.MustRegister(ComposeDurationMs)
	prometheus.MustRegister(FeedCacheHitsTotal)
	prometheus.MustRegister(FeedCacheMissesTotal)
}

// Handler exposes the registered metrics for scraping.
func Handler() http.Handler { return promhttp.Handler() }
