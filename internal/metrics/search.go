package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search service Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of product search page requests",
		},
		[]string{"status"},
	)

	SearchRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_request_duration_seconds",
			Help:      "Product search page request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PageCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_cache_total",
			Help:      "Search page cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)
