package metrics

import "github.com/prometheus/client_golang/prometheus"

// Analysis lifecycle Prometheus metrics.
var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Finished analyses by outcome",
		},
		[]string{"status"}, // "complete" / "failed"
	)

	AnalysesInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running",
		},
	)

	AnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
	)
)

var domainMetricsRegistered bool

// RegisterDomainMetrics registers search, classifier and analysis metrics. Must be called once from main.
func RegisterDomainMetrics() {
	if domainMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		SearchRequestsTotal,
		SearchRequestDuration,
		PageCacheTotal,
		ClassifierRequestsTotal,
		ClassifierRequestDuration,
		ClassifierTokensTotal,
		ClassifierErrorsTotal,
		ClassifierBudgetTokensRemaining,
		AnalysesTotal,
		AnalysesInFlight,
		AnalysisDuration,
	)
	domainMetricsRegistered = true
}
