package metrics

import "github.com/prometheus/client_golang/prometheus"

// Classifier Prometheus metrics.
var (
	ClassifierRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_requests_total",
			Help:      "Total number of classification requests",
		},
		[]string{"model", "status"},
	)

	ClassifierRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_request_duration_seconds",
			Help:      "Classification request duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"model"},
	)

	ClassifierTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_tokens_total",
			Help:      "Total classifier tokens consumed",
		},
		[]string{"model", "type"},
	)

	ClassifierErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_errors_total",
			Help:      "Total classifier errors",
		},
		[]string{"model", "error_type"},
	)

	ClassifierBudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classifier_budget_tokens_remaining",
			Help:      "Remaining classifier token budget",
		},
		[]string{"period"},
	)
)
