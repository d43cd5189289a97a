package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks classified exchanges per protocol and outcome
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snap2pass_requests_total",
			Help: "Total number of photo requests by classified outcome",
		},
		[]string{"protocol", "outcome", "code"},
	)

	// RequestLatency tracks one exchange, excluding backoff
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snap2pass_request_latency_seconds",
			Help:    "Photo request latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"protocol"},
	)

	// RetriesTotal tracks backoff waits by the outcome that caused them
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snap2pass_retries_total",
			Help: "Total number of retries",
		},
		[]string{"outcome"},
	)

	// ValidationRejectsTotal tracks submissions rejected before any network call
	ValidationRejectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snap2pass_validation_rejects_total",
			Help: "Total number of submissions rejected client-side",
		},
		[]string{"code"},
	)

	// TrialsTotal tracks trials started, first submissions and resubmissions
	TrialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snap2pass_trials_total",
			Help: "Total number of trials",
		},
		[]string{"phase"},
	)

	// BatchItemsTotal tracks terminal batch item outcomes
	BatchItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snap2pass_batch_items_total",
			Help: "Total number of batch items by terminal outcome",
		},
		[]string{"outcome"},
	)

	// BatchInFlight tracks batch pipelines currently running
	BatchInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snap2pass_batch_in_flight",
			Help: "Batch pipelines currently running",
		},
	)

	// DBConnectionPoolUsage tracks the outcome history pool usage in percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "snap2pass_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
