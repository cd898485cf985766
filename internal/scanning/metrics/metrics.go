package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassifyAttemptsTotal tracks individual HTTP attempts by outcome
	// (ok, http_error, rate_limited, transport_error)
	ClassifyAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softscan_classify_attempts_total",
			Help: "Total number of classification HTTP attempts",
		},
		[]string{"outcome"},
	)

	// ClassifyRetriesTotal tracks backoffs taken before a new attempt
	ClassifyRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softscan_classify_retries_total",
			Help: "Total number of classification retries",
		},
		[]string{"reason"},
	)

	// ClassifyLatency tracks the latency of attempts that obtained a status
	ClassifyLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "softscan_classify_latency_seconds",
			Help:    "Classification HTTP attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// VerdictsTotal tracks emitted results per safety value
	VerdictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "softscan_verdicts_total",
			Help: "Total number of classification results by safety",
		},
		[]string{"safety"},
	)

	// InflightRequests tracks tasks currently holding the admission gate
	InflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "softscan_inflight_requests",
			Help: "Number of classification calls currently in flight",
		},
	)

	// BatchProgressPercent tracks the progress of the running batch
	BatchProgressPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "softscan_batch_progress_percent",
			Help: "Progress of the current batch in percent",
		},
	)

	// BatchDuration tracks the wall-clock time of whole batches
	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "softscan_batch_duration_seconds",
			Help:    "Batch duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
