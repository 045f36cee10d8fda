// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	NegotiationAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "negotiation_attempts",
			Help:    "Oracle rounds spent per negotiation",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 20},
		},
	)

	NegotiationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_outcomes_total",
			Help: "Finished negotiations by final outcome",
		},
		[]string{"outcome"},
	)

	NegotiationRoundOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negotiation_round_outcomes_total",
			Help: "Evaluated oracle proposals by round outcome",
		},
		[]string{"outcome"},
	)

	ComponentResolutionMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "component_resolution_misses_total",
			Help: "Proposed component names that matched no catalog product",
		},
		[]string{"category"},
	)

	AuditRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_dropped_total",
			Help: "Unresolved-component records lost by the audit queue",
		},
		[]string{"reason"},
	)

	OracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "oracle_request_duration_seconds",
			Help:    "Latency of oracle completions",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"provider", "status"},
	)

	CatalogProducts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_products",
			Help: "Products held by the in-memory catalog",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP API requests",
		},
		[]string{"route", "status"},
	)
)
