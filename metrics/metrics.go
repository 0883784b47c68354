// Package metrics provides Prometheus metrics for the HTTP server and the
// matching pipelines.
//
// HTTP metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//
// Pipeline metrics are prefixed with trader_. All metrics are registered
// with the Prometheus default registry during package initialization.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rejection reasons.
const (
	RejectBodyTooLarge    = "body_too_large"
	RejectHeadersTooLarge = "headers_too_large"
	RejectRateLimited     = "rate_limited"
	RejectDirectAccess    = "direct_access"
)

// Pipeline label values.
const (
	PipelineTrials  = "trials"
	PipelineDrugs   = "drugs"
	PipelineCompare = "compare"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 60},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_pipeline_runs_total",
			Help: "Matching pipeline runs by outcome",
		},
		[]string{"pipeline", "result"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trader_pipeline_duration_seconds",
			Help:    "Matching pipeline run time",
			Buckets: prometheus.ExponentialBuckets(.005, 3, 10),
		},
		[]string{"pipeline"},
	)

	PipelineRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_pipeline_rows_total",
			Help: "Rows produced or dropped by the matching pipelines",
		},
		[]string{"pipeline", "kind"},
	)

	ReferenceReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_reference_reloads_total",
			Help: "Reference data reloads by trigger and outcome",
		},
		[]string{"trigger", "result"},
	)

	RejectedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trader_rejected_requests_total",
			Help: "Requests refused before reaching a handler, by reason",
		},
		[]string{"reason"},
	)

	ReferenceRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trader_reference_records",
			Help: "Records held per reference dataset",
		},
		[]string{"dataset"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(PipelineRowsTotal)
	prometheus.MustRegister(ReferenceReloadsTotal)
	prometheus.MustRegister(ReferenceRecords)
	prometheus.MustRegister(RejectedRequestsTotal)
}

// RowCounts are the per-run row tallies of one pipeline.
type RowCounts struct {
	Matches    int
	Skipped    int
	Duplicates int
	Headers    int
}

// ObservePipeline records one pipeline run. A non-nil err counts as a failure
// and the row counts are ignored.
func ObservePipeline(pipeline string, elapsed time.Duration, rows RowCounts, err error) {
	PipelineDuration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
	if err != nil {
		PipelineRunsTotal.WithLabelValues(pipeline, "error").Inc()
		return
	}
	PipelineRunsTotal.WithLabelValues(pipeline, "ok").Inc()
	PipelineRowsTotal.WithLabelValues(pipeline, "match").Add(float64(rows.Matches))
	PipelineRowsTotal.WithLabelValues(pipeline, "skipped").Add(float64(rows.Skipped))
	PipelineRowsTotal.WithLabelValues(pipeline, "duplicate").Add(float64(rows.Duplicates))
	PipelineRowsTotal.WithLabelValues(pipeline, "header").Add(float64(rows.Headers))
}

// ObserveReload records a reference reload and the record count per dataset.
func ObserveReload(trigger string, records map[string]int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ReferenceReloadsTotal.WithLabelValues(trigger, result).Inc()
	for dataset, count := range records {
		ReferenceRecords.WithLabelValues(dataset).Set(float64(count))
	}
}
