// Package metrics exposes prometheus collectors for adaptor calls and
// pipeline runs. Collectors are process-wide, registered once via promauto.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	adaptorRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlab_adaptor_requests_total",
			Help: "Total number of adaptor generation calls.",
		},
		[]string{"adaptor", "capability", "status"},
	)
	adaptorRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creatorlab_adaptor_request_duration_seconds",
			Help:    "Histogram of adaptor call durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"adaptor", "capability"},
	)
	adaptorPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creatorlab_adaptor_prompt_tokens",
			Help:    "Histogram of prompt token counts per call.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"adaptor", "model"},
	)
	adaptorCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creatorlab_adaptor_completion_tokens",
			Help:    "Histogram of completion token counts per call.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"adaptor", "model"},
	)
	adaptorEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlab_adaptor_estimated_cost_usd_total",
			Help: "Estimated cumulative cost of adaptor calls in USD.",
		},
		[]string{"adaptor", "model"},
	)
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlab_pipeline_runs_total",
			Help: "Total pipeline runs by terminal outcome.",
		},
		[]string{"pipeline", "status"},
	)
	pipelineItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creatorlab_pipeline_items_total",
			Help: "Total pipeline items by outcome.",
		},
		[]string{"pipeline", "outcome"},
	)
)

// ObserveAdaptorCall records one generation call's outcome and latency.
func ObserveAdaptorCall(adaptorID, capability, status string, duration time.Duration) {
	adaptorRequestsTotal.WithLabelValues(adaptorID, capability, status).Inc()
	adaptorRequestDuration.WithLabelValues(adaptorID, capability).Observe(duration.Seconds())
}

// ObserveUsage records token counts and the estimated cost of one text call.
func ObserveUsage(adaptorID, modelID string, promptTokens, completionTokens int, costUSD float64) {
	adaptorPromptTokens.WithLabelValues(adaptorID, modelID).Observe(float64(promptTokens))
	adaptorCompletionTokens.WithLabelValues(adaptorID, modelID).Observe(float64(completionTokens))
	if costUSD > 0 {
		adaptorEstimatedCostUSD.WithLabelValues(adaptorID, modelID).Add(costUSD)
	}
}

// ObserveRun records a run's terminal status.
func ObserveRun(pipeline, status string) {
	pipelineRunsTotal.WithLabelValues(pipeline, status).Inc()
}

// ObserveItem records one item outcome ("succeeded" or "failed").
func ObserveItem(pipeline, outcome string) {
	pipelineItemsTotal.WithLabelValues(pipeline, outcome).Inc()
}
