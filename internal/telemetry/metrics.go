package telemetry

import "github.com/prometheus/client_golang/prometheus"

// AISummaryJobsTotal counts summary jobs by terminal state.
var AISummaryJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "medibrief",
		Subsystem: "ai_pipeline",
		Name:      "jobs_total",
		Help:      "Total number of AI summary jobs by outcome.",
	},
	[]string{"outcome"}, // "llm", "fallback", "failed"
)

// AISummaryJobDuration tracks end-to-end summary generation latency.
var AISummaryJobDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "medibrief",
		Subsystem: "ai_pipeline",
		Name:      "job_duration_seconds",
		Help:      "AI summary job duration in seconds, enqueue to completion.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
	},
)

// LLMCallDuration tracks the provider HTTP call latency.
var LLMCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "medibrief",
		Subsystem: "llm",
		Name:      "call_duration_seconds",
		Help:      "LLM provider call duration in seconds.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	},
	[]string{"outcome"}, // "ok", "rate_limited", "transient", "fatal"
)

// AIInputCacheHitsTotal counts structured-input cache hits and misses.
var AIInputCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "medibrief",
		Subsystem: "ai_input",
		Name:      "cache_total",
		Help:      "Structured AI input cache lookups by result.",
	},
	[]string{"result"}, // "hit", "miss", "fallback_error"
)

// RiskScoreDistribution tracks the composite risk score computed per patient.
var RiskScoreDistribution = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "medibrief",
		Subsystem: "analytics",
		Name:      "risk_score",
		Help:      "Distribution of computed composite risk scores.",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	},
)

// JobQueueDepth reports the approximate number of in-flight summary jobs.
var JobQueueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "medibrief",
		Subsystem: "ai_pipeline",
		Name:      "queue_depth",
		Help:      "Approximate number of summary jobs currently queued or running.",
	},
)

// AuthAttemptsTotal counts login attempts by outcome.
var AuthAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "medibrief",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Total login attempts by outcome.",
	},
	[]string{"outcome"}, // "ok", "bad_credentials", "rate_limited"
)

// All returns all MediBrief-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		AISummaryJobsTotal,
		AISummaryJobDuration,
		LLMCallDuration,
		AIInputCacheHitsTotal,
		RiskScoreDistribution,
		JobQueueDepth,
		AuthAttemptsTotal,
	}
}
