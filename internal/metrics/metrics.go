// Package metrics provides Prometheus instruments for palate.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeEmpty   = "empty"
	OutcomeStale   = "stale"
	OutcomeSkipped = "skipped"
)

var (
	RatingsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_ratings_total",
		Help: "Ratings recorded, by sentiment",
	}, []string{"liked"})

	ProfileRecomputes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_profile_recomputes_total",
		Help: "Profile recomputations, by outcome",
	}, []string{"outcome"})

	ProfileContributors = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "palate_profile_contributing_dishes",
		Help:    "Number of dishes contributing to a recomputed profile",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	Embeddings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_embeddings_total",
		Help: "Dish embedding attempts, by outcome",
	}, []string{"outcome"})

	EmbeddingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "palate_embedding_request_duration_seconds",
		Help:    "Latency of embedding provider requests",
		Buckets: prometheus.DefBuckets,
	})

	EmbeddingRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palate_embedding_retries_total",
		Help: "Embedding requests retried after a transient failure",
	})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "palate_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_recommendations_total",
		Help: "Recommendation requests, by outcome",
	}, []string{"outcome"})

	RecommendCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_recommend_cache_total",
		Help: "Recommendation cache lookups, by result",
	}, []string{"result"})

	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_tasks_enqueued_total",
		Help: "Tasks handed to the scheduler, by kind",
	}, []string{"kind"})

	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palate_tasks_processed_total",
		Help: "Tasks run by the worker, by kind and outcome",
	}, []string{"kind", "outcome"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "palate_task_duration_seconds",
		Help:    "Task execution time",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	TasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palate_tasks_in_flight",
		Help: "Tasks currently executing",
	})
)
