package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommentSubmissions counts submission attempts by outcome
	// (pending, approved, or an error code).
	CommentSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_comment_submissions_total",
		Help: "Total number of comment submissions by outcome",
	}, []string{"outcome"})

	// ModerationTransitions counts moderation actions by action and result.
	ModerationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_comment_moderation_total",
		Help: "Total number of moderation transitions by action and result",
	}, []string{"action", "result"})

	// RateLimitDecisions counts limiter decisions (allowed, denied, store_error).
	RateLimitDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_rate_limit_decisions_total",
		Help: "Total number of rate limit decisions by result",
	}, []string{"result"})

	// CascadeDeletedComments counts rows removed by cascading deletes.
	CascadeDeletedComments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inkwell_comment_cascade_deleted_total",
		Help: "Total number of comments removed by cascading deletes",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// LiveSubscribers is the number of open live comment feeds.
	LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "inkwell_live_subscribers",
		Help: "Number of open live comment websocket connections",
	})

	// DatabaseOperationLatency records transactional operation latency.
	DatabaseOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_operation_latency_seconds",
		Help:    "Latency of comment subsystem database operations in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// TrackOperation returns a function that records latency when called (e.g. defer).
func TrackOperation(operation string) func() {
	start := time.Now()
	return func() {
		DatabaseOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
