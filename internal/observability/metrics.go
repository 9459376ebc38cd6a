package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusboard_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// FeedQueries counts feed reads by outcome.
	FeedQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_feed_queries_total",
		Help: "Total number of feed queries by outcome",
	}, []string{"outcome"})

	// PostsArchived counts posts moved to archived by the expiry sweep.
	PostsArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_posts_archived_total",
		Help: "Total number of posts archived by the expiry sweep",
	}, []string{"trigger"})

	// VotesCast counts vote ledger writes by direction.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_votes_total",
		Help: "Total number of vote changes by direction",
	}, []string{"direction"})

	// VerificationReviews counts alumni verification decisions.
	VerificationReviews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_verification_reviews_total",
		Help: "Total number of alumni verification reviews by decision",
	}, []string{"decision"})

	// EventsPublished counts domain events by sink and outcome.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_events_published_total",
		Help: "Total number of domain events published",
	}, []string{"sink", "outcome"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campusboard_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
