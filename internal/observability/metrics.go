// Package observability holds Prometheus collectors and OpenTelemetry tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quill_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReactionToggles counts completed toggles by target type and transition.
	ReactionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_reaction_toggles_total",
		Help: "Completed reaction toggles by target type and transition",
	}, []string{"target_type", "transition"})

	// ReactionToggleRetries counts toggle transactions retried after losing a uniqueness race.
	ReactionToggleRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_reaction_toggle_retries_total",
		Help: "Reaction toggle transactions retried after a unique constraint violation",
	}, []string{"target_type"})

	// CommentReports counts accepted comment reports by reason.
	CommentReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_comment_reports_total",
		Help: "Comment reports accepted by reason",
	}, []string{"reason"})

	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_notifications_created_total",
		Help: "Notifications persisted by type",
	}, []string{"type"})

	// NotificationsSuppressed counts notifications skipped by the self-suppression rule.
	NotificationsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_notifications_suppressed_total",
		Help: "Notifications skipped because actor and recipient are the same user",
	}, []string{"type"})

	// NotificationPersistFailures counts events whose notification row could not be written.
	NotificationPersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_notification_persist_failures_total",
		Help: "Domain events whose notification row could not be persisted",
	}, []string{"type"})

	// NotificationPushes counts push attempts by transport and result.
	NotificationPushes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_notification_pushes_total",
		Help: "Notification push attempts by transport and result",
	}, []string{"transport", "result"})

	// NotificationPushQueueDepth is the number of pushes waiting for a worker.
	NotificationPushQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quill_notification_push_queue_depth",
		Help: "Pushes waiting in the outbound queue",
	})

	// NotificationsCleanedUp counts notifications removed by retention.
	NotificationsCleanedUp = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_notifications_cleaned_up_total",
		Help: "Notifications removed by the retention policy",
	})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quill_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_websocket_backpressure_drops_total",
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
