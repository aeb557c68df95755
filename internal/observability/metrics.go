package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "estatehub_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesCast counts ledger casts by target type and resulting vote.
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_votes_cast_total",
		Help: "Total vote casts by target type and resulting vote",
	}, []string{"target", "result"})

	// QuestionViews counts getQuestion reads split by whether the view was counted.
	QuestionViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_question_views_total",
		Help: "Question reads by dedup outcome",
	}, []string{"counted"})

	// ConversationsResolved counts getOrCreate outcomes (created, existing, race_lost).
	ConversationsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_conversations_resolved_total",
		Help: "Conversation get-or-create outcomes",
	}, []string{"outcome"})

	// MessagesSent counts chat messages by the transport that carried them.
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_messages_sent_total",
		Help: "Chat messages persisted by transport",
	}, []string{"transport"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "estatehub_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "estatehub_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

const queryStartKey = "estatehub:query_start"

// RegisterGormMetrics hooks query latency recording into every GORM operation.
func RegisterGormMetrics(db *gorm.DB) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(queryStartKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(queryStartKey)
			if !ok {
				return
			}
			start, ok := v.(time.Time)
			if !ok {
				return
			}
			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		}
	}

	cb := db.Callback()
	steps := []struct {
		name string
		err  error
	}{
		{"query_before", cb.Query().Before("gorm:query").Register("metrics:query_before", before)},
		{"query_after", cb.Query().After("gorm:query").Register("metrics:query_after", after("select"))},
		{"create_before", cb.Create().Before("gorm:create").Register("metrics:create_before", before)},
		{"create_after", cb.Create().After("gorm:create").Register("metrics:create_after", after("insert"))},
		{"update_before", cb.Update().Before("gorm:update").Register("metrics:update_before", before)},
		{"update_after", cb.Update().After("gorm:update").Register("metrics:update_after", after("update"))},
		{"delete_before", cb.Delete().Before("gorm:delete").Register("metrics:delete_before", before)},
		{"delete_after", cb.Delete().After("gorm:delete").Register("metrics:delete_after", after("delete"))},
		{"raw_before", cb.Raw().Before("gorm:raw").Register("metrics:raw_before", before)},
		{"raw_after", cb.Raw().After("gorm:raw").Register("metrics:raw_after", after("raw"))},
	}
	for _, s := range steps {
		if s.err != nil {
			return s.err
		}
	}
	return nil
}
