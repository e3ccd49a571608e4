package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "buspass_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ReviewDecisions counts successful approve/reject transitions.
	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_review_decisions_total",
		Help: "Total number of review decisions by outcome",
	}, []string{"decision"})

	// ApplicationsSubmitted counts accepted intake submissions by institution type.
	ApplicationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_applications_submitted_total",
		Help: "Total number of applications submitted",
	}, []string{"institution_type"})

	// ApplicationsByStatus is refreshed by the backlog job.
	ApplicationsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "buspass_applications",
		Help: "Number of applications by status",
	}, []string{"status"})

	// CredentialRenderSeconds records ID card generation latency.
	CredentialRenderSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "buspass_credential_render_seconds",
		Help:    "Time spent rendering bus pass ID cards",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	// CacheLookups counts cache-aside hits and misses.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_cache_lookups_total",
		Help: "Cache-aside lookups served from Redis (hit) or the loader (miss)",
	}, []string{"result"})

	// MailDeliveries counts outbound mail attempts by kind and outcome.
	MailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_mail_deliveries_total",
		Help: "Outbound mail attempts",
	}, []string{"kind", "outcome"})

	// WebSocketConnectionsTotal is the gauge of live review feed connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "buspass_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buspass_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)
