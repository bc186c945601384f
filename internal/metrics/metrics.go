package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthpro_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "growthpro_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthpro_messages_sent_total",
			Help: "Total messages sent",
		},
		[]string{"kind"}, // "direct" or "broadcast"
	)

	BroadcastFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "growthpro_broadcast_fanout_size",
			Help:    "Recipients per broadcast",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		},
	)

	MessagesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growthpro_messages_read_total",
			Help: "Total read receipts recorded",
		},
	)

	QuotaRefusals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growthpro_quota_refusals_total",
			Help: "Sends refused by the hourly quota",
		},
	)

	ClientsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "growthpro_clients_provisioned_total",
			Help: "Total client accounts provisioned",
		},
	)

	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthpro_notifications_sent_total",
			Help: "Outbound notification results",
		},
		[]string{"result"}, // "ok" or "error"
	)

	// Realtime metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "growthpro_websocket_connections",
			Help: "Currently connected websocket clients",
		},
	)

	RealtimeEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthpro_realtime_events_total",
			Help: "Realtime events delivered",
		},
		[]string{"type"}, // "INSERT" or "UPDATE"
	)

	// Rate limit metrics (HTTP edge)
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthpro_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
