package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue Bridge Metrics
var (
	// BridgeMessagesConsumed tracks broker deliveries routed into a channel
	BridgeMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_messages_consumed_total",
			Help: "Total broker deliveries routed into a broadcast group",
		},
	)

	// BridgeMessagesDropped tracks broker deliveries dropped by reason
	BridgeMessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_dropped_total",
			Help: "Total broker deliveries dropped by reason (decode_error/route_miss)",
		},
		[]string{"reason"},
	)

	// BridgeReconnects tracks consume loop restarts
	BridgeReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_reconnects_total",
			Help: "Total broker reconnect attempts by the queue bridge",
		},
	)

	// BridgeConnected reports current broker connectivity (0/1)
	BridgeConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_connected",
			Help: "Whether the queue bridge currently holds a broker connection (0/1)",
		},
	)
)

// Channel Registry / WebSocket Metrics
var (
	// RegistryChannels tracks distinct channels seen since process start
	RegistryChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_channels",
			Help: "Number of broadcast groups held by the channel registry",
		},
	)

	// WebSocketConnectedClients tracks live subscriber connections
	WebSocketConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connected_clients",
			Help: "Number of connected WebSocket subscribers across all channels",
		},
	)

	// WebSocketMessagesDropped tracks messages dropped on slow subscribers
	WebSocketMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_dropped_total",
			Help: "Total broadcast messages dropped because a subscriber buffer overflowed",
		},
	)
)

// Publish Gateway Metrics
var (
	// PublishesTotal tracks broker publishes by origin and status
	PublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publishes_total",
			Help: "Total broker publishes by origin (channel/group/websocket) and status",
		},
		[]string{"origin", "status"},
	)

	// EmailsTotal tracks outbound email attempts by status
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_total",
			Help: "Total outbound email attempts by status",
		},
		[]string{"status"},
	)
)
