package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ginger-society/ginger-ws/internal/channel"
	"github.com/ginger-society/ginger-ws/internal/metrics"
)

// Bridge consumes the inbound queue and routes each delivery into the
// matching broadcast group. Any consume error tears the connection down and
// the bridge reconnects after a fixed delay, forever, until its context is
// cancelled.
type Bridge struct {
	uri      string
	delay    time.Duration
	registry *channel.Registry
	clock    clockwork.Clock

	// Overridable in tests.
	connect func(uri string) (*broker, error)
}

// NewBridge creates a bridge routing into registry. delay is the fixed
// reconnect backoff between consume attempts.
func NewBridge(uri string, delay time.Duration, registry *channel.Registry, clock clockwork.Clock) *Bridge {
	return &Bridge{
		uri:      uri,
		delay:    delay,
		registry: registry,
		clock:    clock,
		connect:  dialBroker,
	}
}

// Run blocks until ctx is cancelled. There is no retry cutoff: a background
// relay that gives up is worse than one that keeps knocking.
func (b *Bridge) Run(ctx context.Context) {
	for {
		if err := b.consume(ctx); err != nil {
			slog.Error("Queue bridge consume loop failed", "error", err)
		}

		if ctx.Err() != nil {
			slog.Info("Queue bridge stopped")
			return
		}

		metrics.BridgeReconnects.Inc()
		slog.Info("Reconnecting to broker", "delay", b.delay)
		select {
		case <-b.clock.After(b.delay):
		case <-ctx.Done():
			slog.Info("Queue bridge stopped")
			return
		}
	}
}

// consume holds one broker connection for its lifetime. Returns nil only on
// context cancellation.
func (b *Bridge) consume(ctx context.Context) error {
	br, err := b.connect(b.uri)
	if err != nil {
		return err
	}
	defer br.close()

	metrics.BridgeConnected.Set(1)
	defer metrics.BridgeConnected.Set(0)

	deliveries, err := br.ch.Consume(QueueName, "ginger-ws-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	closed := br.conn.NotifyClose(make(chan *amqp.Error, 1))
	slog.Info("Queue bridge consuming", "queue", QueueName)

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			if amqpErr == nil {
				return errors.New("broker connection closed")
			}
			return fmt.Errorf("broker connection closed: %w", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery stream closed")
			}
			b.handleDelivery(d)
		}
	}
}

// handleDelivery routes one delivery. Malformed envelopes and envelopes
// naming an unknown channel are dropped permanently (nack without requeue);
// neither terminates the consume loop.
func (b *Bridge) handleDelivery(d amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil || env.ChannelID == "" {
		slog.Warn("Dropping malformed queue message", "error", err)
		metrics.BridgeMessagesDropped.WithLabelValues("decode_error").Inc()
		if err := d.Nack(false, false); err != nil {
			slog.Error("Failed to nack poison message", "error", err)
		}
		return
	}

	group, ok := b.registry.Get(env.ChannelID)
	if !ok {
		// Live-only semantics: nobody has ever subscribed to this channel
		// on this instance, so there is nowhere to deliver.
		slog.Info("Dropping message for unknown channel", "channel", env.ChannelID)
		metrics.BridgeMessagesDropped.WithLabelValues("route_miss").Inc()
		if err := d.Nack(false, false); err != nil {
			slog.Error("Failed to nack unroutable message", "error", err)
		}
		return
	}

	group.Publish(env.Message)

	if err := d.Ack(false); err != nil {
		slog.Error("Failed to ack delivery", "channel", env.ChannelID, "error", err)
		return
	}
	metrics.BridgeMessagesConsumed.Inc()
}
