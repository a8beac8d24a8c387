package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends envelopes to the fanout exchange. It holds one lazily
// established connection and re-dials on the next call after a failure, so a
// broker restart costs one failed publish rather than a wedged gateway.
type Publisher struct {
	uri string

	mu     sync.Mutex
	broker *broker

	// Overridable in tests.
	connect func(uri string) (*broker, error)
}

// NewPublisher creates a publisher for the given broker URI. No connection
// is made until the first publish.
func NewPublisher(uri string) *Publisher {
	return &Publisher{uri: uri, connect: dialBroker}
}

// Publish marshals env and sends it to the exchange with an empty routing
// key, matching the fanout binding the bridge consumes from.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	br, err := p.acquire()
	if err != nil {
		return err
	}

	err = br.ch.PublishWithContext(ctx, ExchangeName, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		p.invalidate(br)
		return fmt.Errorf("publish to exchange: %w", err)
	}
	return nil
}

// Ping verifies broker connectivity, dialing if necessary. Used by the
// readiness probe.
func (p *Publisher) Ping(_ context.Context) error {
	_, err := p.acquire()
	return err
}

// Close tears down the held connection, if any.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broker != nil {
		p.broker.close()
		p.broker = nil
	}
}

func (p *Publisher) acquire() (*broker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.broker != nil && !p.broker.conn.IsClosed() {
		return p.broker, nil
	}

	br, err := p.connect(p.uri)
	if err != nil {
		return nil, err
	}
	p.broker = br
	return br, nil
}

func (p *Publisher) invalidate(br *broker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broker == br {
		br.close()
		p.broker = nil
	}
}
