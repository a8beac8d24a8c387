package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Fixed broker topology. Deliberately not configurable: every deployment of
// this service shares the one fanout exchange and queue.
const (
	ExchangeName = "real-time-updates"
	QueueName    = "real-time-updates-queue"
)

// broker bundles an AMQP connection with an open channel on it.
type broker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// dialBroker connects to the broker and declares the exchange, queue and
// binding. Declaration is idempotent, so it is safe to repeat on every
// reconnect.
func dialBroker(uri string) (*broker, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &broker{conn: conn, ch: ch}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "fanout", false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, "", ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (b *broker) close() {
	_ = b.ch.Close()
	_ = b.conn.Close()
}
