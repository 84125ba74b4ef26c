// Package rabbitmq sets up the lifecycle event bus: the entitlements
// exchange the reconciler publishes to and the queues the workers consume.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Exchange is the direct exchange carrying subscription lifecycle events.
const Exchange = "entitlements"

// Routing keys for lifecycle events.
const (
	KeyActivated      = "activated"
	KeyExpired        = "expired"
	KeyPendingTimeout = "pending_timeout"
	KeyCanceled       = "canceled"
)

// Connect dials RabbitMQ with retries.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// QueueConfig binds one queue to a routing key on the entitlements exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetLifecycleQueues returns the queues consumed by the notifier worker.
func GetLifecycleQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "entitlements.activated", RoutingKey: KeyActivated},
		{QueueName: "entitlements.expired", RoutingKey: KeyExpired},
	}
}

// SetupChannel opens a channel, declares the exchange and binds the queues.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			q.QueueName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}

		err = ch.QueueBind(
			q.QueueName,
			q.RoutingKey,
			Exchange,
			false,
			nil,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
