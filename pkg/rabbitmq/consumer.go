package rabbitmq

import (
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeKind = "topic"

	// DirectoryExchange carries group and enrollment records from the
	// enrollment directory.
	DirectoryExchange = "directory"
	DirectoryQueue    = "bidding-service.directory"
)

var directoryBindings = []string{"group.*", "enrollment.*"}

type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

func NewConsumer(url string, logger *slog.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	fail := func(step string, err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq %s: %w", step, err)
	}

	if err := ch.ExchangeDeclare(DirectoryExchange, ExchangeKind, true, false, false, false, nil); err != nil {
		return fail("exchange declare", err)
	}
	q, err := ch.QueueDeclare(DirectoryQueue, true, false, false, false, nil)
	if err != nil {
		return fail("queue declare", err)
	}
	for _, key := range directoryBindings {
		if err := ch.QueueBind(q.Name, key, DirectoryExchange, false, nil); err != nil {
			return fail("queue bind", err)
		}
	}
	// One unacked message at a time keeps enrollment ordering per queue.
	if err := ch.Qos(1, 0, false); err != nil {
		return fail("qos", err)
	}

	return &Consumer{conn: conn, channel: ch, logger: logger.With("component", "rabbitmq")}, nil
}

func (c *Consumer) Consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.channel.Consume(
		DirectoryQueue,
		"",    // consumer tag
		false, // manual ack after the store commits
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq consume: %w", err)
	}

	c.logger.Info("consuming", "queue", DirectoryQueue)
	return msgs, nil
}

func (c *Consumer) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
