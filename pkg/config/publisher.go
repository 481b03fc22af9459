package config

import (
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TradeEventQueue receives a JSON event for every trade that reaches a
// terminal status.
const TradeEventQueue = "trade_events"

// Publisher publishes JSON messages to a RabbitMQ queue.
type Publisher struct {
	channel *amqp.Channel
	queue   string
}

// NewPublisher opens a channel and declares the queue. Requires
// InitRabbitMQ to have run.
func NewPublisher(queue string) (*Publisher, error) {
	if RabbitMQ == nil {
		return nil, fmt.Errorf("RabbitMQ connection not initialized")
	}

	ch, err := RabbitMQ.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	return &Publisher{channel: ch, queue: queue}, nil
}

// Publish marshals payload as JSON and sends it to the queue.
func (p *Publisher) Publish(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return p.channel.Publish(
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close releases the channel.
func (p *Publisher) Close() error {
	return p.channel.Close()
}
