package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/herbstock/herbstock-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Consumer dispatches events from one queue to handlers keyed by event type
type Consumer struct {
	rmq       *RabbitMQ
	queueName string
	handlers  map[string]MessageHandler
	logger    *logger.Logger
}

// queueDeclarer is the part of RabbitMQ a consumer needs to set up its queue
type queueDeclarer interface {
	DeclareDeadLetterQueue(serviceName string) error
	DeclareQueue(name string) (amqp.Queue, error)
}

// NewConsumer creates a new consumer for the given queue. Queue names are
// "<service>.<topic>"; the service's dead letter queue is declared first.
func NewConsumer(rmq *RabbitMQ, queueName string, log *logger.Logger) (*Consumer, error) {
	if err := declareConsumerQueue(rmq, queueName); err != nil {
		return nil, err
	}

	return &Consumer{
		rmq:       rmq,
		queueName: queueName,
		handlers:  make(map[string]MessageHandler),
		logger:    log,
	}, nil
}

func declareConsumerQueue(d queueDeclarer, queueName string) error {
	service, _, _ := strings.Cut(queueName, ".")
	if err := d.DeclareDeadLetterQueue(service); err != nil {
		return fmt.Errorf("failed to declare dead letter queue for %s: %w", service, err)
	}
	if _, err := d.DeclareQueue(queueName); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return nil
}

// Subscribe binds the queue to an exchange with a routing key pattern
func (c *Consumer) Subscribe(exchange, routingKeyPattern string) error {
	if err := c.rmq.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := c.rmq.BindQueue(c.queueName, exchange, routingKeyPattern); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	c.logger.Info().
		Str("queue", c.queueName).
		Str("exchange", exchange).
		Str("routing_key", routingKeyPattern).
		Msg("subscribed to exchange")

	return nil
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start consumes in a goroutine until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.rmq.Channel().Consume(
		c.queueName,
		"",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info().Str("queue", c.queueName).Msg("consumer started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.logger.Info().Str("queue", c.queueName).Msg("consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn().Str("queue", c.queueName).Msg("message channel closed")
					return
				}
				c.dispatch(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *Consumer) dispatch(ctx context.Context, msg amqp.Delivery) {
	switch c.Handle(ctx, msg.Body, msg.Redelivered) {
	case OutcomeAck:
		msg.Ack(false)
	case OutcomeRequeue:
		msg.Nack(false, true)
	default:
		msg.Reject(false)
	}
}

// Outcome tells the delivery loop how to settle a message
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
)

// Handle decodes one message body and runs the matching handler. A failing
// message is requeued once and dead-lettered on its redelivery.
func (c *Consumer) Handle(ctx context.Context, body []byte, redelivered bool) Outcome {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Str("queue", c.queueName).Msg("failed to unmarshal event")
		return OutcomeDeadLetter
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		c.logger.Debug().Str("event_type", event.Type).Msg("no handler registered for event type")
		return OutcomeAck
	}

	if err := handler(ctx, &event); err != nil {
		c.logger.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Bool("redelivered", redelivered).
			Msg("failed to process event")

		if redelivered {
			return OutcomeDeadLetter
		}
		return OutcomeRequeue
	}

	return OutcomeAck
}
