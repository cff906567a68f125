package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"quickbite/internal/logger"
)

// ErrMalformed marks a message that can never be processed. Handlers wrap it
// so the delivery is dropped instead of requeued.
var ErrMalformed = errors.New("malformed message")

// MessageHandler processes one delivery body
type MessageHandler func(ctx context.Context, body []byte) error

// Consumer handles message consumption from RabbitMQ
type Consumer struct {
	conn        *Connection
	logger      *logger.Logger
	queueName   string
	consumerTag string
	prefetch    int
}

// NewConsumer creates a new message consumer
func NewConsumer(conn *Connection, log *logger.Logger, queueName, consumerTag string, prefetch int) *Consumer {
	return &Consumer{
		conn:        conn,
		logger:      log,
		queueName:   queueName,
		consumerTag: consumerTag,
		prefetch:    prefetch,
	}
}

// StartConsuming blocks, handing every delivery to handler until ctx ends.
// A closed delivery channel triggers one reconnect.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	for {
		if c.conn.IsClosed() {
			if err := c.conn.Reconnect(ctx); err != nil {
				return fmt.Errorf("failed to reconnect: %w", err)
			}
		}

		if err := c.conn.Channel().Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("failed to set QoS: %w", err)
		}

		msgs, err := c.conn.Channel().Consume(c.queueName, c.consumerTag, false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to register consumer: %w", err)
		}

		c.logger.Info("consumer_started",
			fmt.Sprintf("Started consuming from queue %s", c.queueName),
			"", map[string]interface{}{
				"queue":    c.queueName,
				"consumer": c.consumerTag,
				"prefetch": c.prefetch,
			})

		if err := c.drain(ctx, msgs, handler); err != nil {
			return err
		}

		c.logger.Error("consumer_channel_closed", "Message channel closed, attempting to reconnect", "", nil, nil)
		if err := c.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect after channel closed: %w", err)
		}
	}
}

// drain returns ctx.Err() when ctx ends and nil when msgs is closed
func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handler MessageHandler) error {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer_stopped", "Consumer stopped by context", "", nil)
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			c.processMessage(ctx, d, handler)
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, delivery amqp091.Delivery, handler MessageHandler) {
	start := time.Now()
	requestID := delivery.CorrelationId
	if requestID == "" {
		requestID = logger.GenerateRequestID()
	}

	processingCtx, cancel := context.WithTimeout(logger.WithRequestID(ctx, requestID), 30*time.Second)
	defer cancel()

	err := handler(processingCtx, delivery.Body)

	fields := map[string]interface{}{
		"queue":        c.queueName,
		"type":         delivery.Type,
		"routing_key":  delivery.RoutingKey,
		"delivery_tag": delivery.DeliveryTag,
		"duration_ms":  time.Since(start).Milliseconds(),
	}

	if err != nil {
		requeue := !errors.Is(err, ErrMalformed)
		fields["requeue"] = requeue
		c.logger.Error("message_processing_failed", "Failed to process message", requestID, err, fields)

		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			c.logger.Error("message_nack_failed", "Failed to nack message", requestID, nackErr, nil)
		}
		return
	}

	c.logger.Debug("message_processed", "Successfully processed message", requestID, fields)
	if ackErr := delivery.Ack(false); ackErr != nil {
		c.logger.Error("message_ack_failed", "Failed to ack message", requestID, ackErr, nil)
	}
}

// ParseMessage decodes a JSON body, wrapping failures in ErrMalformed
func ParseMessage(body []byte, v interface{}) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Close stops consuming messages
func (c *Consumer) Close() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Channel().Cancel(c.consumerTag, false); err != nil {
			c.logger.Error("consumer_cancel_failed", "Failed to cancel consumer", "", err, nil)
		}
		return c.conn.Close()
	}
	return nil
}
