package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"quickbite/internal/logger"
	"quickbite/internal/models"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// channelSource is what the publisher needs from a Connection
type channelSource interface {
	IsClosed() bool
	Reconnect(ctx context.Context) error
	publishChannel() amqpChannel
}

// Publisher handles message publishing to RabbitMQ
type Publisher struct {
	conn   channelSource
	logger *logger.Logger
}

// NewPublisher creates a new message publisher
func NewPublisher(conn *Connection, log *logger.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: log,
	}
}

// PublishOrderPlaced routes a committed order to the queue of its order type
func (p *Publisher) PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error {
	routingKey := models.OrderRoutingKey(models.OrderType(msg.OrderType), msg.RestaurantID)
	return p.publishMessage(ctx, OrdersExchange, routingKey, models.EventOrderPlaced, msg, true)
}

// PublishStatusChanged broadcasts a status change to every notification subscriber
func (p *Publisher) PublishStatusChanged(ctx context.Context, msg *models.StatusUpdateMessage) error {
	return p.publishMessage(ctx, NotificationsExchange, "", models.EventStatusChanged, msg, false)
}

func newPublishing(eventType string, message interface{}, persistent bool) (amqp091.Publishing, error) {
	body, err := json.Marshal(message)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	deliveryMode := amqp091.Transient
	if persistent {
		deliveryMode = amqp091.Persistent
	}

	return amqp091.Publishing{
		ContentType:  "application/json",
		Type:         eventType,
		MessageId:    uuid.NewString(),
		Body:         body,
		DeliveryMode: deliveryMode,
		Timestamp:    time.Now().UTC(),
	}, nil
}

func (p *Publisher) publishMessage(ctx context.Context, exchange, routingKey, eventType string, message interface{}, persistent bool) error {
	requestID := logger.RequestIDFrom(ctx)

	if p.conn.IsClosed() {
		if err := p.conn.Reconnect(ctx); err != nil {
			return fmt.Errorf("failed to reconnect: %w", err)
		}
	}

	publishing, err := newPublishing(eventType, message, persistent)
	if err != nil {
		return err
	}
	publishing.CorrelationId = requestID

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = p.conn.publishChannel().PublishWithContext(ctx, exchange, routingKey, false, false, publishing)
	if err != nil {
		p.logger.Error("message_publish_failed",
			fmt.Sprintf("Failed to publish message to exchange %s", exchange),
			requestID, err, map[string]interface{}{
				"exchange":    exchange,
				"routing_key": routingKey,
			})
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.Debug("message_published",
		fmt.Sprintf("Published %s to exchange %s", eventType, exchange),
		requestID, map[string]interface{}{
			"exchange":     exchange,
			"routing_key":  routingKey,
			"message_id":   publishing.MessageId,
			"message_size": len(publishing.Body),
		})

	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	if c, ok := p.conn.(*Connection); ok {
		return c.Close()
	}
	return nil
}
