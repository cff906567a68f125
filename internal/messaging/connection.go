package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"quickbite/internal/config"
	"quickbite/internal/logger"
)

const (
	OrdersExchange        = "orders_topic"
	NotificationsExchange = "notifications_fanout"
	NotificationsQueue    = "notifications_queue"
)

type exchangeSpec struct {
	name string
	kind string
}

type queueSpec struct {
	name       string
	exchange   string
	routingKey string
	args       amqp091.Table
}

var exchanges = []exchangeSpec{
	{OrdersExchange, amqp091.ExchangeTopic},
	{NotificationsExchange, amqp091.ExchangeFanout},
}

// queues receive order events per order type; routing keys look like
// orders.<type>.<restaurant id>. The order queues are read by consumers outside
// this module, such as kitchen displays.
var queues = []queueSpec{
	{"orders_dine_in_queue", OrdersExchange, "orders.dine_in.*", amqp091.Table{"x-message-ttl": int32(300000)}},
	{"orders_takeout_queue", OrdersExchange, "orders.takeout.*", amqp091.Table{"x-message-ttl": int32(300000)}},
	{NotificationsQueue, NotificationsExchange, "", nil},
}

// Connection wraps RabbitMQ connection with reconnection logic
type Connection struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
	logger  *logger.Logger
	url     string
}

// New creates a new RabbitMQ connection. ctx bounds the startup retries.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Connection, error) {
	conn := &Connection{
		logger: log,
		url:    cfg.RabbitMQURL(),
	}

	if err := conn.connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to establish initial connection: %w", err)
	}

	return conn, nil
}

// connect establishes connection to RabbitMQ with retry logic. Waiting between
// attempts ends early when ctx is done.
func (c *Connection) connect(ctx context.Context) error {
	maxRetries := 5
	var err error

	for i := 0; i < maxRetries; i++ {
		if err = c.dial(); err == nil {
			return nil
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(i+1) * 2 * time.Second
			c.logger.Error("rabbitmq_connection_failed",
				fmt.Sprintf("Failed to connect to RabbitMQ, retrying in %v", waitTime),
				"startup", err, nil)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}
	}

	return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
}

func (c *Connection) dial() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return err
	}

	c.conn, c.channel = conn, ch
	if err := c.setupTopology(); err != nil {
		c.logger.Error("rabbitmq_setup_failed", "Failed to set up topology", "startup", err, nil)
		c.close()
		return err
	}
	return nil
}

// setupTopology declares the exchanges and queues order events flow through
func (c *Connection) setupTopology() error {
	for _, ex := range exchanges {
		if err := c.channel.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare %s exchange: %w", ex.name, err)
		}
	}

	for _, q := range queues {
		if _, err := c.channel.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q.name, err)
		}
		if err := c.channel.QueueBind(q.name, q.routingKey, q.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s with routing key %q: %w", q.name, q.routingKey, err)
		}
	}

	return nil
}

// Channel returns the current channel
func (c *Connection) Channel() *amqp091.Channel {
	return c.channel
}

func (c *Connection) publishChannel() amqpChannel {
	return c.channel
}

// Close closes the connection
func (c *Connection) Close() error {
	return c.close()
}

func (c *Connection) close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsClosed checks if the connection is closed
func (c *Connection) IsClosed() bool {
	return c.conn == nil || c.conn.IsClosed()
}

// Reconnect attempts to reconnect to RabbitMQ
func (c *Connection) Reconnect(ctx context.Context) error {
	c.close()
	return c.connect(ctx)
}
