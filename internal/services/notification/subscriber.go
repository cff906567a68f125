package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"quickbite/internal/logger"
	"quickbite/internal/messaging"
	"quickbite/internal/models"
)

// consumer is the part of messaging.Consumer the subscriber drives
type consumer interface {
	StartConsuming(ctx context.Context, handler messaging.MessageHandler) error
	Close() error
}

// Subscriber prints status change notifications as they arrive
type Subscriber struct {
	consumer consumer
	logger   *logger.Logger
	out      io.Writer
}

// NewSubscriber creates a new notification subscriber writing to stdout
func NewSubscriber(c *messaging.Consumer, log *logger.Logger) *Subscriber {
	return &Subscriber{
		consumer: c,
		logger:   log,
		out:      os.Stdout,
	}
}

// Start blocks until ctx is cancelled or the consumer gives up
func (s *Subscriber) Start(ctx context.Context) error {
	requestID := logger.GenerateRequestID()
	s.logger.Info("service_started", "Notification subscriber started", requestID, nil)

	err := s.consumer.StartConsuming(ctx, s.handleNotification)

	if closeErr := s.consumer.Close(); closeErr != nil {
		s.logger.Error("consumer_close_failed", "Failed to close consumer", requestID, closeErr, nil)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("consumer_failed", "Notification consumer failed", requestID, err, nil)
		return err
	}

	s.logger.Info("graceful_shutdown", "Notification subscriber stopped", requestID, nil)
	return nil
}

func (s *Subscriber) handleNotification(ctx context.Context, body []byte) error {
	requestID := logger.RequestIDFrom(ctx)

	var update models.StatusUpdateMessage
	if err := messaging.ParseMessage(body, &update); err != nil {
		return err
	}
	if update.OrderID == 0 || update.NewStatus == "" {
		return fmt.Errorf("%w: status update without order id or status", messaging.ErrMalformed)
	}

	if _, err := fmt.Fprintln(s.out, formatNotification(&update)); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	s.logger.Info("notification_displayed", "Notification displayed to user", requestID, map[string]interface{}{
		"order_id":       update.OrderID,
		"old_status":     update.OldStatus,
		"new_status":     update.NewStatus,
		"stock_restored": update.StockRestored,
	})
	return nil
}

func formatNotification(update *models.StatusUpdateMessage) string {
	timestamp := update.Timestamp.Format("2006-01-02 15:04:05")

	switch models.OrderStatus(update.NewStatus) {
	case models.StatusPreparing:
		return fmt.Sprintf("[%s] Order %d is now being prepared.", timestamp, update.OrderID)
	case models.StatusReady:
		return fmt.Sprintf("[%s] Order %d is ready for pickup.", timestamp, update.OrderID)
	case models.StatusCompleted:
		return fmt.Sprintf("[%s] Order %d has been completed.", timestamp, update.OrderID)
	case models.StatusCancelled:
		if update.StockRestored {
			return fmt.Sprintf("[%s] Order %d has been cancelled. Ingredients returned to stock.", timestamp, update.OrderID)
		}
		return fmt.Sprintf("[%s] Order %d has been cancelled.", timestamp, update.OrderID)
	default:
		return fmt.Sprintf("[%s] Order %d status changed from '%s' to '%s'.",
			timestamp, update.OrderID, update.OldStatus, update.NewStatus)
	}
}
