package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlacedMessage is published once an order has committed
type OrderPlacedMessage struct {
	OrderID             int64           `json:"order_id"`
	RestaurantID        int64           `json:"restaurant_id"`
	OrderType           string          `json:"order_type"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	LineCount           int             `json:"line_count"`
	LoyaltyPointsEarned int             `json:"loyalty_points_earned"`
	Timestamp           time.Time       `json:"timestamp"`
}

// StatusUpdateMessage represents a status update notification
type StatusUpdateMessage struct {
	OrderID       int64     `json:"order_id"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	StockRestored bool      `json:"stock_restored"`
	Timestamp     time.Time `json:"timestamp"`
}

// Event types carried in the AMQP message Type field
const (
	EventOrderPlaced   = "order.placed"
	EventStatusChanged = "order.status_changed"
)

// NewStatusUpdateMessage creates a StatusUpdateMessage stamped with the current time
func NewStatusUpdateMessage(orderID int64, oldStatus, newStatus OrderStatus, stockRestored bool) *StatusUpdateMessage {
	return &StatusUpdateMessage{
		OrderID:       orderID,
		OldStatus:     string(oldStatus),
		NewStatus:     string(newStatus),
		StockRestored: stockRestored,
		Timestamp:     time.Now().UTC(),
	}
}

// OrderRoutingKey generates the topic routing key for order events
func OrderRoutingKey(orderType OrderType, restaurantID int64) string {
	return fmt.Sprintf("orders.%s.%d", routingSegment(orderType), restaurantID)
}

func routingSegment(t OrderType) string {
	switch t {
	case DineIn:
		return "dine_in"
	case Takeout:
		return "takeout"
	default:
		return "unknown"
	}
}
