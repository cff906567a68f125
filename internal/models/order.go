package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType represents how an order is served
type OrderType string

const (
	DineIn  OrderType = "Dine-in"
	Takeout OrderType = "Takeout"
)

// OrderTypes lists every accepted order type in display order
var OrderTypes = []OrderType{DineIn, Takeout}

// OrderStatus represents the status of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusPreparing OrderStatus = "Preparing"
	StatusReady     OrderStatus = "Ready"
	StatusCompleted OrderStatus = "Completed"
	StatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every accepted status in lifecycle order
var OrderStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

// ParseOrderType matches s case-insensitively against the accepted order types
// and returns the canonical spelling.
func ParseOrderType(s string) (OrderType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range OrderTypes {
		if strings.EqualFold(string(t), s) {
			return t, true
		}
	}
	return "", false
}

// ParseOrderStatus matches s case-insensitively against the accepted statuses
// and returns the canonical spelling.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range OrderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Order represents a placed order
type Order struct {
	ID            int64           `json:"id" db:"id"`
	PlacedAt      time.Time       `json:"placed_at" db:"placed_at"`
	CustomerID    *int64          `json:"customer_id,omitempty" db:"customer_id"`
	EmployeeID    int64           `json:"employee_id" db:"employee_id"`
	RestaurantID  int64           `json:"restaurant_id" db:"restaurant_id"`
	Type          OrderType       `json:"order_type" db:"order_type"`
	Status        OrderStatus     `json:"status" db:"status"`
	TotalAmount   decimal.Decimal `json:"total_amount" db:"total_amount"`
	// StockRestored is set once a cancellation has given the order's
	// ingredients back. It is never cleared.
	StockRestored bool            `json:"stock_restored" db:"stock_restored"`
	Lines         []OrderLine     `json:"lines,omitempty"`
}

// OrderLine is one priced menu item entry within an order. Lines are never
// mutated after the order commits.
type OrderLine struct {
	OrderID    int64           `json:"order_id" db:"order_id"`
	MenuItemID int64           `json:"menu_item_id" db:"menu_item_id"`
	Quantity   int             `json:"quantity" db:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	Note       *string         `json:"note,omitempty" db:"note"`
}

// LoyaltyPointsFor awards 10 points per whole 10 of total, truncated.
func LoyaltyPointsFor(total decimal.Decimal) int {
	if !total.IsPositive() {
		return 0
	}
	return int(total.Div(decimal.NewFromInt(10)).Floor().IntPart()) * 10
}
