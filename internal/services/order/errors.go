package order

import (
	"errors"
	"fmt"

	"quickbite/internal/services/stock"
)

var (
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrNoLines          = errors.New("order has no lines")
)

// ValidationError is returned for malformed input before anything is written.
// Err, when set, is one of the sentinels above.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Err
}

// UnavailableItemError means a requested menu item is withdrawn from sale
type UnavailableItemError struct {
	MenuItemID int64
}

func (e *UnavailableItemError) Error() string {
	return fmt.Sprintf("menu item %d is not available", e.MenuItemID)
}

// InsufficientStockError is re-exported so callers of this package need not
// import the stock ledger to match it.
type InsufficientStockError = stock.InsufficientStockError
