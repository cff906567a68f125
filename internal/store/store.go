// Package store defines the relational data store the order core runs against.
//
// Every workflow step receives a Tx that is scoped to one all-or-nothing
// transaction. Store.WithinTx commits when the callback returns nil and rolls
// back on any error or panic, so callers never handle Begin/Commit/Rollback.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"quickbite/internal/models"
)

// Entity names a table the order core looks rows up in
type Entity string

const (
	EntityCustomer   Entity = "customer"
	EntityEmployee   Entity = "employee"
	EntityRestaurant Entity = "restaurant"
	EntityMenuItem   Entity = "menu item"
	EntityIngredient Entity = "ingredient"
	EntityOrder      Entity = "order"
)

// ErrNotFound matches every NotFoundError via errors.Is
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing row by entity and key
type NotFoundError struct {
	Entity Entity
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NotFound builds a NotFoundError
func NotFound(entity Entity, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Store opens scoped transactions
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of row operations available inside one transaction
type Tx interface {
	// Exists reports whether a row with the given key exists.
	Exists(ctx context.Context, entity Entity, id int64) (bool, error)

	MenuItem(ctx context.Context, id int64) (*models.MenuItem, error)
	RecipeLines(ctx context.Context, menuItemID int64) ([]models.RecipeLine, error)

	Ingredient(ctx context.Context, id int64) (*models.Ingredient, error)
	// LockIngredient reads an ingredient and holds a row lock until the
	// transaction ends.
	LockIngredient(ctx context.Context, id int64) (*models.Ingredient, error)
	// AdjustStock adds delta (which may be negative) and returns the new stock.
	AdjustStock(ctx context.Context, ingredientID int64, delta decimal.Decimal) (decimal.Decimal, error)
	LowStockIngredients(ctx context.Context) ([]models.Ingredient, error)

	// InsertOrder persists o and fills in its ID and PlacedAt.
	InsertOrder(ctx context.Context, o *models.Order) error
	InsertOrderLine(ctx context.Context, line models.OrderLine) error
	UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	Order(ctx context.Context, id int64) (*models.Order, error)
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error
	// MarkStockRestored records that the order's stock has been given back.
	MarkStockRestored(ctx context.Context, orderID int64) error

	AddLoyaltyPoints(ctx context.Context, customerID int64, points int) error
}
