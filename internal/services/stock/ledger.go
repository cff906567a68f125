// Package stock keeps ingredient stock levels in step with the orders that
// consume them.
package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/store"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidAmount   = errors.New("restock amount must be positive")
)

// InsufficientStockError is returned when an ingredient cannot cover a demand
type InsufficientStockError struct {
	IngredientID int64
	Name         string
	Required     decimal.Decimal
	Available    decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for ingredient %d (%s): required %s, available %s",
		e.IngredientID, e.Name, e.Required, e.Available)
}

// RecipeSource resolves the recipe of a menu item
type RecipeSource interface {
	RecipeFor(ctx context.Context, tx store.Tx, menuItemID int64) ([]models.RecipeLine, error)
}

// Demand is a requested quantity of one menu item
type Demand struct {
	MenuItemID int64
	Quantity   int
}

type Ledger struct {
	recipes RecipeSource
	logger  *logger.Logger
}

func NewLedger(recipes RecipeSource, log *logger.Logger) *Ledger {
	return &Ledger{
		recipes: recipes,
		logger:  log,
	}
}

func required(line models.RecipeLine, qty int) decimal.Decimal {
	return line.QuantityRequired.Mul(decimal.NewFromInt(int64(qty)))
}

// CheckAvailability reports whether qty units of a menu item can be made right
// now. A missing or withdrawn menu item is simply not available. Nothing is
// locked or written.
func (l *Ledger) CheckAvailability(ctx context.Context, tx store.Tx, menuItemID int64, qty int) (bool, error) {
	if qty < 1 {
		return false, ErrInvalidQuantity
	}

	item, err := tx.MenuItem(ctx, menuItemID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load menu item %d: %w", menuItemID, err)
	}
	if !item.Available {
		return false, nil
	}

	recipe, err := l.recipes.RecipeFor(ctx, tx, menuItemID)
	if err != nil {
		return false, err
	}

	for _, line := range recipe {
		ing, err := tx.Ingredient(ctx, line.IngredientID)
		if err != nil {
			return false, fmt.Errorf("failed to load ingredient %d: %w", line.IngredientID, err)
		}
		if ing.CurrentStock.LessThan(required(line, qty)) {
			return false, nil
		}
	}

	return true, nil
}

// demand is the total quantity of every ingredient a set of items needs, with
// ingredient ids in ascending order
type demand struct {
	ids   []int64
	total map[int64]decimal.Decimal
}

func (l *Ledger) aggregate(ctx context.Context, tx store.Tx, demands []Demand) (*demand, error) {
	d := &demand{total: make(map[int64]decimal.Decimal)}
	for _, dm := range demands {
		if dm.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		recipe, err := l.recipes.RecipeFor(ctx, tx, dm.MenuItemID)
		if err != nil {
			return nil, err
		}
		for _, line := range recipe {
			sum, ok := d.total[line.IngredientID]
			if !ok {
				sum = decimal.Zero
				d.ids = append(d.ids, line.IngredientID)
			}
			d.total[line.IngredientID] = sum.Add(required(line, dm.Quantity))
		}
	}
	sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })
	return d, nil
}

// CheckDemand sums the recipe demand of every requested item per ingredient
// and fails on the first ingredient, by id, whose stock cannot cover the sum.
// Items that share an ingredient are therefore checked together.
func (l *Ledger) CheckDemand(ctx context.Context, tx store.Tx, demands []Demand) error {
	d, err := l.aggregate(ctx, tx, demands)
	if err != nil {
		return err
	}

	for _, id := range d.ids {
		ing, err := tx.Ingredient(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load ingredient %d: %w", id, err)
		}
		if ing.CurrentStock.LessThan(d.total[id]) {
			return &InsufficientStockError{
				IngredientID: id,
				Name:         ing.Name,
				Required:     d.total[id],
				Available:    ing.CurrentStock,
			}
		}
	}

	return nil
}

// Consume decrements stock for qty units of a menu item
func (l *Ledger) Consume(ctx context.Context, tx store.Tx, menuItemID int64, qty int) error {
	return l.ConsumeAll(ctx, tx, []Demand{{MenuItemID: menuItemID, Quantity: qty}})
}

// ConsumeAll decrements stock for a whole order. Ingredient rows are locked in
// ascending id order and re-checked against the summed demand before they are
// written, so stock never goes negative even if it moved since CheckDemand.
func (l *Ledger) ConsumeAll(ctx context.Context, tx store.Tx, demands []Demand) error {
	d, err := l.aggregate(ctx, tx, demands)
	if err != nil {
		return err
	}

	for _, id := range d.ids {
		ing, err := tx.LockIngredient(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock ingredient %d: %w", id, err)
		}

		need := d.total[id]
		if ing.CurrentStock.LessThan(need) {
			return &InsufficientStockError{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Required:     need,
				Available:    ing.CurrentStock,
			}
		}

		if _, err := tx.AdjustStock(ctx, id, need.Neg()); err != nil {
			return fmt.Errorf("failed to decrement ingredient %d: %w", id, err)
		}
	}

	return nil
}

// Restore gives back what every persisted line of an order consumed, using
// the current recipes. Rows are locked in ascending id order. It returns the
// number of ingredient rows touched.
func (l *Ledger) Restore(ctx context.Context, tx store.Tx, orderID int64) (int, error) {
	lines, err := tx.OrderLines(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("failed to load lines of order %d: %w", orderID, err)
	}

	demands := make([]Demand, 0, len(lines))
	for _, ol := range lines {
		demands = append(demands, Demand{MenuItemID: ol.MenuItemID, Quantity: ol.Quantity})
	}
	d, err := l.aggregate(ctx, tx, demands)
	if err != nil {
		return 0, err
	}

	for i, id := range d.ids {
		if _, err := tx.LockIngredient(ctx, id); err != nil {
			return i, fmt.Errorf("failed to lock ingredient %d: %w", id, err)
		}
		if _, err := tx.AdjustStock(ctx, id, d.total[id]); err != nil {
			return i, fmt.Errorf("failed to restore ingredient %d: %w", id, err)
		}
	}

	return len(d.ids), nil
}

// Restock adds a delivery to an ingredient and returns the updated row
func (l *Ledger) Restock(ctx context.Context, tx store.Tx, ingredientID int64, amount decimal.Decimal) (*models.Ingredient, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	ing, err := tx.LockIngredient(ctx, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock ingredient %d: %w", ingredientID, err)
	}

	newStock, err := tx.AdjustStock(ctx, ingredientID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to restock ingredient %d: %w", ingredientID, err)
	}
	ing.CurrentStock = newStock

	l.logger.Info("ingredient_restocked", "Ingredient restocked", logger.RequestIDFrom(ctx), map[string]interface{}{
		"ingredient_id": ingredientID,
		"amount":        amount.String(),
		"current_stock": newStock.String(),
	})

	return ing, nil
}

// LowStock lists ingredients at or below their reorder level, lowest ratio first
func (l *Ledger) LowStock(ctx context.Context, tx store.Tx) ([]models.Ingredient, error) {
	ings, err := tx.LowStockIngredients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock ingredients: %w", err)
	}
	if ings == nil {
		ings = []models.Ingredient{}
	}
	return ings, nil
}
