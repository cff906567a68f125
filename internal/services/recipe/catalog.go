// Package recipe answers what one unit of a menu item consumes.
package recipe

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/store"
)

type Catalog struct {
	logger *logger.Logger
}

func NewCatalog(log *logger.Logger) *Catalog {
	return &Catalog{logger: log}
}

// RecipeFor returns the recipe lines of a menu item ordered by ingredient id.
// An item without recipe lines consumes nothing and yields an empty slice.
func (c *Catalog) RecipeFor(ctx context.Context, tx store.Tx, menuItemID int64) ([]models.RecipeLine, error) {
	lines, err := tx.RecipeLines(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe for menu item %d: %w", menuItemID, err)
	}
	if lines == nil {
		lines = []models.RecipeLine{}
	}
	return lines, nil
}

// IngredientCost is one row of a cost breakdown
type IngredientCost struct {
	IngredientID     int64           `json:"ingredient_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	QuantityRequired decimal.Decimal `json:"quantity_required"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Cost             decimal.Decimal `json:"cost"`
}

// CostBreakdown prices a menu item against the ingredients it consumes
type CostBreakdown struct {
	MenuItemID int64            `json:"menu_item_id"`
	Name       string           `json:"name"`
	Price      decimal.Decimal  `json:"price"`
	Lines      []IngredientCost `json:"lines"`
	TotalCost  decimal.Decimal  `json:"total_cost"`
	Profit     decimal.Decimal  `json:"profit"`
	// MarginPercent is nil when the item is free.
	MarginPercent *decimal.Decimal `json:"margin_percent,omitempty"`
}

// CostOf prices every recipe line at the ingredient's unit price. Lines are
// ordered by cost, most expensive first.
func (c *Catalog) CostOf(ctx context.Context, tx store.Tx, menuItemID int64) (*CostBreakdown, error) {
	item, err := tx.MenuItem(ctx, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item %d: %w", menuItemID, err)
	}

	recipe, err := c.RecipeFor(ctx, tx, menuItemID)
	if err != nil {
		return nil, err
	}

	breakdown := &CostBreakdown{
		MenuItemID: item.ID,
		Name:       item.Name,
		Price:      item.Price,
		Lines:      make([]IngredientCost, 0, len(recipe)),
		TotalCost:  decimal.Zero,
	}

	for _, line := range recipe {
		ing, err := tx.Ingredient(ctx, line.IngredientID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ingredient %d: %w", line.IngredientID, err)
		}
		cost := line.QuantityRequired.Mul(ing.UnitPrice)
		breakdown.Lines = append(breakdown.Lines, IngredientCost{
			IngredientID:     ing.ID,
			Name:             ing.Name,
			Unit:             ing.Unit,
			QuantityRequired: line.QuantityRequired,
			UnitPrice:        ing.UnitPrice,
			Cost:             cost,
		})
		breakdown.TotalCost = breakdown.TotalCost.Add(cost)
	}

	sort.SliceStable(breakdown.Lines, func(i, j int) bool {
		return breakdown.Lines[i].Cost.GreaterThan(breakdown.Lines[j].Cost)
	})

	breakdown.Profit = item.Price.Sub(breakdown.TotalCost)
	if item.Price.IsPositive() {
		margin := breakdown.Profit.Div(item.Price).Mul(decimal.NewFromInt(100)).Round(1)
		breakdown.MarginPercent = &margin
	}

	c.logger.Debug("cost_analysis", "Menu item costed", logger.RequestIDFrom(ctx), map[string]interface{}{
		"menu_item_id": menuItemID,
		"total_cost":   breakdown.TotalCost.String(),
		"ingredients":  len(breakdown.Lines),
	})

	return breakdown, nil
}
