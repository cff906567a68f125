package models

import "github.com/shopspring/decimal"

// MenuItem is a sellable item. Availability is toggled outside the order core.
type MenuItem struct {
	ID        int64           `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Available bool            `json:"available" db:"is_available"`
}

// RecipeLine says how much of one ingredient a single unit of a menu item consumes.
type RecipeLine struct {
	MenuItemID       int64           `json:"menu_item_id" db:"menu_item_id"`
	IngredientID     int64           `json:"ingredient_id" db:"ingredient_id"`
	QuantityRequired decimal.Decimal `json:"quantity_required" db:"quantity_required"`
}

// Ingredient is a stock-keeping unit in the stock ledger
type Ingredient struct {
	ID           int64           `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Unit         string          `json:"unit" db:"unit"`
	CurrentStock decimal.Decimal `json:"current_stock" db:"current_stock"`
	ReorderLevel decimal.Decimal `json:"reorder_level" db:"reorder_level"`
	UnitPrice    decimal.Decimal `json:"unit_price" db:"unit_price"`
}

// NeedsReorder reports whether stock has fallen to the reorder level.
func (i Ingredient) NeedsReorder() bool {
	return i.CurrentStock.LessThanOrEqual(i.ReorderLevel)
}

// Customer carries the loyalty balance touched by order placement
type Customer struct {
	ID            int64  `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	LoyaltyPoints int    `json:"loyalty_points" db:"loyalty_points"`
}
