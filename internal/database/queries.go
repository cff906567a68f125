package database

import "quickbite/internal/store"

// Catalog queries
const (
	GetMenuItemSQL = `
		SELECT id, name, price, is_available
		FROM menu_items WHERE id = $1`

	GetRecipeLinesSQL = `
		SELECT menu_item_id, ingredient_id, quantity_required
		FROM recipe_lines
		WHERE menu_item_id = $1
		ORDER BY ingredient_id`
)

// Ingredient queries
const (
	GetIngredientSQL = `
		SELECT id, name, unit, current_stock, reorder_level, unit_price
		FROM ingredients WHERE id = $1`

	LockIngredientSQL = GetIngredientSQL + `
		FOR UPDATE`

	AdjustStockSQL = `
		UPDATE ingredients SET current_stock = current_stock + $2
		WHERE id = $1
		RETURNING current_stock`

	GetLowStockIngredientsSQL = `
		SELECT id, name, unit, current_stock, reorder_level, unit_price
		FROM ingredients
		WHERE current_stock <= reorder_level
		ORDER BY current_stock / NULLIF(reorder_level, 0) NULLS FIRST, id`
)

// Order queries
const (
	InsertOrderSQL = `
		INSERT INTO orders (customer_id, employee_id, restaurant_id, order_type, status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, placed_at`

	InsertOrderLineSQL = `
		INSERT INTO order_lines (order_id, menu_item_id, quantity, subtotal, note)
		VALUES ($1, $2, $3, $4, $5)`

	UpdateOrderTotalSQL = `
		UPDATE orders SET total_amount = $2 WHERE id = $1`

	UpdateOrderStatusSQL = `
		UPDATE orders SET status = $2 WHERE id = $1`

	MarkStockRestoredSQL = `
		UPDATE orders SET stock_restored = TRUE WHERE id = $1`

	GetOrderSQL = `
		SELECT id, placed_at, customer_id, employee_id, restaurant_id, order_type, status, total_amount, stock_restored
		FROM orders WHERE id = $1`

	LockOrderSQL = GetOrderSQL + `
		FOR UPDATE`

	GetOrderLinesSQL = `
		SELECT order_id, menu_item_id, quantity, subtotal, note
		FROM order_lines
		WHERE order_id = $1
		ORDER BY menu_item_id`
)

// Customer queries
const (
	AddLoyaltyPointsSQL = `
		UPDATE customers SET loyalty_points = loyalty_points + $2
		WHERE id = $1`
)

// existsSQL holds one lookup per entity. Table names never come from input.
var existsSQL = map[store.Entity]string{
	store.EntityCustomer:   `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`,
	store.EntityEmployee:   `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`,
	store.EntityRestaurant: `SELECT EXISTS (SELECT 1 FROM restaurants WHERE id = $1)`,
	store.EntityMenuItem:   `SELECT EXISTS (SELECT 1 FROM menu_items WHERE id = $1)`,
	store.EntityIngredient: `SELECT EXISTS (SELECT 1 FROM ingredients WHERE id = $1)`,
	store.EntityOrder:      `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`,
}
