package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"quickbite/internal/models"
	"quickbite/internal/store"
)

// SQLSTATE check_violation; raised by current_stock >= 0
const checkViolation = "23514"

type pgTx struct {
	tx pgx.Tx
}

var _ store.Tx = (*pgTx)(nil)

func notFound(err error, entity store.Entity, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.NotFound(entity, id)
	}
	return err
}

func (t *pgTx) Exists(ctx context.Context, entity store.Entity, id int64) (bool, error) {
	query, ok := existsSQL[entity]
	if !ok {
		return false, fmt.Errorf("unknown entity %q", entity)
	}

	var exists bool
	if err := t.tx.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (t *pgTx) MenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	var item models.MenuItem
	err := t.tx.QueryRow(ctx, GetMenuItemSQL, id).Scan(&item.ID, &item.Name, &item.Price, &item.Available)
	if err != nil {
		return nil, notFound(err, store.EntityMenuItem, id)
	}
	return &item, nil
}

func (t *pgTx) RecipeLines(ctx context.Context, menuItemID int64) ([]models.RecipeLine, error) {
	rows, err := t.tx.Query(ctx, GetRecipeLinesSQL, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.RecipeLine{}
	for rows.Next() {
		var l models.RecipeLine
		if err := rows.Scan(&l.MenuItemID, &l.IngredientID, &l.QuantityRequired); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func scanIngredient(row pgx.Row) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := row.Scan(&ing.ID, &ing.Name, &ing.Unit, &ing.CurrentStock, &ing.ReorderLevel, &ing.UnitPrice)
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

func (t *pgTx) Ingredient(ctx context.Context, id int64) (*models.Ingredient, error) {
	ing, err := scanIngredient(t.tx.QueryRow(ctx, GetIngredientSQL, id))
	if err != nil {
		return nil, notFound(err, store.EntityIngredient, id)
	}
	return ing, nil
}

func (t *pgTx) LockIngredient(ctx context.Context, id int64) (*models.Ingredient, error) {
	ing, err := scanIngredient(t.tx.QueryRow(ctx, LockIngredientSQL, id))
	if err != nil {
		return nil, notFound(err, store.EntityIngredient, id)
	}
	return ing, nil
}

func (t *pgTx) AdjustStock(ctx context.Context, ingredientID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	var stock decimal.Decimal
	err := t.tx.QueryRow(ctx, AdjustStockSQL, ingredientID, delta).Scan(&stock)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == checkViolation {
			return decimal.Zero, fmt.Errorf("ingredient %d: stock cannot go below zero: %w", ingredientID, err)
		}
		return decimal.Zero, notFound(err, store.EntityIngredient, ingredientID)
	}
	return stock, nil
}

func (t *pgTx) LowStockIngredients(ctx context.Context) ([]models.Ingredient, error) {
	rows, err := t.tx.Query(ctx, GetLowStockIngredientsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ings := []models.Ingredient{}
	for rows.Next() {
		ing, err := scanIngredient(rows)
		if err != nil {
			return nil, err
		}
		ings = append(ings, *ing)
	}
	return ings, rows.Err()
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	return t.tx.QueryRow(ctx, InsertOrderSQL,
		o.CustomerID,
		o.EmployeeID,
		o.RestaurantID,
		string(o.Type),
		string(o.Status),
		o.TotalAmount,
	).Scan(&o.ID, &o.PlacedAt)
}

func (t *pgTx) InsertOrderLine(ctx context.Context, line models.OrderLine) error {
	_, err := t.tx.Exec(ctx, InsertOrderLineSQL,
		line.OrderID,
		line.MenuItemID,
		line.Quantity,
		line.Subtotal,
		line.Note,
	)
	return err
}

// execOne runs an UPDATE that must hit exactly one row
func (t *pgTx) execOne(ctx context.Context, entity store.Entity, id int64, sql string, args ...interface{}) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound(entity, id)
	}
	return nil
}

func (t *pgTx) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	return t.execOne(ctx, store.EntityOrder, orderID, UpdateOrderTotalSQL, orderID, total)
}

func (t *pgTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	return t.execOne(ctx, store.EntityOrder, orderID, UpdateOrderStatusSQL, orderID, string(status))
}

func (t *pgTx) MarkStockRestored(ctx context.Context, orderID int64) error {
	return t.execOne(ctx, store.EntityOrder, orderID, MarkStockRestoredSQL, orderID)
}

func (t *pgTx) AddLoyaltyPoints(ctx context.Context, customerID int64, points int) error {
	return t.execOne(ctx, store.EntityCustomer, customerID, AddLoyaltyPointsSQL, customerID, points)
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o         models.Order
		orderType string
		status    string
	)
	err := row.Scan(&o.ID, &o.PlacedAt, &o.CustomerID, &o.EmployeeID, &o.RestaurantID, &orderType, &status, &o.TotalAmount, &o.StockRestored)
	if err != nil {
		return nil, err
	}
	o.Type = models.OrderType(orderType)
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func (t *pgTx) Order(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, GetOrderSQL, id))
	if err != nil {
		return nil, notFound(err, store.EntityOrder, id)
	}
	return o, nil
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, LockOrderSQL, id))
	if err != nil {
		return nil, notFound(err, store.EntityOrder, id)
	}
	return o, nil
}

func (t *pgTx) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	rows, err := t.tx.Query(ctx, GetOrderLinesSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := []models.OrderLine{}
	for rows.Next() {
		var l models.OrderLine
		if err := rows.Scan(&l.OrderID, &l.MenuItemID, &l.Quantity, &l.Subtotal, &l.Note); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
