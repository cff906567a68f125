package database

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/services/order"
	"quickbite/internal/store"
)

const seedSQL = `
	INSERT INTO restaurants (id, name) VALUES (1, 'Downtown');
	INSERT INTO employees (id, restaurant_id, name, position) VALUES (1, 1, 'Sam', 'Cashier');
	INSERT INTO customers (id, name, loyalty_points) VALUES (1, 'Ana', 5);
	INSERT INTO menu_items (id, name, price, is_available) VALUES
		(1, 'Cheeseburger', 8.50, TRUE),
		(2, 'Fries', 3.20, TRUE),
		(3, 'Soup', 4.00, FALSE);
	INSERT INTO ingredients (id, name, unit, current_stock, reorder_level, unit_price) VALUES
		(10, 'Cheese', 'slice', 10, 3, 0.25),
		(20, 'Bun', 'pc', 30, 5, 0.40),
		(30, 'Potato', 'kg', 5, 1, 1.10);
	INSERT INTO recipe_lines (menu_item_id, ingredient_id, quantity_required) VALUES
		(1, 10, 2), (1, 20, 1), (2, 30, 0.3);`

type PostgresSuite struct {
	suite.Suite
	container *postgres.PostgresContainer
	db        *DB
	svc       *order.Service
}

func TestPostgresSuite(t *testing.T) {
	if os.Getenv("QUICKBITE_INTEGRATION") != "1" {
		t.Skip("set QUICKBITE_INTEGRATION=1 to run PostgreSQL integration tests")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("quickbite"),
		postgres.WithUsername("quickbite"),
		postgres.WithPassword("quickbite"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	log := logger.Discard()
	s.db, err = Connect(ctx, dsn, 8, log)
	s.Require().NoError(err)
	s.Require().NoError(s.db.RunMigrations(ctx))

	s.svc = order.NewService(s.db, nil, log)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *PostgresSuite) SetupTest() {
	ctx := context.Background()
	_, err := s.db.Pool.Exec(ctx, `TRUNCATE order_lines, orders, recipe_lines, ingredients, menu_items, customers, employees, restaurants RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
	_, err = s.db.Pool.Exec(ctx, seedSQL)
	s.Require().NoError(err)
}

func (s *PostgresSuite) stock(id int64) decimal.Decimal {
	var v decimal.Decimal
	err := s.db.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		ing, err := tx.Ingredient(ctx, id)
		if err != nil {
			return err
		}
		v = ing.CurrentStock
		return nil
	})
	s.Require().NoError(err)
	return v
}

func (s *PostgresSuite) count(table string) int {
	var n int
	s.Require().NoError(s.db.Pool.QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func burgers(qty int) order.PlaceOrderRequest {
	return order.PlaceOrderRequest{
		CustomerID:   1,
		EmployeeID:   1,
		RestaurantID: 1,
		OrderType:    "takeout",
		Lines:        []order.LineRequest{{MenuItemID: 1, Quantity: qty}},
	}
}

func (s *PostgresSuite) TestCheeseburgerScenario() {
	ctx := context.Background()

	res, err := s.svc.PlaceOrder(ctx, burgers(4))
	s.Require().NoError(err)
	s.True(res.TotalAmount.Equal(decimal.RequireFromString("34")))
	s.Equal(30, res.LoyaltyPointsEarned)
	s.True(s.stock(10).Equal(decimal.NewFromInt(2)))

	_, err = s.svc.PlaceOrder(ctx, burgers(5))
	var ise *order.InsufficientStockError
	s.Require().ErrorAs(err, &ise)
	s.True(s.stock(10).Equal(decimal.NewFromInt(2)))
	s.Equal(1, s.count("orders"))

	change, err := s.svc.SetOrderStatus(ctx, res.OrderID, "CANCELLED")
	s.Require().NoError(err)
	s.True(change.StockRestored)
	s.True(s.stock(10).Equal(decimal.NewFromInt(10)))
	s.True(s.stock(20).Equal(decimal.NewFromInt(30)))

	o, err := s.svc.GetOrder(ctx, res.OrderID)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, o.Status)
	s.Equal(models.Takeout, o.Type)
	s.Len(o.Lines, 1)
}

func (s *PostgresSuite) TestRecancelRestoresOnce() {
	ctx := context.Background()

	res, err := s.svc.PlaceOrder(ctx, burgers(2))
	s.Require().NoError(err)
	s.True(s.stock(10).Equal(decimal.NewFromInt(6)))

	for _, step := range []struct {
		status   string
		restored bool
	}{
		{"Cancelled", true},
		{"Pending", false},
		{"Cancelled", false},
	} {
		change, err := s.svc.SetOrderStatus(ctx, res.OrderID, step.status)
		s.Require().NoError(err)
		s.Equal(step.restored, change.StockRestored, step.status)
	}

	s.True(s.stock(10).Equal(decimal.NewFromInt(10)))
	s.True(s.stock(20).Equal(decimal.NewFromInt(30)))

	o, err := s.svc.GetOrder(ctx, res.OrderID)
	s.Require().NoError(err)
	s.True(o.StockRestored)
}

func (s *PostgresSuite) TestRejectedOrderPersistsNothing() {
	req := burgers(1)
	req.Lines = append(req.Lines, order.LineRequest{MenuItemID: 3, Quantity: 1})

	_, err := s.svc.PlaceOrder(context.Background(), req)
	var ue *order.UnavailableItemError
	s.Require().ErrorAs(err, &ue)

	s.Equal(0, s.count("orders"))
	s.Equal(0, s.count("order_lines"))
	s.True(s.stock(10).Equal(decimal.NewFromInt(10)))
}

func (s *PostgresSuite) TestMissingReferences() {
	req := burgers(1)
	req.RestaurantID = 42

	_, err := s.svc.PlaceOrder(context.Background(), req)
	var nf *store.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal(store.EntityRestaurant, nf.Entity)

	_, err = s.svc.SetOrderStatus(context.Background(), 999, "Ready")
	s.True(errors.Is(err, store.ErrNotFound))
}

// Concurrent orders contend on the cheese row; the row lock taken while
// consuming must keep stock from being oversold.
func (s *PostgresSuite) TestConcurrentOrdersNeverOversell() {
	_, err := s.db.Pool.Exec(context.Background(), `UPDATE ingredients SET current_stock = 6 WHERE id = 10`)
	s.Require().NoError(err)

	const workers = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.svc.PlaceOrder(context.Background(), burgers(1))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, err)
				return
			}
			succeeded++
		}()
	}
	wg.Wait()

	s.Equal(3, succeeded)
	for _, err := range failures {
		var ise *order.InsufficientStockError
		s.ErrorAs(err, &ise)
	}
	s.True(s.stock(10).IsZero())
	s.Equal(3, s.count("orders"))
}

func (s *PostgresSuite) TestLowStockRestockAndCost() {
	ctx := context.Background()

	_, err := s.svc.PlaceOrder(ctx, burgers(4))
	s.Require().NoError(err)

	low, err := s.svc.LowStock(ctx)
	s.Require().NoError(err)
	s.Require().Len(low, 1)
	s.Equal("Cheese", low[0].Name)

	ing, err := s.svc.Restock(ctx, 10, decimal.RequireFromString("4.5"))
	s.Require().NoError(err)
	s.True(ing.CurrentStock.Equal(decimal.RequireFromString("6.5")))

	cost, err := s.svc.CostOf(ctx, 1)
	s.Require().NoError(err)
	s.True(cost.TotalCost.Equal(decimal.RequireFromString("0.90")))
	s.Equal("Cheese", cost.Lines[0].Name)
}

func (s *PostgresSuite) TestStockCheckConstraint() {
	err := s.db.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.AdjustStock(ctx, 10, decimal.NewFromInt(-11))
		return err
	})
	s.Require().Error(err)
	s.True(s.stock(10).Equal(decimal.NewFromInt(10)))
}
