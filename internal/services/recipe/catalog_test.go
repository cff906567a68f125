package recipe

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/store"
	"quickbite/internal/store/storetest"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func burgerStore() *storetest.MemStore {
	m := storetest.New()
	m.AddMenuItem(models.MenuItem{ID: 1, Name: "Cheeseburger", Price: dec("8.00"), Available: true})
	m.AddMenuItem(models.MenuItem{ID: 2, Name: "Tap water", Price: dec("0"), Available: true})
	m.AddIngredient(models.Ingredient{ID: 20, Name: "Bun", Unit: "pc", CurrentStock: dec("50"), UnitPrice: dec("0.40")})
	m.AddIngredient(models.Ingredient{ID: 10, Name: "Cheese", Unit: "slice", CurrentStock: dec("10"), UnitPrice: dec("0.25")})
	m.AddIngredient(models.Ingredient{ID: 30, Name: "Patty", Unit: "pc", CurrentStock: dec("40"), UnitPrice: dec("1.60")})
	m.AddRecipeLine(1, 30, "1")
	m.AddRecipeLine(1, 10, "2")
	m.AddRecipeLine(1, 20, "1")
	return m
}

func TestRecipeFor(t *testing.T) {
	m := burgerStore()
	c := NewCatalog(logger.Discard())

	tests := []struct {
		name       string
		menuItemID int64
		wantIDs    []int64
	}{
		{"ordered by ingredient id", 1, []int64{10, 20, 30}},
		{"item without recipe", 2, []int64{}},
		{"unknown item", 404, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
				lines, err := c.RecipeFor(ctx, tx, tt.menuItemID)
				if err != nil {
					return err
				}
				require.NotNil(t, lines)
				ids := make([]int64, 0, len(lines))
				for _, l := range lines {
					ids = append(ids, l.IngredientID)
				}
				assert.Equal(t, tt.wantIDs, ids)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestRecipeFor_StorageError(t *testing.T) {
	m := burgerStore()
	m.FailOn("RecipeLines", nil)
	c := NewCatalog(logger.Discard())

	err := m.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.RecipeFor(ctx, tx, 1)
		return err
	})
	assert.True(t, errors.Is(err, storetest.ErrInjected))
}

func TestCostOf(t *testing.T) {
	m := burgerStore()
	c := NewCatalog(logger.Discard())

	var got *CostBreakdown
	err := m.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		got, err = c.CostOf(ctx, tx, 1)
		return err
	})
	require.NoError(t, err)

	// 1.60 + 2*0.25 + 0.40
	assert.True(t, got.TotalCost.Equal(dec("2.50")), "total cost %s", got.TotalCost)
	assert.True(t, got.Profit.Equal(dec("5.50")), "profit %s", got.Profit)
	require.NotNil(t, got.MarginPercent)
	assert.True(t, got.MarginPercent.Equal(dec("68.8")), "margin %s", got.MarginPercent)

	require.Len(t, got.Lines, 3)
	assert.Equal(t, "Patty", got.Lines[0].Name)
	assert.Equal(t, "Cheese", got.Lines[1].Name)
	assert.Equal(t, "Bun", got.Lines[2].Name)
}

func TestCostOf_LogsRequestID(t *testing.T) {
	m := burgerStore()
	var buf bytes.Buffer
	c := NewCatalog(logger.NewWithWriter("test", &buf))

	ctx := logger.WithRequestID(context.Background(), "req-cost")
	err := m.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := c.CostOf(ctx, tx, 1)
		return err
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"request_id":"req-cost"`)
}

func TestCostOf_FreeItemHasNoMargin(t *testing.T) {
	m := burgerStore()
	c := NewCatalog(logger.Discard())

	err := m.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		got, err := c.CostOf(ctx, tx, 2)
		if err != nil {
			return err
		}
		assert.Empty(t, got.Lines)
		assert.True(t, got.TotalCost.IsZero())
		assert.Nil(t, got.MarginPercent)
		return nil
	})
	require.NoError(t, err)
}

func TestCostOf_UnknownItem(t *testing.T) {
	m := burgerStore()
	c := NewCatalog(logger.Discard())

	err := m.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := c.CostOf(ctx, tx, 404)
		return err
	})

	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, store.EntityMenuItem, nf.Entity)
}
