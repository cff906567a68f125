// Package storetest provides an in-memory store.Store for exercising the
// order workflows without PostgreSQL.
//
// Each transaction works on a private copy of the data and only replaces the
// committed state when its callback succeeds, so a failed workflow leaves no
// trace, just like a rolled back database transaction.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"quickbite/internal/models"
	"quickbite/internal/store"
)

// ErrInjected is the default error returned by FailOn hooks
var ErrInjected = errors.New("injected storage failure")

type state struct {
	customers   map[int64]models.Customer
	employees   map[int64]struct{}
	restaurants map[int64]struct{}
	menuItems   map[int64]models.MenuItem
	recipes     map[int64][]models.RecipeLine
	ingredients map[int64]models.Ingredient
	orders      map[int64]models.Order
	lines       map[int64][]models.OrderLine
	nextOrderID int64
}

func newState() *state {
	return &state{
		customers:   make(map[int64]models.Customer),
		employees:   make(map[int64]struct{}),
		restaurants: make(map[int64]struct{}),
		menuItems:   make(map[int64]models.MenuItem),
		recipes:     make(map[int64][]models.RecipeLine),
		ingredients: make(map[int64]models.Ingredient),
		orders:      make(map[int64]models.Order),
		lines:       make(map[int64][]models.OrderLine),
		nextOrderID: 1,
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k := range s.employees {
		c.employees[k] = struct{}{}
	}
	for k := range s.restaurants {
		c.restaurants[k] = struct{}{}
	}
	for k, v := range s.menuItems {
		c.menuItems[k] = v
	}
	for k, v := range s.recipes {
		c.recipes[k] = append([]models.RecipeLine(nil), v...)
	}
	for k, v := range s.ingredients {
		c.ingredients[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]models.OrderLine(nil), v...)
	}
	c.nextOrderID = s.nextOrderID
	return c
}

// MemStore is a store.Store backed by maps. The zero value is not usable; call New.
type MemStore struct {
	mu    sync.Mutex
	state *state

	failOn      map[string]error
	unavailable map[int64]int
	menuReads   map[int64]int
	locks       []int64

	commits   int
	rollbacks int
}

// New returns an empty MemStore
func New() *MemStore {
	return &MemStore{
		state:       newState(),
		failOn:      make(map[string]error),
		unavailable: make(map[int64]int),
		menuReads:   make(map[int64]int),
	}
}

var _ store.Store = (*MemStore)(nil)

// WithinTx runs fn against a copy of the committed state and publishes the
// copy only if fn returns nil. Transactions are serialized.
func (m *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, s: m.state.clone()}
	for k := range m.menuReads {
		delete(m.menuReads, k)
	}

	defer func() {
		if p := recover(); p != nil {
			m.rollbacks++
			panic(p)
		}
		if err != nil {
			m.rollbacks++
			return
		}
		m.state = tx.s
		m.commits++
	}()

	return fn(ctx, tx)
}

// FailOn makes the named Tx method return err from now on. A nil err uses ErrInjected.
func (m *MemStore) FailOn(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		err = ErrInjected
	}
	m.failOn[method] = err
}

// MakeUnavailableAfter flips a menu item to unavailable for every read after
// the first n reads within a transaction. It models the item being withdrawn
// between the availability pre-check and the pricing step.
func (m *MemStore) MakeUnavailableAfter(menuItemID int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable[menuItemID] = n
}

// Commits and Rollbacks count finished transactions
func (m *MemStore) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *MemStore) Rollbacks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollbacks
}

// IngredientLocks returns every LockIngredient id in call order, across all
// transactions
func (m *MemStore) IngredientLocks() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.locks...)
}

// Seeding

func (m *MemStore) AddCustomer(id int64, name string, points int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.customers[id] = models.Customer{ID: id, Name: name, LoyaltyPoints: points}
}

func (m *MemStore) AddEmployee(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.employees[id] = struct{}{}
}

func (m *MemStore) AddRestaurant(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.restaurants[id] = struct{}{}
}

func (m *MemStore) AddMenuItem(item models.MenuItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.menuItems[item.ID] = item
}

func (m *MemStore) AddIngredient(ing models.Ingredient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ingredients[ing.ID] = ing
}

// AddRecipeLine attaches qty of an ingredient to one unit of a menu item
func (m *MemStore) AddRecipeLine(menuItemID, ingredientID int64, qty string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.recipes[menuItemID] = append(m.state.recipes[menuItemID], models.RecipeLine{
		MenuItemID:       menuItemID,
		IngredientID:     ingredientID,
		QuantityRequired: decimal.RequireFromString(qty),
	})
}

// Inspection of committed state

func (m *MemStore) Customer(id int64) (models.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.state.customers[id]
	return c, ok
}

func (m *MemStore) Stock(ingredientID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ingredients[ingredientID].CurrentStock
}

func (m *MemStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.orders)
}

func (m *MemStore) LineCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.state.lines {
		n += len(l)
	}
	return n
}

func (m *MemStore) StoredOrder(id int64) (models.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if ok {
		o.Lines = append([]models.OrderLine(nil), m.state.lines[id]...)
	}
	return o, ok
}

type memTx struct {
	m *MemStore
	s *state
}

func (t *memTx) fail(method string) error {
	return t.m.failOn[method]
}

func (t *memTx) Exists(ctx context.Context, entity store.Entity, id int64) (bool, error) {
	if err := t.fail("Exists"); err != nil {
		return false, err
	}
	var ok bool
	switch entity {
	case store.EntityCustomer:
		_, ok = t.s.customers[id]
	case store.EntityEmployee:
		_, ok = t.s.employees[id]
	case store.EntityRestaurant:
		_, ok = t.s.restaurants[id]
	case store.EntityMenuItem:
		_, ok = t.s.menuItems[id]
	case store.EntityIngredient:
		_, ok = t.s.ingredients[id]
	case store.EntityOrder:
		_, ok = t.s.orders[id]
	default:
		return false, fmt.Errorf("unknown entity %q", entity)
	}
	return ok, nil
}

func (t *memTx) MenuItem(ctx context.Context, id int64) (*models.MenuItem, error) {
	if err := t.fail("MenuItem"); err != nil {
		return nil, err
	}
	item, ok := t.s.menuItems[id]
	if !ok {
		return nil, store.NotFound(store.EntityMenuItem, id)
	}
	t.m.menuReads[id]++
	if n, ok := t.m.unavailable[id]; ok && t.m.menuReads[id] > n {
		item.Available = false
	}
	return &item, nil
}

func (t *memTx) RecipeLines(ctx context.Context, menuItemID int64) ([]models.RecipeLine, error) {
	if err := t.fail("RecipeLines"); err != nil {
		return nil, err
	}
	lines := append([]models.RecipeLine{}, t.s.recipes[menuItemID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].IngredientID < lines[j].IngredientID })
	return lines, nil
}

func (t *memTx) Ingredient(ctx context.Context, id int64) (*models.Ingredient, error) {
	if err := t.fail("Ingredient"); err != nil {
		return nil, err
	}
	ing, ok := t.s.ingredients[id]
	if !ok {
		return nil, store.NotFound(store.EntityIngredient, id)
	}
	return &ing, nil
}

// LockIngredient needs no lock here: WithinTx already serializes transactions.
// The id is recorded so tests can check lock order.
func (t *memTx) LockIngredient(ctx context.Context, id int64) (*models.Ingredient, error) {
	if err := t.fail("LockIngredient"); err != nil {
		return nil, err
	}
	t.m.locks = append(t.m.locks, id)
	return t.Ingredient(ctx, id)
}

func (t *memTx) AdjustStock(ctx context.Context, ingredientID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := t.fail("AdjustStock"); err != nil {
		return decimal.Zero, err
	}
	ing, ok := t.s.ingredients[ingredientID]
	if !ok {
		return decimal.Zero, store.NotFound(store.EntityIngredient, ingredientID)
	}
	next := ing.CurrentStock.Add(delta)
	if next.IsNegative() {
		// mirrors the current_stock >= 0 check constraint
		return decimal.Zero, fmt.Errorf("ingredient %d: stock would become %s", ingredientID, next)
	}
	ing.CurrentStock = next
	t.s.ingredients[ingredientID] = ing
	return next, nil
}

func (t *memTx) LowStockIngredients(ctx context.Context) ([]models.Ingredient, error) {
	if err := t.fail("LowStockIngredients"); err != nil {
		return nil, err
	}
	var out []models.Ingredient
	for _, ing := range t.s.ingredients {
		if ing.NeedsReorder() {
			out = append(out, ing)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := stockRatio(out[i]), stockRatio(out[j])
		if !ri.Equal(rj) {
			return ri.LessThan(rj)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// stockRatio matches ORDER BY current_stock / NULLIF(reorder_level, 0) NULLS FIRST
func stockRatio(i models.Ingredient) decimal.Decimal {
	if i.ReorderLevel.IsZero() {
		return decimal.NewFromInt(-1)
	}
	return i.CurrentStock.Div(i.ReorderLevel)
}

func (t *memTx) InsertOrder(ctx context.Context, o *models.Order) error {
	if err := t.fail("InsertOrder"); err != nil {
		return err
	}
	o.ID = t.s.nextOrderID
	o.PlacedAt = time.Now().UTC()
	t.s.nextOrderID++

	stored := *o
	stored.Lines = nil
	t.s.orders[o.ID] = stored
	return nil
}

func (t *memTx) InsertOrderLine(ctx context.Context, line models.OrderLine) error {
	if err := t.fail("InsertOrderLine"); err != nil {
		return err
	}
	if _, ok := t.s.orders[line.OrderID]; !ok {
		return store.NotFound(store.EntityOrder, line.OrderID)
	}
	t.s.lines[line.OrderID] = append(t.s.lines[line.OrderID], line)
	return nil
}

func (t *memTx) UpdateOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if err := t.fail("UpdateOrderTotal"); err != nil {
		return err
	}
	o, ok := t.s.orders[orderID]
	if !ok {
		return store.NotFound(store.EntityOrder, orderID)
	}
	o.TotalAmount = total
	t.s.orders[orderID] = o
	return nil
}

func (t *memTx) Order(ctx context.Context, id int64) (*models.Order, error) {
	if err := t.fail("Order"); err != nil {
		return nil, err
	}
	o, ok := t.s.orders[id]
	if !ok {
		return nil, store.NotFound(store.EntityOrder, id)
	}
	return &o, nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	if err := t.fail("LockOrder"); err != nil {
		return nil, err
	}
	return t.Order(ctx, id)
}

func (t *memTx) OrderLines(ctx context.Context, orderID int64) ([]models.OrderLine, error) {
	if err := t.fail("OrderLines"); err != nil {
		return nil, err
	}
	lines := append([]models.OrderLine{}, t.s.lines[orderID]...)
	sort.Slice(lines, func(i, j int) bool { return lines[i].MenuItemID < lines[j].MenuItemID })
	return lines, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, orderID int64, status models.OrderStatus) error {
	if err := t.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	o, ok := t.s.orders[orderID]
	if !ok {
		return store.NotFound(store.EntityOrder, orderID)
	}
	o.Status = status
	t.s.orders[orderID] = o
	return nil
}

func (t *memTx) MarkStockRestored(ctx context.Context, orderID int64) error {
	if err := t.fail("MarkStockRestored"); err != nil {
		return err
	}
	o, ok := t.s.orders[orderID]
	if !ok {
		return store.NotFound(store.EntityOrder, orderID)
	}
	o.StockRestored = true
	t.s.orders[orderID] = o
	return nil
}

func (t *memTx) AddLoyaltyPoints(ctx context.Context, customerID int64, points int) error {
	if err := t.fail("AddLoyaltyPoints"); err != nil {
		return err
	}
	c, ok := t.s.customers[customerID]
	if !ok {
		return store.NotFound(store.EntityCustomer, customerID)
	}
	c.LoyaltyPoints += points
	t.s.customers[customerID] = c
	return nil
}
