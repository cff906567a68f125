package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"quickbite/internal/logger"
	"quickbite/internal/models"
	"quickbite/internal/services/recipe"
	"quickbite/internal/services/stock"
	"quickbite/internal/store"
)

// EventPublisher announces committed order changes
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, msg *models.OrderPlacedMessage) error
	PublishStatusChanged(ctx context.Context, msg *models.StatusUpdateMessage) error
}

type noopPublisher struct{}

func (noopPublisher) PublishOrderPlaced(context.Context, *models.OrderPlacedMessage) error {
	return nil
}

func (noopPublisher) PublishStatusChanged(context.Context, *models.StatusUpdateMessage) error {
	return nil
}

// LineRequest asks for quantity units of one menu item
type LineRequest struct {
	MenuItemID int64   `json:"menu_item_id"`
	Quantity   int     `json:"quantity"`
	Note       *string `json:"note,omitempty"`
}

// PlaceOrderRequest is the input of PlaceOrder. Each menu item may appear in
// at most one line.
type PlaceOrderRequest struct {
	CustomerID   int64         `json:"customer_id"`
	EmployeeID   int64         `json:"employee_id"`
	RestaurantID int64         `json:"restaurant_id"`
	OrderType    string        `json:"order_type"`
	Lines        []LineRequest `json:"lines"`
}

type PlaceOrderResult struct {
	OrderID             int64           `json:"order_id"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	LineCount           int             `json:"line_count"`
	LoyaltyPointsEarned int             `json:"loyalty_points_earned"`
}

type StatusChange struct {
	OrderID             int64              `json:"order_id"`
	OldStatus           models.OrderStatus `json:"old_status"`
	NewStatus           models.OrderStatus `json:"new_status"`
	StockRestored       bool               `json:"stock_restored"`
	IngredientsRestored int                `json:"ingredients_restored,omitempty"`
}

// Service runs the order placement and status workflows. Every call is one
// transaction on the store.
type Service struct {
	store     store.Store
	catalog   *recipe.Catalog
	ledger    *stock.Ledger
	publisher EventPublisher
	logger    *logger.Logger
}

// NewService wires the workflows to a store. A nil publisher disables events.
func NewService(st store.Store, publisher EventPublisher, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	catalog := recipe.NewCatalog(log)
	return &Service{
		store:     st,
		catalog:   catalog,
		ledger:    stock.NewLedger(catalog, log),
		publisher: publisher,
		logger:    log,
	}
}

// PlaceOrder validates, prices and persists an order, consuming stock for
// every line and crediting the customer's loyalty points. Either all of it
// commits or none of it does.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	requestID := logger.RequestIDFrom(ctx)

	orderType, err := validatePlaceOrderRequest(&req)
	if err != nil {
		s.reject(requestID, req, err)
		return nil, err
	}

	var (
		result *PlaceOrderResult
		placed models.Order
	)

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := s.checkReferences(ctx, tx, req); err != nil {
			return err
		}

		demands := make([]stock.Demand, 0, len(req.Lines))
		for _, line := range req.Lines {
			if err := s.checkLine(ctx, tx, line); err != nil {
				return err
			}
			demands = append(demands, stock.Demand{MenuItemID: line.MenuItemID, Quantity: line.Quantity})
		}
		if err := s.ledger.CheckDemand(ctx, tx, demands); err != nil {
			return err
		}

		customerID := req.CustomerID
		placed = models.Order{
			CustomerID:   &customerID,
			EmployeeID:   req.EmployeeID,
			RestaurantID: req.RestaurantID,
			Type:         orderType,
			Status:       models.StatusPending,
			TotalAmount:  decimal.Zero,
		}
		if err := tx.InsertOrder(ctx, &placed); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		total := decimal.Zero
		for _, line := range req.Lines {
			// price and availability are re-read here; the pre-check above may be stale
			item, err := tx.MenuItem(ctx, line.MenuItemID)
			if err != nil {
				return fmt.Errorf("failed to load menu item %d: %w", line.MenuItemID, err)
			}
			if !item.Available {
				return &UnavailableItemError{MenuItemID: item.ID}
			}

			ol := models.OrderLine{
				OrderID:    placed.ID,
				MenuItemID: item.ID,
				Quantity:   line.Quantity,
				Subtotal:   item.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
				Note:       line.Note,
			}
			if err := tx.InsertOrderLine(ctx, ol); err != nil {
				return fmt.Errorf("failed to insert line for menu item %d: %w", item.ID, err)
			}
			total = total.Add(ol.Subtotal)
		}

		if err := s.ledger.ConsumeAll(ctx, tx, demands); err != nil {
			return err
		}

		if err := tx.UpdateOrderTotal(ctx, placed.ID, total); err != nil {
			return fmt.Errorf("failed to update order total: %w", err)
		}
		placed.TotalAmount = total

		points := models.LoyaltyPointsFor(total)
		if points > 0 {
			if err := tx.AddLoyaltyPoints(ctx, req.CustomerID, points); err != nil {
				return fmt.Errorf("failed to add loyalty points: %w", err)
			}
		}

		result = &PlaceOrderResult{
			OrderID:             placed.ID,
			TotalAmount:         total,
			LineCount:           len(req.Lines),
			LoyaltyPointsEarned: points,
		}
		return nil
	})
	if err != nil {
		s.reject(requestID, req, err)
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	s.logger.Info("order_placed", "Order placed", requestID, map[string]interface{}{
		"order_id":       result.OrderID,
		"order_type":     string(orderType),
		"restaurant_id":  req.RestaurantID,
		"total_amount":   result.TotalAmount.String(),
		"line_count":     result.LineCount,
		"loyalty_points": result.LoyaltyPointsEarned,
	})

	msg := &models.OrderPlacedMessage{
		OrderID:             result.OrderID,
		RestaurantID:        placed.RestaurantID,
		OrderType:           string(placed.Type),
		TotalAmount:         result.TotalAmount,
		LineCount:           result.LineCount,
		LoyaltyPointsEarned: result.LoyaltyPointsEarned,
		Timestamp:           time.Now().UTC(),
	}
	if err := s.publisher.PublishOrderPlaced(ctx, msg); err != nil {
		s.logger.Error("publish_failed", "Failed to publish order placed event", requestID, err, map[string]interface{}{
			"order_id": result.OrderID,
		})
	}

	return result, nil
}

func (s *Service) checkReferences(ctx context.Context, tx store.Tx, req PlaceOrderRequest) error {
	refs := []struct {
		entity store.Entity
		id     int64
	}{
		{store.EntityCustomer, req.CustomerID},
		{store.EntityEmployee, req.EmployeeID},
		{store.EntityRestaurant, req.RestaurantID},
	}

	for _, ref := range refs {
		ok, err := tx.Exists(ctx, ref.entity, ref.id)
		if err != nil {
			return fmt.Errorf("failed to look up %s %d: %w", ref.entity, ref.id, err)
		}
		if !ok {
			return store.NotFound(ref.entity, ref.id)
		}
	}
	return nil
}

// checkLine runs the per-line availability check and, when it fails, works
// out which of missing, withdrawn or short on stock the item is.
func (s *Service) checkLine(ctx context.Context, tx store.Tx, line LineRequest) error {
	ok, err := s.ledger.CheckAvailability(ctx, tx, line.MenuItemID, line.Quantity)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	item, err := tx.MenuItem(ctx, line.MenuItemID)
	if err != nil {
		return fmt.Errorf("failed to load menu item %d: %w", line.MenuItemID, err)
	}
	if !item.Available {
		return &UnavailableItemError{MenuItemID: item.ID}
	}

	if err := s.ledger.CheckDemand(ctx, tx, []stock.Demand{{MenuItemID: item.ID, Quantity: line.Quantity}}); err != nil {
		return err
	}
	return &UnavailableItemError{MenuItemID: item.ID}
}

func (s *Service) reject(requestID string, req PlaceOrderRequest, err error) {
	s.logger.Error("order_rejected", "Order rejected", requestID, err, map[string]interface{}{
		"customer_id":   req.CustomerID,
		"employee_id":   req.EmployeeID,
		"restaurant_id": req.RestaurantID,
		"order_type":    req.OrderType,
		"line_count":    len(req.Lines),
	})
}

// SetOrderStatus moves an order to any status. The first time an order enters
// Cancelled its stock is given back in the same transaction. Leaving Cancelled
// does not consume stock again, so later cancellations restore nothing.
func (s *Service) SetOrderStatus(ctx context.Context, orderID int64, status string) (*StatusChange, error) {
	requestID := logger.RequestIDFrom(ctx)

	newStatus, err := validateStatus(status)
	if err != nil {
		return nil, err
	}

	var change *StatusChange
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}

		change = &StatusChange{
			OrderID:   o.ID,
			OldStatus: o.Status,
			NewStatus: newStatus,
		}

		if newStatus == models.StatusCancelled && o.Status != models.StatusCancelled && !o.StockRestored {
			touched, err := s.ledger.Restore(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			if err := tx.MarkStockRestored(ctx, o.ID); err != nil {
				return fmt.Errorf("failed to mark stock restored: %w", err)
			}
			change.StockRestored = true
			change.IngredientsRestored = touched
		}

		if err := tx.UpdateOrderStatus(ctx, o.ID, newStatus); err != nil {
			return fmt.Errorf("failed to write status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update status of order %d: %w", orderID, err)
	}

	if change.StockRestored {
		s.logger.Info("stock_restored", "Stock restored for cancelled order", requestID, map[string]interface{}{
			"order_id":    orderID,
			"ingredients": change.IngredientsRestored,
		})
	}
	s.logger.Info("status_updated", fmt.Sprintf("Order %d: %s -> %s", orderID, change.OldStatus, change.NewStatus), requestID, map[string]interface{}{
		"order_id":   orderID,
		"old_status": string(change.OldStatus),
		"new_status": string(change.NewStatus),
	})

	msg := models.NewStatusUpdateMessage(orderID, change.OldStatus, change.NewStatus, change.StockRestored)
	if err := s.publisher.PublishStatusChanged(ctx, msg); err != nil {
		s.logger.Error("publish_failed", "Failed to publish status update", requestID, err, map[string]interface{}{
			"order_id": orderID,
		})
	}

	return change, nil
}

// GetOrder returns an order together with its lines
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var o *models.Order
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = tx.Order(ctx, orderID); err != nil {
			return err
		}
		o.Lines, err = tx.OrderLines(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order %d: %w", orderID, err)
	}
	return o, nil
}

func (s *Service) CostOf(ctx context.Context, menuItemID int64) (*recipe.CostBreakdown, error) {
	var breakdown *recipe.CostBreakdown
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		breakdown, err = s.catalog.CostOf(ctx, tx, menuItemID)
		return err
	})
	return breakdown, err
}

func (s *Service) LowStock(ctx context.Context) ([]models.Ingredient, error) {
	var ings []models.Ingredient
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ings, err = s.ledger.LowStock(ctx, tx)
		return err
	})
	return ings, err
}

func (s *Service) Restock(ctx context.Context, ingredientID int64, amount decimal.Decimal) (*models.Ingredient, error) {
	var ing *models.Ingredient
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ing, err = s.ledger.Restock(ctx, tx, ingredientID, amount)
		return err
	})
	return ing, err
}

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck pings the store when it supports it
func (s *Service) HealthCheck(ctx context.Context) bool {
	p, ok := s.store.(pinger)
	if !ok {
		return true
	}
	if err := p.Ping(ctx); err != nil {
		s.logger.Error("health_check_failed", "Store ping failed", logger.RequestIDFrom(ctx), err, nil)
		return false
	}
	return true
}

// IsNotFound reports whether err names a missing row
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
