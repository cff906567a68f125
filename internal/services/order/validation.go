package order

import (
	"fmt"
	"unicode/utf8"

	"quickbite/internal/models"
)

const maxNoteLength = 255

func validatePlaceOrderRequest(req *PlaceOrderRequest) (models.OrderType, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return "", err
	}

	if err := validateLines(req.Lines); err != nil {
		return "", err
	}

	return orderType, nil
}

func validateOrderType(raw string) (models.OrderType, error) {
	if raw == "" {
		return "", ValidationError{
			Field:   "order_type",
			Message: "order type is required",
			Err:     ErrInvalidOrderType,
		}
	}

	orderType, ok := models.ParseOrderType(raw)
	if !ok {
		return "", ValidationError{
			Field:   "order_type",
			Message: fmt.Sprintf("order type %q must be Dine-in or Takeout", raw),
			Err:     ErrInvalidOrderType,
		}
	}
	return orderType, nil
}

func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return ValidationError{
			Field:   "lines",
			Message: "at least one menu item is required",
			Err:     ErrNoLines,
		}
	}

	seen := make(map[int64]int, len(lines))
	for i, line := range lines {
		if prev, dup := seen[line.MenuItemID]; dup {
			return ValidationError{
				Field:   fmt.Sprintf("lines[%d].menu_item_id", i),
				Message: fmt.Sprintf("menu item %d already requested in lines[%d]", line.MenuItemID, prev),
			}
		}
		seen[line.MenuItemID] = i

		if err := validateLine(line, i); err != nil {
			return err
		}
	}
	return nil
}

func validateLine(line LineRequest, index int) error {
	if line.Quantity < 1 {
		return ValidationError{
			Field:   fmt.Sprintf("lines[%d].quantity", index),
			Message: "quantity must be a positive integer",
		}
	}

	if line.Note != nil && utf8.RuneCountInString(*line.Note) > maxNoteLength {
		return ValidationError{
			Field:   fmt.Sprintf("lines[%d].note", index),
			Message: fmt.Sprintf("note must be at most %d characters", maxNoteLength),
		}
	}
	return nil
}

func validateStatus(raw string) (models.OrderStatus, error) {
	status, ok := models.ParseOrderStatus(raw)
	if !ok {
		return "", ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("unknown status %q", raw),
			Err:     ErrInvalidStatus,
		}
	}
	return status, nil
}
