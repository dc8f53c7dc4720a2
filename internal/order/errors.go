package order

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/foodhub/internal/access"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrValidation         = errors.New("validation failed")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrRestaurantClosed   = errors.New("restaurant is closed")
	ErrStaleCart          = errors.New("cart is out of date")
	ErrInvalidTransition  = errors.New("invalid order status transition")
	ErrForbidden          = access.ErrForbidden
	ErrConflict           = errors.New("order was updated by someone else")
	ErrNotInCart          = errors.New("item is not in the cart")
)

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field   string
	Message string
	// Err is an optional more specific cause such as ErrRestaurantClosed.
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

type StaleReason string

const (
	StaleUnavailable  StaleReason = "unavailable"
	StalePriceChanged StaleReason = "price_changed"
)

type StaleItem struct {
	MenuItemID   uuid.UUID   `json:"menu_item_id"`
	Name         string      `json:"name"`
	Reason       StaleReason `json:"reason"`
	CartPrice    int64       `json:"cart_price"`
	CurrentPrice int64       `json:"current_price,omitempty"`
}

// StaleCartError lists every cart line that no longer matches the menu.
type StaleCartError struct {
	Items []StaleItem
}

func (e *StaleCartError) Error() string {
	names := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		names = append(names, fmt.Sprintf("%s (%s)", item.Name, item.Reason))
	}
	return "cart is out of date: " + strings.Join(names, ", ")
}

func (e *StaleCartError) Unwrap() error {
	return ErrStaleCart
}

// TransitionError is a status change the state machine refused.
type TransitionError struct {
	From   Status
	To     Status
	Role   access.Role
	Reason DenyReason
}

func (e *TransitionError) Error() string {
	if e.Reason == DenyForbidden {
		return fmt.Sprintf("role %s may not move an order from %s to %s", e.Role, e.From, e.To)
	}
	return fmt.Sprintf("cannot move an order from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	if e.Reason == DenyForbidden {
		return ErrForbidden
	}
	return ErrInvalidTransition
}
