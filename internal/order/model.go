package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCooking   Status = "cooking"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCooking, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// TableTakeaway is stored when the customer gave no table number.
const TableTakeaway = "takeaway"

// Line is a priced copy of a menu item taken when the order was placed.
type Line struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	UnitPrice  int64     `json:"unit_price"`
	Quantity   int       `json:"quantity"`
}

func (l Line) Subtotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type Order struct {
	ID                uuid.UUID  `json:"id"`
	RestaurantID      uuid.UUID  `json:"restaurant_id"`
	CustomerName      string     `json:"customer_name"`
	TableNumber       string     `json:"table_number"`
	Lines             []Line     `json:"lines"`
	TotalAmount       int64      `json:"total_amount"`
	Status            Status     `json:"status"`
	Version           int64      `json:"version"`
	PaymentReported   bool       `json:"payment_reported"`
	PaymentReportedAt *time.Time `json:"payment_reported_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// LinesTotal sums the line subtotals.
func (o *Order) LinesTotal() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.Subtotal()
	}
	return total
}

// Takeaway reports whether the order has no table.
func (o *Order) Takeaway() bool {
	return o.TableNumber == TableTakeaway
}

// ListFilter narrows the kitchen queue. Cancelled orders are left out unless
// IncludeCancelled is set or Status asks for them explicitly.
type ListFilter struct {
	Status           Status
	IncludeCancelled bool
	Limit            int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

func (f ListFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}
