package stats

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/vasiliy-maslov/foodhub/internal/order"
)

const TopN = 5

var ErrInvalidWindow = errors.New("invalid stats window")

// Window is the half-open interval [From, To) of order creation times.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

func (w Window) Validate() error {
	if w.From.IsZero() || w.To.IsZero() {
		return fmt.Errorf("%w: both bounds are required", ErrInvalidWindow)
	}
	if !w.From.Before(w.To) {
		return fmt.Errorf("%w: from %s is not before to %s", ErrInvalidWindow, w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
	}
	return nil
}

// Day returns the calendar day containing t in loc.
func Day(t time.Time, loc *time.Location) Window {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return Window{From: start, To: start.AddDate(0, 0, 1)}
}

type TopItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Revenue  int64  `json:"revenue"`
}

type Stats struct {
	Window       Window    `json:"window"`
	Revenue      int64     `json:"revenue"`
	OrderCount   int       `json:"order_count"`
	PendingCount int       `json:"pending_count"`
	TopItems     []TopItem `json:"top_items"`
}

// Aggregate derives the dashboard figures from stored orders. Only orders
// created inside w count. Revenue and best sellers come from completed
// orders only; cancelled orders count nowhere.
func Aggregate(orders []order.Order, w Window) Stats {
	s := Stats{Window: w, TopItems: []TopItem{}}
	byName := make(map[string]*TopItem)

	for i := range orders {
		o := &orders[i]
		if !w.Contains(o.CreatedAt) {
			continue
		}

		switch o.Status {
		case order.StatusCancelled:
			continue
		case order.StatusPending:
			s.PendingCount++
		case order.StatusCompleted:
			s.Revenue += o.TotalAmount
			for _, l := range o.Lines {
				item, ok := byName[l.Name]
				if !ok {
					item = &TopItem{Name: l.Name}
					byName[l.Name] = item
				}
				item.Quantity += l.Quantity
				item.Revenue += l.Subtotal()
			}
		}
		s.OrderCount++
	}

	for _, item := range byName {
		s.TopItems = append(s.TopItems, *item)
	}
	sort.Slice(s.TopItems, func(i, j int) bool {
		a, b := s.TopItems[i], s.TopItems[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Name < b.Name
	})
	if len(s.TopItems) > TopN {
		s.TopItems = s.TopItems[:TopN]
	}

	return s
}
