package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
)

const MaxCustomerNameLength = 100

type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	TransitionStatus(ctx context.Context, orderID uuid.UUID, requested Status, actor access.Principal) (*Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrderForStaff(ctx context.Context, orderID uuid.UUID, actor access.Principal) (*Order, error)
	ListOrders(ctx context.Context, actor access.Principal, filter ListFilter) ([]Order, error)
	ReportPayment(ctx context.Context, orderID uuid.UUID) (*Order, error)
}

type CreateOrderInput struct {
	RestaurantID uuid.UUID
	CustomerName string
	TableNumber  string
	Cart         *Cart
}

// Settings exposes the restaurant's open flag.
type Settings interface {
	GetByID(ctx context.Context, id uuid.UUID) (*restaurant.Restaurant, error)
}

// StatsInvalidator drops cached revenue figures of a restaurant.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, restaurantID uuid.UUID)
}

type Option func(*service)

func WithStatsInvalidator(inv StatsInvalidator) Option {
	return func(s *service) { s.stats = inv }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	orderRepo Repository
	menu      menu.SnapshotReader
	settings  Settings
	publisher realtime.Publisher
	stats     StatsInvalidator
	now       func() time.Time

	locks keyedMutex
}

func NewService(orderRepo Repository, menuReader menu.SnapshotReader, settings Settings, publisher realtime.Publisher, opts ...Option) Service {
	s := &service{
		orderRepo: orderRepo,
		menu:      menuReader,
		settings:  settings,
		publisher: publisher,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	customerName := strings.TrimSpace(input.CustomerName)
	if customerName == "" {
		return nil, &ValidationError{Field: "customer_name", Message: "is required"}
	}
	if len([]rune(customerName)) > MaxCustomerNameLength {
		return nil, &ValidationError{Field: "customer_name", Message: fmt.Sprintf("must be at most %d characters", MaxCustomerNameLength)}
	}
	if input.Cart.IsEmpty() {
		return nil, &ValidationError{Field: "cart", Message: "must contain at least one item"}
	}
	cartLines := input.Cart.Lines()
	for _, l := range cartLines {
		if l.Quantity <= 0 {
			return nil, &ValidationError{Field: "quantity", Message: fmt.Sprintf("quantity of %s must be positive", l.Item.Name)}
		}
	}

	rest, err := s.settings.GetByID(ctx, input.RestaurantID)
	if err != nil {
		if errors.Is(err, restaurant.ErrNotFound) {
			return nil, fmt.Errorf("service: %w: %s", ErrRestaurantNotFound, input.RestaurantID)
		}
		return nil, fmt.Errorf("service: failed to load restaurant: %w", err)
	}
	if !rest.IsOpen {
		return nil, &ValidationError{Field: "restaurant", Message: "is not accepting orders", Err: ErrRestaurantClosed}
	}

	snapshot, err := s.menu.GetAvailableItems(ctx, input.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read menu: %w", err)
	}

	lines, err := revalidate(cartLines, menu.Index(snapshot))
	if err != nil {
		log.Warn().Err(err).Stringer("restaurant_id", input.RestaurantID).Msg("service: rejected stale cart")
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("service: failed to generate order id: %w", err)
	}

	tableNumber := strings.TrimSpace(input.TableNumber)
	if tableNumber == "" {
		tableNumber = TableTakeaway
	}

	now := s.now().UTC()
	o := &Order{
		ID:           id,
		RestaurantID: input.RestaurantID,
		CustomerName: customerName,
		TableNumber:  tableNumber,
		Lines:        lines,
		Status:       StatusPending,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.TotalAmount = o.LinesTotal()

	unlock := s.locks.lock(o.ID)
	defer unlock()

	if err := s.orderRepo.CreateOrder(ctx, o); err != nil {
		log.Error().Err(err).Stringer("order_id", o.ID).Msg("service: failed to create order in repository")
		return nil, fmt.Errorf("service: failed to create order: %w", err)
	}
	s.invalidateStats(ctx, o.RestaurantID)
	s.publish(ctx, realtime.KindCreated, o)

	log.Info().
		Stringer("order_id", o.ID).
		Stringer("restaurant_id", o.RestaurantID).
		Int64("total_amount", o.TotalAmount).
		Msg("service: order created")

	return o, nil
}

// revalidate builds order lines from the fresh menu, reporting every cart
// line that is gone or priced differently.
func revalidate(cartLines []CartLine, current map[uuid.UUID]menu.Item) ([]Line, error) {
	var stale []StaleItem
	lines := make([]Line, 0, len(cartLines))

	for _, cl := range cartLines {
		item, ok := current[cl.Item.ID]
		switch {
		case !ok || !item.IsAvailable:
			stale = append(stale, StaleItem{
				MenuItemID: cl.Item.ID,
				Name:       cl.Item.Name,
				Reason:     StaleUnavailable,
				CartPrice:  cl.Item.UnitPrice,
			})
			continue
		case item.UnitPrice != cl.Item.UnitPrice:
			stale = append(stale, StaleItem{
				MenuItemID:   cl.Item.ID,
				Name:         item.Name,
				Reason:       StalePriceChanged,
				CartPrice:    cl.Item.UnitPrice,
				CurrentPrice: item.UnitPrice,
			})
			continue
		}

		lines = append(lines, Line{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   cl.Quantity,
		})
	}

	if len(stale) > 0 {
		return nil, &StaleCartError{Items: stale}
	}
	return lines, nil
}

func (s *service) TransitionStatus(ctx context.Context, orderID uuid.UUID, requested Status, actor access.Principal) (*Order, error) {
	if !actor.Approved() {
		return nil, fmt.Errorf("service: %w", access.ErrNotApproved)
	}

	current, err := s.loadOwned(ctx, orderID, actor)
	if err != nil {
		return nil, err
	}

	if current.Status == requested {
		log.Info().Stringer("order_id", orderID).Stringer("status", requested).Msg("service: order already has the requested status")
		return nil, fmt.Errorf("service: order %s is already %s: %w", orderID, requested, ErrConflict)
	}

	decision := NextStatus(current.Status, requested, actor.Role)
	if !decision.Allowed {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("current_status", current.Status).
			Stringer("new_status", requested).
			Stringer("role", actor.Role).
			Str("reason", string(decision.Reason)).
			Msg("service: status transition denied")
		return nil, decision.Err()
	}

	unlock := s.locks.lock(orderID)
	defer unlock()

	updated, err := s.orderRepo.UpdateStatus(ctx, orderID, current.Status, decision.Next)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			log.Warn().Stringer("order_id", orderID).Stringer("expected_status", current.Status).Msg("service: lost status update race")
			return nil, fmt.Errorf("service: order %s changed concurrently: %w", orderID, ErrConflict)
		}
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to update order status in repository")
		return nil, fmt.Errorf("service: failed to update order status: %w", err)
	}
	s.invalidateStats(ctx, updated.RestaurantID)
	s.publish(ctx, realtime.KindUpdated, updated)

	log.Info().
		Stringer("order_id", orderID).
		Stringer("old_status", current.Status).
		Stringer("new_status", updated.Status).
		Stringer("user_id", actor.UserID).
		Msg("service: order status updated")

	return updated, nil
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to fetch order by id in repository")
		return nil, fmt.Errorf("service: failed to fetch order by id: %w", err)
	}
	return o, nil
}

func (s *service) GetOrderForStaff(ctx context.Context, orderID uuid.UUID, actor access.Principal) (*Order, error) {
	if err := access.Require(actor, access.CapViewOrders); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return s.loadOwned(ctx, orderID, actor)
}

func (s *service) ListOrders(ctx context.Context, actor access.Principal, filter ListFilter) ([]Order, error) {
	if err := access.Require(actor, access.CapViewOrders); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", filter.Status)}
	}

	orders, err := s.orderRepo.ListOrders(ctx, actor.RestaurantID, filter)
	if err != nil {
		log.Error().Err(err).Stringer("restaurant_id", actor.RestaurantID).Msg("service: failed to list orders in repository")
		return nil, fmt.Errorf("service: failed to list orders: %w", err)
	}
	return orders, nil
}

// ReportPayment records the customer's own claim of having paid. The claim is
// not verified and leaves the status alone; repeating it is a no-op.
func (s *service) ReportPayment(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		if current.Status != StatusPending {
			return nil, fmt.Errorf("service: payment can only be reported for pending orders, order %s is %s: %w",
				orderID, current.Status, ErrInvalidTransition)
		}
		if current.PaymentReported {
			return current, nil
		}

		updated, err := s.markPaid(ctx, orderID)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrConflict) || attempt > 0 {
			return nil, err
		}

		// Someone changed the order in between; decide again on fresh state.
		if current, err = s.GetOrder(ctx, orderID); err != nil {
			return nil, err
		}
	}
}

func (s *service) markPaid(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	unlock := s.locks.lock(orderID)
	defer unlock()

	updated, err := s.orderRepo.MarkPaymentReported(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		log.Error().Err(err).Stringer("order_id", orderID).Msg("service: failed to mark payment in repository")
		return nil, fmt.Errorf("service: failed to mark payment: %w", err)
	}
	s.publish(ctx, realtime.KindUpdated, updated)

	log.Info().Stringer("order_id", orderID).Msg("service: customer reported payment")
	return updated, nil
}

func (s *service) loadOwned(ctx context.Context, orderID uuid.UUID, actor access.Principal) (*Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(o.RestaurantID) {
		log.Warn().
			Stringer("order_id", orderID).
			Stringer("user_id", actor.UserID).
			Stringer("restaurant_id", actor.RestaurantID).
			Msg("service: order belongs to another restaurant")
		return nil, fmt.Errorf("service: order %s belongs to another restaurant: %w", orderID, ErrForbidden)
	}
	return o, nil
}

// invalidateStats runs after every write that changes revenue or order counts
// and before the matching notification, since dashboards re-fetch stats on it.
func (s *service) invalidateStats(ctx context.Context, restaurantID uuid.UUID) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, restaurantID)
	}
}

func (s *service) publish(ctx context.Context, kind realtime.Kind, o *Order) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, realtime.Notification{
		Kind:         kind,
		OrderID:      o.ID,
		RestaurantID: o.RestaurantID,
		Version:      o.Version,
		Status:       string(o.Status),
		OccurredAt:   o.UpdatedAt,
	})
}
