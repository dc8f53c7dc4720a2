package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/order"
)

const invalidateTimeout = 2 * time.Second

type OrderSource interface {
	ListOrdersCreatedBetween(ctx context.Context, restaurantID uuid.UUID, from, to time.Time) ([]order.Order, error)
}

// Cache stores computed stats. Key is resolved before the orders are read so
// that an invalidation racing with the computation is never masked.
type Cache interface {
	Key(ctx context.Context, restaurantID uuid.UUID, w Window) (string, error)
	Get(ctx context.Context, key string) (Stats, bool, error)
	Set(ctx context.Context, key string, s Stats) error
	Invalidate(ctx context.Context, restaurantID uuid.UUID) error
}

type Aggregator struct {
	orders OrderSource
	cache  Cache
	loc    *time.Location
}

// NewAggregator builds an aggregator; cache may be nil.
func NewAggregator(orders OrderSource, cache Cache, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{orders: orders, cache: cache, loc: loc}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

func authorize(actor access.Principal, restaurantID uuid.UUID) error {
	if err := access.Require(actor, access.CapViewRevenue); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if !actor.Owns(restaurantID) {
		return fmt.Errorf("stats: restaurant %s: %w", restaurantID, access.ErrForbidden)
	}
	return nil
}

func (a *Aggregator) ComputeStats(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, w Window) (Stats, error) {
	if err := authorize(actor, restaurantID); err != nil {
		return Stats{}, err
	}
	if err := w.Validate(); err != nil {
		return Stats{}, err
	}

	key := a.cacheKey(ctx, restaurantID, w)
	if key != "" {
		cached, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("stats: cache read failed, recomputing")
		} else if ok {
			return cached, nil
		}
	}

	orders, err := a.orders.ListOrdersCreatedBetween(ctx, restaurantID, w.From, w.To)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: failed to load orders: %w", err)
	}
	s := Aggregate(orders, w)

	if key != "" {
		if err := a.cache.Set(ctx, key, s); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("stats: cache write failed")
		}
	}
	return s, nil
}

func (a *Aggregator) cacheKey(ctx context.Context, restaurantID uuid.UUID, w Window) string {
	if a.cache == nil {
		return ""
	}
	key, err := a.cache.Key(ctx, restaurantID, w)
	if err != nil {
		log.Warn().Err(err).Stringer("restaurant_id", restaurantID).Msg("stats: cache unavailable")
		return ""
	}
	return key
}

// Invalidate drops every cached window of the restaurant.
func (a *Aggregator) Invalidate(ctx context.Context, restaurantID uuid.UUID) {
	if a.cache == nil {
		return
	}

	// The order write is already committed; a cancelled request must still bump the generation.
	invCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	if err := a.cache.Invalidate(invCtx, restaurantID); err != nil {
		log.Warn().Err(err).Stringer("restaurant_id", restaurantID).Msg("stats: cache invalidation failed")
	}
}

// Report is the end-of-day sheet: the day's completed orders and their totals.
type Report struct {
	Date     string        `json:"date"`
	Window   Window        `json:"window"`
	Revenue  int64         `json:"revenue"`
	Orders   []order.Order `json:"orders"`
	TopItems []TopItem     `json:"top_items"`
}

// DailyReport lists the completed orders created on the calendar day of day
// in the aggregator's timezone.
func (a *Aggregator) DailyReport(ctx context.Context, actor access.Principal, restaurantID uuid.UUID, day time.Time) (*Report, error) {
	if err := authorize(actor, restaurantID); err != nil {
		return nil, err
	}

	w := Day(day, a.loc)
	orders, err := a.orders.ListOrdersCreatedBetween(ctx, restaurantID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("stats: failed to load orders: %w", err)
	}

	completed := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == order.StatusCompleted {
			completed = append(completed, o)
		}
	}
	s := Aggregate(completed, w)

	return &Report{
		Date:     w.From.Format(time.DateOnly),
		Window:   w,
		Revenue:  s.Revenue,
		Orders:   completed,
		TopItems: s.TopItems,
	}, nil
}
