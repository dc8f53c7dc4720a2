package realtime

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
)

type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	// KindSnapshot is the first frame of every session: fetch full state now.
	KindSnapshot Kind = "snapshot"
	// KindResync tells subscribers that notifications may have been missed.
	KindResync Kind = "resync"
)

// Notification says that an order changed. It carries no order contents;
// receivers re-fetch the order and may see the same notification twice.
type Notification struct {
	Kind         Kind      `json:"kind"`
	OrderID      uuid.UUID `json:"order_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`
	Version      int64     `json:"version"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher hands a notification to the fan-out. Implementations never block
// the caller on slow subscribers and log their own delivery failures.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}

// MultiPublisher publishes to every wrapped publisher in order.
type MultiPublisher []Publisher

func (m MultiPublisher) Publish(ctx context.Context, n Notification) {
	for _, p := range m {
		p.Publish(ctx, n)
	}
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, n Notification)

func (f PublisherFunc) Publish(ctx context.Context, n Notification) {
	f(ctx, n)
}
