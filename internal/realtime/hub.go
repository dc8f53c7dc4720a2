package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrSubscriberLagging = errors.New("realtime: subscriber lagging")
	ErrHubClosed         = errors.New("realtime: hub closed")
)

type scope uint8

const (
	scopeRestaurant scope = iota + 1
	scopeOrder
)

type topic struct {
	scope scope
	id    uuid.UUID
}

// Subscription is one session's view of the fan-out. C is closed when the
// subscription ends; Err then says why.
type Subscription struct {
	hub   *Hub
	topic topic
	ch    chan Notification
	done  chan struct{}

	mu     sync.Mutex
	closed bool
	err    error
}

func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Done is closed together with C.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.closeWith(nil)
}

func (s *Subscription) closeWith(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	close(s.done)
	s.mu.Unlock()

	s.hub.remove(s)
}

// offer enqueues n without blocking and reports false when the buffer is full.
func (s *Subscription) offer(n Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- n:
		return true
	default:
		return false
	}
}

// Hub is the in-process registry of realtime sessions.
type Hub struct {
	buffer int

	mu     sync.RWMutex
	subs   map[topic]map[*Subscription]struct{}
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[topic]map[*Subscription]struct{}),
	}
}

// SubscribeOrders follows every order of a restaurant.
func (h *Hub) SubscribeOrders(ctx context.Context, restaurantID uuid.UUID) (*Subscription, error) {
	return h.subscribe(ctx, topic{scope: scopeRestaurant, id: restaurantID})
}

// SubscribeOrder follows a single order.
func (h *Hub) SubscribeOrder(ctx context.Context, orderID uuid.UUID) (*Subscription, error) {
	return h.subscribe(ctx, topic{scope: scopeOrder, id: orderID})
}

func (h *Hub) subscribe(ctx context.Context, t topic) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Subscription{
		hub:   h,
		topic: t,
		ch:    make(chan Notification, h.buffer),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	set, ok := h.subs[t]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[t] = set
	}
	set[s] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.closeWith(ctx.Err())
		case <-s.done:
		}
	}()

	return s, nil
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[s.topic]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.topic)
	}
}

// Publish delivers n to the restaurant's sessions and to the order's
// tracking sessions. It never blocks: a subscriber whose buffer is full is
// closed with ErrSubscriberLagging and has to reconnect.
func (h *Hub) Publish(_ context.Context, n Notification) {
	lagging := h.deliver(n, topic{scope: scopeRestaurant, id: n.RestaurantID}, topic{scope: scopeOrder, id: n.OrderID})
	h.drop(lagging)
}

// Resync tells every session to re-fetch, e.g. after the upstream relay
// reconnected and may have missed messages.
func (h *Hub) Resync() {
	h.mu.RLock()
	topics := make([]topic, 0, len(h.subs))
	for t := range h.subs {
		topics = append(topics, t)
	}
	h.mu.RUnlock()

	n := Notification{Kind: KindResync, OccurredAt: time.Now().UTC()}
	h.drop(h.deliver(n, topics...))
}

func (h *Hub) deliver(n Notification, topics ...topic) []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var lagging []*Subscription
	for _, t := range topics {
		for s := range h.subs[t] {
			if !s.offer(n) {
				lagging = append(lagging, s)
			}
		}
	}
	return lagging
}

func (h *Hub) drop(lagging []*Subscription) {
	for _, s := range lagging {
		log.Warn().
			Stringer("topic_id", s.topic.id).
			Str("kind", "lagging").
			Msg("realtime: dropping slow subscriber")
		s.closeWith(ErrSubscriberLagging)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, set := range h.subs {
		count += len(set)
	}
	return count
}

// Close ends every subscription with ErrHubClosed and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		s.closeWith(ErrHubClosed)
	}
}
