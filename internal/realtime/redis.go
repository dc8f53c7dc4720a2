package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const publishTimeout = 2 * time.Second

func ordersChannel(prefix string, restaurantID uuid.UUID) string {
	return fmt.Sprintf("%s:orders:%s", prefix, restaurantID)
}

// RedisPublisher sends notifications to the per-restaurant Redis channel so
// that every replica's RedisRelay sees them.
type RedisPublisher struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	return &RedisPublisher{client: client, prefix: prefix}
}

func (p *RedisPublisher) Publish(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		log.Error().Err(err).Stringer("order_id", n.OrderID).Msg("realtime: failed to encode notification")
		return
	}

	// The write already happened; a cancelled request must not drop the event.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	channel := ordersChannel(p.prefix, n.RestaurantID)
	if err := p.client.Publish(pubCtx, channel, payload).Err(); err != nil {
		log.Error().Err(err).
			Str("channel", channel).
			Stringer("order_id", n.OrderID).
			Str("kind", string(n.Kind)).
			Msg("realtime: failed to publish notification to redis")
	}
}

// RedisRelay feeds notifications from Redis into the local hub.
type RedisRelay struct {
	client redis.UniversalClient
	prefix string
	hub    *Hub
}

func NewRedisRelay(client redis.UniversalClient, prefix string, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, prefix: prefix, hub: hub}
}

// Run blocks until ctx is cancelled. Once the subscription is confirmed, ready
// (if not nil) is closed. A resubscription after a connection loss triggers a
// hub-wide resync because messages published meanwhile are lost.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pattern := r.prefix + ":orders:*"
	pubsub := r.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: failed to subscribe to %s: %w", pattern, err)
	}
	log.Info().Str("pattern", pattern).Msg("realtime: redis relay subscribed")
	if ready != nil {
		close(ready)
	}

	ch := pubsub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				log.Warn().Str("channel", m.Channel).Msg("realtime: redis relay resubscribed, asking sessions to resync")
				r.hub.Resync()
			case *redis.Message:
				r.forward(ctx, m)
			}
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context, m *redis.Message) {
	var n Notification
	if err := json.Unmarshal([]byte(m.Payload), &n); err != nil {
		log.Warn().Err(err).Str("channel", m.Channel).Msg("realtime: dropping malformed notification")
		return
	}
	if !strings.HasSuffix(m.Channel, n.RestaurantID.String()) {
		log.Warn().Str("channel", m.Channel).Stringer("restaurant_id", n.RestaurantID).Msg("realtime: notification on foreign channel")
		return
	}
	r.hub.Publish(ctx, n)
}
