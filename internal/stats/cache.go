package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache keys entries by a per-restaurant generation number. Invalidation
// bumps the generation, so stale entries are never read again and expire by TTL.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) generationKey(restaurantID uuid.UUID) string {
	return fmt.Sprintf("%s:stats:gen:%s", c.prefix, restaurantID)
}

func (c *RedisCache) Key(ctx context.Context, restaurantID uuid.UUID, w Window) (string, error) {
	gen, err := c.client.Get(ctx, c.generationKey(restaurantID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("stats: failed to read cache generation: %w", err)
	}
	return fmt.Sprintf("%s:stats:%s:%d:%d:%d", c.prefix, restaurantID, gen, w.From.UnixNano(), w.To.UnixNano()), nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (Stats, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stats{}, false, nil
	}
	if err != nil {
		return Stats{}, false, fmt.Errorf("stats: failed to read cache: %w", err)
	}

	var s Stats
	if err := json.Unmarshal(raw, &s); err != nil {
		return Stats{}, false, fmt.Errorf("stats: corrupt cache entry %s: %w", key, err)
	}
	return s, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, s Stats) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("stats: failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats: failed to write cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, restaurantID uuid.UUID) error {
	if err := c.client.Incr(ctx, c.generationKey(restaurantID)).Err(); err != nil {
		return fmt.Errorf("stats: failed to bump cache generation: %w", err)
	}
	return nil
}
