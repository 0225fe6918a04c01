// Package storage provides the Redis-backed insight card cache. The engine
// itself is a pure function of its inputs; this is the calling-layer cache it
// delegates to, keyed explicitly by account, card, window bounds, and metric.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-insights/internal/insights"
)

// CardCache caches computed insight cards. A nil *CardCache is a valid no-op
// cache, so callers never branch on whether caching is configured.
type CardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCardCache creates a cache over the given Redis client.
func NewCardCache(client *redis.Client, ttl time.Duration) *CardCache {
	return &CardCache{client: client, ttl: ttl}
}

// Key builds the explicit cache key: account + card + window bounds + metric.
// Two requests that could produce different results must never share a key.
func Key(accountID uuid.UUID, card string, window insights.DateRange, metric string) string {
	return fmt.Sprintf("insights:%s:%s:%s:%s:%s",
		accountID, card,
		window.Start.Format("2006-01-02"), window.End.Format("2006-01-02"),
		metric)
}

// Get unmarshals a cached card into dst. Returns false on miss, expiry, or
// any Redis error so a broken cache degrades to fresh computation.
func (c *CardCache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// Set stores a computed card under the key with the cache TTL.
func (c *CardCache) Set(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cached card: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}
