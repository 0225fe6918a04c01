package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/campaign-insights/internal/insights"
)

type testCard struct {
	State string `json:"state"`
	Score int    `json:"score"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*CardCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCardCache(client, ttl), mr
}

func TestCardCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := "insights:test:roundtrip"

	var miss testCard
	assert.False(t, cache.Get(ctx, key, &miss), "empty cache must miss")

	want := testCard{State: "ok", Score: 87}
	require.NoError(t, cache.Set(ctx, key, want))

	var got testCard
	require.True(t, cache.Get(ctx, key, &got))
	assert.Equal(t, want, got)
}

func TestCardCacheExpiry(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	key := "insights:test:expiry"

	require.NoError(t, cache.Set(ctx, key, testCard{State: "ok"}))
	mr.FastForward(2 * time.Minute)

	var got testCard
	assert.False(t, cache.Get(ctx, key, &got), "expired entry must miss")
}

func TestCardCacheNilIsNoOp(t *testing.T) {
	var cache *CardCache
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "k", testCard{}))
	var got testCard
	assert.False(t, cache.Get(ctx, "k", &got))
}

func TestCardCacheBrokenBackendDegrades(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k", testCard{State: "ok"}))

	mr.Close()

	var got testCard
	assert.False(t, cache.Get(ctx, "k", &got), "backend failure must read as a miss")
	assert.Error(t, cache.Set(ctx, "k", testCard{}))
}

func TestKeyIncludesWindowBounds(t *testing.T) {
	accountID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	window := insights.DateRange{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	key := Key(accountID, "reliability", window, "week:all")
	assert.Equal(t, "insights:6ba7b810-9dad-11d1-80b4-00c04fd430c8:reliability:2025-03-01:2025-06-01:week:all", key)

	other := Key(accountID, "reliability", insights.DateRange{
		Start: window.Start.AddDate(0, 0, 1),
		End:   window.End,
	}, "week:all")
	assert.NotEqual(t, key, other, "different windows must never share a key")
}
