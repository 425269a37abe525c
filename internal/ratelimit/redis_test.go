package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := NewRedisStore(ctx, client, WithPrefix(fmt.Sprintf("limiter-test-%d:", time.Now().UnixNano())))
	if err != nil {
		t.Skipf("Skipping integration test: Redis not available (%v)", err)
	}
	return store
}

func TestRedisStore_SlidingWindow(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	clock := newFakeClock()
	p := NewSlidingWindow(NameSliding, store, 5, time.Minute, WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		d, err := p.Allow(ctx, "redis-user")
		require.NoError(t, err)
		assert.True(t, d.Allow)
	}
	d, err := p.Allow(ctx, "redis-user")
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Positive(t, d.RetryAfter)

	clock.Advance(time.Minute)
	d, err = p.Allow(ctx, "redis-user")
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestRedisStore_SameInstantCountsTwice(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, store.Add(ctx, "k", at))
	require.NoError(t, store.Add(ctx, "k", at))
	hits, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	remaining, err := store.GC(ctx, at.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
	require.NoError(t, store.Delete(ctx, "k"))
}

func TestRedisScore_ExactAtMicroseconds(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 30, 45, 123456789, time.UTC)
	sc := toScore(at)
	assert.Equal(t, at.UnixMicro(), int64(sc))
	assert.True(t, fromScore(sc).Equal(at.Truncate(time.Microsecond)))
	assert.Equal(t, "1792067445123456", score(at))

	next := at.Add(time.Microsecond)
	assert.Equal(t, sc+1, toScore(next), "adjacent microseconds keep distinct scores")
}

func TestRedisStore_PruneAtWindowBoundary(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()
	cutoff := time.Now().Truncate(time.Microsecond)

	require.NoError(t, store.Add(ctx, "edge", cutoff))
	require.NoError(t, store.Add(ctx, "edge", cutoff.Add(time.Microsecond)))
	require.NoError(t, store.Prune(ctx, "edge", cutoff))

	hits, err := store.Get(ctx, "edge")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.True(t, hits[0].Equal(cutoff.Add(time.Microsecond)))
	require.NoError(t, store.Delete(ctx, "edge"))
}
