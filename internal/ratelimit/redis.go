package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix  = "limiter:"
	defaultRedisTimeout = time.Second

	// redisKeyTTL bounds how long an idle counter survives without GC.
	redisKeyTTL = 24 * time.Hour
)

// RedisStore keeps each counter as a sorted set scored by unix microseconds,
// so counters are shared across instances. Microsecond scores stay below 2^53
// and survive the float64 round trip exactly.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ Store = &RedisStore{} // Compile-time check

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTimeout bounds each Redis round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.timeout = d }
}

// NewRedisStore wraps a connected client and verifies it responds.
func NewRedisStore(ctx context.Context, client *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{client: client, prefix: defaultRedisPrefix, timeout: defaultRedisTimeout}
	for _, opt := range opts {
		opt(s)
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return s, nil
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + key
}

func toScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func fromScore(score float64) time.Time {
	return time.UnixMicro(int64(score))
}

func score(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

// Get implements the Store interface.
func (s *RedisStore) Get(ctx context.Context, key string) ([]time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	zs, err := s.client.ZRangeWithScores(ctx, s.redisKey(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	hits := make([]time.Time, 0, len(zs))
	for _, z := range zs {
		hits = append(hits, fromScore(z.Score))
	}
	return hits, nil
}

// Add implements the Store interface.
func (s *RedisStore) Add(ctx context.Context, key string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rk := s.redisKey(key)
	pipe := s.client.TxPipeline()
	// Members must be unique; two hits in the same microsecond still count twice.
	pipe.ZAdd(ctx, rk, redis.Z{Score: toScore(at), Member: uuid.NewString()})
	pipe.Expire(ctx, rk, redisKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Prune implements the Store interface.
func (s *RedisStore) Prune(ctx context.Context, key string, cutoff time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.ZRemRangeByScore(ctx, s.redisKey(key), "-inf", score(cutoff)).Err()
}

// Delete implements the Store interface.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// GC implements the Store interface. Sorted sets left empty are removed by Redis itself.
func (s *RedisStore) GC(ctx context.Context, cutoff time.Time) (int, error) {
	remaining := 0
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rk := iter.Val()
		if err := s.client.ZRemRangeByScore(ctx, rk, "-inf", score(cutoff)).Err(); err != nil {
			return remaining, err
		}
		n, err := s.client.Exists(ctx, rk).Result()
		if err != nil {
			return remaining, err
		}
		remaining += int(n)
	}
	return remaining, iter.Err()
}
