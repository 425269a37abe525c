package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RemoteTier is the shared cache behind the local tier.
type RemoteTier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Flush(ctx context.Context) error
	Size(ctx context.Context) (int64, error)
	MemoryUsed(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Close() error
}

// scanBatch is the COUNT hint for SCAN.
const scanBatch = 100

// RedisTier is a RemoteTier backed by Redis.
type RedisTier struct {
	client *redis.Client
}

var _ RemoteTier = &RedisTier{} // Compile-time check

// NewRedisTier creates a RedisTier from a redis:// URL. It does not connect eagerly.
func NewRedisTier(redisURL string) (*RedisTier, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	opt.MaxRetries = 1
	return &RedisTier{client: redis.NewClient(opt)}, nil
}

// NewRedisTierFromClient wraps an existing client.
func NewRedisTierFromClient(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

// Client returns the underlying client so other components can share the connection pool.
func (r *RedisTier) Client() *redis.Client { return r.client }

// Get implements the RemoteTier interface.
func (r *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements the RemoteTier interface. A ttl of zero or less stores without expiry.
func (r *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Delete implements the RemoteTier interface.
func (r *RedisTier) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// Exists implements the RemoteTier interface.
func (r *RedisTier) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Keys implements the RemoteTier interface using SCAN rather than KEYS.
func (r *RedisTier) Keys(ctx context.Context, pattern string) ([]string, error) {
	if !validPattern(pattern) {
		return nil, fmt.Errorf("unsupported glob pattern %q: only * and ? are allowed", pattern)
	}
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// TTL implements the RemoteTier interface: -1 for no expiry, -2 when missing.
func (r *RedisTier) TTL(ctx context.Context, key string) (time.Duration, error) {
	return r.client.TTL(ctx, key).Result()
}

// Flush implements the RemoteTier interface.
func (r *RedisTier) Flush(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

// Size implements the RemoteTier interface.
func (r *RedisTier) Size(ctx context.Context) (int64, error) {
	return r.client.DBSize(ctx).Result()
}

// MemoryUsed implements the RemoteTier interface.
func (r *RedisTier) MemoryUsed(ctx context.Context) (string, error) {
	info, err := r.client.Info(ctx, "memory").Result()
	if err != nil {
		return "", err
	}
	return parseUsedMemory(info), nil
}

// Ping implements the RemoteTier interface.
func (r *RedisTier) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements the RemoteTier interface.
func (r *RedisTier) Close() error {
	return r.client.Close()
}

// parseUsedMemory extracts used_memory_human from an INFO memory reply.
func parseUsedMemory(info string) string {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "used_memory_human:"); ok {
			return v
		}
	}
	return "N/A"
}
