package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
)

// GetJSON reads and decodes a cached value. Undecodable entries are reported as a miss.
func GetJSON[T any](ctx context.Context, c contract.Cache, key string) (T, bool) {
	var v T
	b, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON encodes and caches a value.
func SetJSON[T any](ctx context.Context, c contract.Cache, key string, v T, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}
	c.Set(ctx, key, b, ttl)
	return nil
}

// WrapJSON is Wrap for values that round-trip through JSON.
// A cached entry that no longer decodes is dropped and recomputed.
func WrapJSON[T any](ctx context.Context, c contract.Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	produce := func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	b, err := c.Wrap(ctx, key, ttl, produce)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(b, &v); err == nil {
		return v, nil
	}

	c.Delete(ctx, key)
	b, err = c.Wrap(ctx, key, ttl, produce)
	if err != nil {
		return zero, err
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return zero, fmt.Errorf("failed to decode cache value for %s: %w", key, err)
	}
	return v, nil
}
