package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// FixedWindow admits up to Max requests per Window. A window opens at the
// first request from a key and the count resets once it elapses.
type FixedWindow struct {
	base
	max    int
	window time.Duration
}

var _ Policy = &FixedWindow{} // Compile-time check

// NewFixedWindow creates a fixed-window policy.
func NewFixedWindow(name string, store Store, max int, window time.Duration, opts ...Option) *FixedWindow {
	return &FixedWindow{base: newBase(name, store, opts), max: max, window: window}
}

// Allow implements the Policy interface.
func (p *FixedWindow) Allow(ctx context.Context, caller string) (Decision, error) {
	key := p.key(caller)
	unlock := p.locks.lock(key)
	defer unlock()

	now := p.now()
	hits, err := p.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	if len(hits) > 0 && !now.Before(hits[0].Add(p.window)) {
		if err := p.store.Delete(ctx, key); err != nil {
			return Decision{}, fmt.Errorf("failed to reset counter %s: %w", key, err)
		}
		hits = nil
	}

	start := now
	if len(hits) > 0 {
		start = hits[0]
	}
	reset := start.Add(p.window)
	d := Decision{Limit: p.max, Window: p.window, ResetTime: reset, Current: len(hits)}

	if len(hits) >= p.max {
		d.RetryAfter = ceilSeconds(reset.Sub(now))
		return d, nil
	}
	if err := p.store.Add(ctx, key, now); err != nil {
		return Decision{}, fmt.Errorf("failed to record hit %s: %w", key, err)
	}
	d.Allow = true
	d.Current++
	d.Remaining = p.max - d.Current
	return d, nil
}
