package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// SlidingWindow admits a request when fewer than Max requests were recorded
// in the trailing Window.
type SlidingWindow struct {
	base
	max    int
	window time.Duration
}

var _ Policy = &SlidingWindow{} // Compile-time check

// NewSlidingWindow creates a sliding-window policy.
func NewSlidingWindow(name string, store Store, max int, window time.Duration, opts ...Option) *SlidingWindow {
	return &SlidingWindow{base: newBase(name, store, opts), max: max, window: window}
}

// Allow implements the Policy interface.
func (p *SlidingWindow) Allow(ctx context.Context, caller string) (Decision, error) {
	key := p.key(caller)
	unlock := p.locks.lock(key)
	defer unlock()

	now := p.now()
	if err := p.store.Prune(ctx, key, now.Add(-p.window)); err != nil {
		return Decision{}, fmt.Errorf("failed to prune counter %s: %w", key, err)
	}
	hits, err := p.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	d := Decision{Limit: p.max, Window: p.window, Current: len(hits), ResetTime: now.Add(p.window)}
	if len(hits) >= p.max {
		d.RetryAfter = ceilSeconds(hits[0].Add(p.window).Sub(now))
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
