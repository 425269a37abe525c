package ratelimit

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Tier is one window of a progressive policy.
type Tier struct {
	Window time.Duration
	Limit  int
}

// Progressive enforces several sliding windows at once. The first saturated
// tier, shortest window first, rejects the request.
type Progressive struct {
	base
	tiers []Tier
}

var _ Policy = &Progressive{} // Compile-time check

// NewProgressive creates a progressive policy. Tiers are sorted by window.
func NewProgressive(name string, store Store, tiers []Tier, opts ...Option) *Progressive {
	sorted := slices.Clone(tiers)
	slices.SortFunc(sorted, func(a, b Tier) int { return int(a.Window - b.Window) })
	return &Progressive{base: newBase(name, store, opts), tiers: sorted}
}

// Tiers returns the configured tiers, shortest window first.
func (p *Progressive) Tiers() []Tier {
	return slices.Clone(p.tiers)
}

// Allow implements the Policy interface.
func (p *Progressive) Allow(ctx context.Context, caller string) (Decision, error) {
	if len(p.tiers) == 0 {
		return Decision{Allow: true}, nil
	}
	key := p.key(caller)
	unlock := p.locks.lock(key)
	defer unlock()

	now := p.now()
	longest := p.tiers[len(p.tiers)-1].Window
	if err := p.store.Prune(ctx, key, now.Add(-longest)); err != nil {
		return Decision{}, fmt.Errorf("failed to prune counter %s: %w", key, err)
	}
	hits, err := p.store.Get(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read counter %s: %w", key, err)
	}

	for _, tier := range p.tiers {
		count := countAfter(hits, now.Add(-tier.Window))
		if count >= tier.Limit {
			return Decision{
				Limit:      tier.Limit,
				Current:    count,
				Window:     tier.Window,
				RetryAfter: ceilSeconds(tier.Window),
				ResetTime:  now.Add(tier.Window),
			}, nil
		}
	}

	if err := p.store.Add(ctx, key, now); err != nil {
		return Decision{}, fmt.Errorf("failed to record hit %s: %w", key, err)
	}

	// Report headroom against the tightest tier.
	d := Decision{Allow: true, Limit: p.tiers[0].Limit, Window: p.tiers[0].Window, ResetTime: now.Add(p.tiers[0].Window)}
	d.Remaining = -1
	for _, tier := range p.tiers {
		count := countAfter(hits, now.Add(-tier.Window)) + 1
		if left := tier.Limit - count; d.Remaining < 0 || left < d.Remaining {
			d.Remaining = left
			d.Limit = tier.Limit
			d.Window = tier.Window
			d.Current = count
			d.ResetTime = now.Add(tier.Window)
		}
	}
	return d, nil
}
