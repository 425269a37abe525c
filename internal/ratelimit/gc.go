package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultMaxAge is how long a timestamp is retained before GC drops it.
const DefaultMaxAge = 24 * time.Hour

// Janitor periodically drops stale timestamps from a Store.
type Janitor struct {
	store  Store
	maxAge time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewJanitor creates a Janitor for store.
func NewJanitor(store Store, maxAge time.Duration, logger *slog.Logger) *Janitor {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{store: store, maxAge: maxAge, now: time.Now, logger: logger}
}

// Collect runs one GC pass and returns the number of live keys.
func (j *Janitor) Collect(ctx context.Context) (int, error) {
	remaining, err := j.store.GC(ctx, j.now().Add(-j.maxAge))
	if err != nil {
		j.logger.Warn("rate limiter gc failed", "error", err)
		return remaining, err
	}
	j.logger.Debug("rate limiter gc complete", "keys", remaining)
	return remaining, nil
}

// Register schedules Collect on c using a cron spec such as "@hourly".
func (j *Janitor) Register(ctx context.Context, c *cron.Cron, spec string) error {
	_, err := c.AddFunc(spec, func() { _, _ = j.Collect(ctx) })
	return err
}
