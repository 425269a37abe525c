// Package cache is a two-tier key-value cache: a shared Redis tier when reachable,
// and a bounded in-process map otherwise.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
	"golang.org/x/sync/singleflight"
)

// Default intervals for background work.
const (
	DefaultSweepInterval = 60 * time.Second
	DefaultProbeInterval = 30 * time.Second
	DefaultOpTimeout     = 2 * time.Second
)

// State is the availability of the remote tier.
type State int32

// All cache states.
const (
	Degraded  State = iota // serving from the local tier
	Available              // serving from the remote tier
)

func (s State) String() string {
	if s == Available {
		return "available"
	}
	return "degraded"
}

// Cache implements contract.Cache over a local tier and an optional remote tier.
// Remote errors are never returned to callers; the cache degrades to the local tier
// and logs once per state transition.
type Cache struct {
	local  *LocalStore
	remote RemoteTier

	state atomic.Int32
	group singleflight.Group

	capacity      int
	sweepInterval time.Duration
	probeInterval time.Duration
	opTimeout     time.Duration
	now           func() time.Time
	logger        *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ contract.Cache = &Cache{} // Compile-time check

// Option configures a Cache.
type Option func(*Cache)

// WithRemote sets the remote tier.
func WithRemote(r RemoteTier) Option {
	return func(c *Cache) { c.remote = r }
}

// WithCapacity sets the local tier capacity.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// WithSweepInterval sets how often expired local entries are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) { c.sweepInterval = d }
}

// WithProbeInterval sets how often a degraded cache retries the remote tier.
func WithProbeInterval(d time.Duration) Option {
	return func(c *Cache) { c.probeInterval = d }
}

// WithTimeout bounds every remote call.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.opTimeout = d }
}

// WithClock sets the time source of the local tier.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache. When a remote tier is configured it is pinged once;
// failure leaves the cache degraded until a background probe succeeds.
func New(ctx context.Context, opts ...Option) *Cache {
	c := &Cache{
		capacity:      DefaultCapacity,
		sweepInterval: DefaultSweepInterval,
		probeInterval: DefaultProbeInterval,
		opTimeout:     DefaultOpTimeout,
		now:           time.Now,
		logger:        slog.Default(),
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.local = NewLocalStore(c.capacity, c.now)
	c.state.Store(int32(Degraded))

	if c.remote == nil {
		c.logger.Info("no remote cache configured, using local cache", "capacity", c.capacity)
		return c
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.remote.Ping(pingCtx); err != nil {
		c.logger.Warn("remote cache unavailable, using local fallback", "error", err)
		return c
	}
	c.state.Store(int32(Available))
	c.logger.Info("connected to remote cache")
	return c
}

// Start runs the local sweep and the remote reconnect probe until ctx ends or Close is called.
func (c *Cache) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		sweep := time.NewTicker(c.sweepInterval)
		defer sweep.Stop()

		var probeC <-chan time.Time
		if c.remote != nil {
			probe := time.NewTicker(c.probeInterval)
			defer probe.Stop()
			probeC = probe.C
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-sweep.C:
				if n := c.local.Sweep(); n > 0 {
					c.logger.Debug("swept expired cache entries", "count", n)
				}
			case <-probeC:
				c.Probe(ctx)
			}
		}
	}()
}

// Probe pings the remote tier of a degraded cache and restores it on success.
func (c *Cache) Probe(ctx context.Context) {
	if c.remote == nil || c.State() == Available {
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.remote.Ping(pingCtx); err != nil {
		return
	}
	if c.state.CompareAndSwap(int32(Degraded), int32(Available)) {
		c.logger.Info("remote cache reconnected")
	}
}

// Sweep evicts expired local entries now.
func (c *Cache) Sweep() int {
	return c.local.Sweep()
}

// Close stops background work and closes the remote tier.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
	if c.remote != nil {
		return c.remote.Close()
	}
	return nil
}

// State returns the availability of the remote tier.
func (c *Cache) State() State {
	return State(c.state.Load())
}

func (c *Cache) useRemote() bool {
	return c.remote != nil && c.State() == Available
}

// fail records a remote error. Caller cancellation does not count as an outage.
func (c *Cache) fail(ctx context.Context, op string, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return
	}
	if c.state.CompareAndSwap(int32(Available), int32(Degraded)) {
		c.logger.Warn("remote cache disconnected, using local fallback", "op", op, "error", err)
	}
}

func (c *Cache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// Get implements the contract.Cache interface.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		v, ok, err := c.remote.Get(opCtx, key)
		cancel()
		if err == nil {
			return v, ok
		}
		c.fail(ctx, "get", err)
	}
	return c.local.Get(key)
}

// Set implements the contract.Cache interface. A ttl of zero or less means no expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		err := c.remote.Set(opCtx, key, value, ttl)
		cancel()
		if err == nil {
			return
		}
		c.fail(ctx, "set", err)
	}
	c.local.Set(key, value, ttl)
}

// Delete implements the contract.Cache interface.
// Keys are always removed locally so values written while degraded cannot resurface.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.local.Delete(keys...)
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		err := c.remote.Delete(opCtx, keys...)
		cancel()
		if err != nil {
			c.fail(ctx, "delete", err)
		}
	}
}

// Exists implements the contract.Cache interface.
func (c *Cache) Exists(ctx context.Context, key string) bool {
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		ok, err := c.remote.Exists(opCtx, key)
		cancel()
		if err == nil {
			return ok
		}
		c.fail(ctx, "exists", err)
	}
	return c.local.Exists(key)
}

// Keys implements the contract.Cache interface with glob * and ? wildcards.
// While the remote tier is in use, local keys left over from an outage are
// listed too, so deleting the result clears the pattern from both tiers.
func (c *Cache) Keys(ctx context.Context, pattern string) []string {
	if !validPattern(pattern) {
		c.logger.Debug("rejected cache key pattern", "pattern", pattern)
		return nil
	}
	local := c.local.Keys(pattern)
	if !c.useRemote() {
		return local
	}

	opCtx, cancel := c.opContext(ctx)
	keys, err := c.remote.Keys(opCtx, pattern)
	cancel()
	if err != nil {
		c.fail(ctx, "keys", err)
		return local
	}
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range local {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}
	return keys
}

// TTL returns the remaining lifetime of key: -1 for no expiry, -2 when missing.
func (c *Cache) TTL(ctx context.Context, key string) time.Duration {
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		ttl, err := c.remote.TTL(opCtx, key)
		cancel()
		if err == nil {
			return ttl
		}
		c.fail(ctx, "ttl", err)
	}
	return c.local.TTL(key)
}

// Flush removes every entry from both tiers.
func (c *Cache) Flush(ctx context.Context) {
	c.local.Flush()
	if c.useRemote() {
		opCtx, cancel := c.opContext(ctx)
		err := c.remote.Flush(opCtx)
		cancel()
		if err != nil {
			c.fail(ctx, "flush", err)
		}
	}
}

// Wrap implements the contract.Cache interface.
// Concurrent misses on one key share a single call of fn. The call runs detached from
// the caller's cancellation so an abandoned request still populates the cache.
// A failed store is absorbed and the computed value is still returned.
func (c *Cache) Wrap(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		detached := context.WithoutCancel(ctx)
		if v, ok := c.Get(detached, key); ok {
			return v, nil
		}
		v, err := fn(detached)
		if err != nil {
			return nil, err
		}
		c.Set(detached, key, v, ttl)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Status reports the tier in use and its size.
func (c *Cache) Status(ctx context.Context) schema.CacheStatus {
	status := schema.CacheStatus{
		Type:          "memory",
		State:         c.State().String(),
		KeyCount:      int64(c.local.Len()),
		EstimatedSize: c.local.Size(),
		LocalKeys:     c.local.Len(),
	}
	if !c.useRemote() {
		return status
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	size, err := c.remote.Size(opCtx)
	if err != nil {
		c.fail(ctx, "status", err)
		status.State = c.State().String()
		return status
	}
	status.Type = "redis"
	status.Connected = true
	status.KeyCount = size
	if mem, err := c.remote.MemoryUsed(opCtx); err == nil {
		status.MemoryUsed = mem
	}
	return status
}
