// Package ratelimit provides windowed request limiters keyed by caller identity.
// Limiter state lives in an injected Store so the in-process default can be swapped
// for Redis without touching call sites.
package ratelimit

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"
)

// Identity names a counter: the policy namespace and the caller key.
type Identity struct {
	Namespace string
	Key       string
}

func (id Identity) String() string {
	return id.Namespace + ":" + id.Key
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allow      bool
	Limit      int
	Remaining  int
	Current    int           // requests counted in the deciding window
	Window     time.Duration // the deciding window
	RetryAfter time.Duration // whole seconds, set when rejected
	ResetTime  time.Time
}

// Policy admits or rejects a request for a caller key.
type Policy interface {
	Name() string
	Allow(ctx context.Context, key string) (Decision, error)
}

// Option configures a policy.
type Option func(*base)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// base holds what every policy shares.
type base struct {
	name  string
	store Store
	now   func() time.Time
	locks *keyLocks
}

func newBase(name string, store Store, opts []Option) base {
	b := base{name: name, store: store, now: time.Now, locks: &keyLocks{}}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Name returns the policy namespace.
func (b *base) Name() string { return b.name }

func (b *base) key(caller string) string {
	return Identity{Namespace: b.name, Key: caller}.String()
}

// lockStripes bounds the number of mutexes guarding read-modify-write on counters.
const lockStripes = 64

// keyLocks serializes checks on the same key without a global lock.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *keyLocks) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &l.stripes[h.Sum32()%lockStripes]
	m.Lock()
	return m.Unlock
}

// ceilSeconds rounds d up to whole seconds with a floor of one second.
func ceilSeconds(d time.Duration) time.Duration {
	secs := math.Ceil(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// countAfter returns how many ascending timestamps are strictly after cutoff.
func countAfter(hits []time.Time, cutoff time.Time) int {
	for i, t := range hits {
		if t.After(cutoff) {
			return len(hits) - i
		}
	}
	return 0
}
