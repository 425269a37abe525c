package cache

import (
	"bytes"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultCapacity is the maximum number of entries held by the local tier.
const DefaultCapacity = 1000

type localEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// LocalStore is a bounded in-process map that evicts in insertion order.
// Overwriting a key keeps its original insertion position.
type LocalStore struct {
	mu       sync.Mutex
	entries  *orderedmap.OrderedMap[string, localEntry]
	capacity int
	size     int64
	now      func() time.Time
}

// NewLocalStore creates a local store holding at most capacity entries.
func NewLocalStore(capacity int, now func() time.Time) *LocalStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &LocalStore{
		entries:  orderedmap.New[string, localEntry](),
		capacity: capacity,
		now:      now,
	}
}

// Get returns the value for key. Expired entries are removed and reported as a miss.
func (s *LocalStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(s.now()) {
		s.remove(key)
		return nil, false
	}
	return bytes.Clone(e.value), true
}

// Set stores value under key. A ttl of zero or less means no expiry.
// When the store is over capacity the oldest inserted entry is evicted, expired or not.
func (s *LocalStore) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := localEntry{value: bytes.Clone(value)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	if old, present := s.entries.Set(key, e); present {
		s.size -= int64(len(old.value))
	}
	s.size += int64(len(e.value))

	for s.entries.Len() > s.capacity {
		s.remove(s.entries.Oldest().Key)
	}
}

// Delete removes keys.
func (s *LocalStore) Delete(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.remove(k)
	}
}

// Exists reports whether key holds an unexpired value.
func (s *LocalStore) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns the unexpired keys matching a glob pattern, oldest first.
func (s *LocalStore) Keys(pattern string) []string {
	re, err := globToRegexp(pattern)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var keys []string
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.expired(now) {
			continue
		}
		if re.MatchString(pair.Key) {
			keys = append(keys, pair.Key)
		}
	}
	return keys
}

// TTL returns the remaining lifetime of key: -1 when it never expires, -2 when it is missing.
func (s *LocalStore) TTL(key string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	now := s.now()
	if !ok || e.expired(now) {
		return -2
	}
	if e.expiresAt.IsZero() {
		return -1
	}
	return e.expiresAt.Sub(now)
}

// Sweep evicts every expired entry and returns how many were removed.
func (s *LocalStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var expired []string
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.expired(now) {
			expired = append(expired, pair.Key)
		}
	}
	for _, k := range expired {
		s.remove(k)
	}
	return len(expired)
}

// Flush removes every entry.
func (s *LocalStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = orderedmap.New[string, localEntry]()
	s.size = 0
}

// Len returns the number of entries, including expired ones not yet swept.
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

// Size returns the bytes held by stored values.
func (s *LocalStore) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// remove deletes key; the caller holds mu.
func (s *LocalStore) remove(key string) {
	if old, present := s.entries.Delete(key); present {
		s.size -= int64(len(old.value))
	}
}
