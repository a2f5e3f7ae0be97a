package cache

import (
	"sync"
	"time"
)

// TTL is a key/value store with per-entry expiry and no size bound.
// It is safe for concurrent use.
type TTL[V any] struct {
	name       string
	defaultTTL time.Duration
	now        Clock

	mu      sync.Mutex
	entries map[string]*Entry[V]
}

// Option configures a cache.
type Option func(*options)

type options struct {
	now Clock
}

// WithClock overrides the time source.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewTTL creates a TTL cache. name labels the cache in metrics and logs,
// defaultTTL applies to Set.
func NewTTL[V any](name string, defaultTTL time.Duration, opts ...Option) *TTL[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultSearchTTL
	}
	return &TTL[V]{
		name:       name,
		defaultTTL: defaultTTL,
		now:        o.now,
		entries:    make(map[string]*Entry[V]),
	}
}

// Default TTLs per concern.
const (
	DefaultPassageTTL = 15 * time.Minute
	DefaultSearchTTL  = 5 * time.Minute
	DefaultVersionTTL = time.Hour
)

// Name returns the cache name.
func (c *TTL[V]) Name() string {
	return c.name
}

// DefaultTTL returns the TTL applied by Set.
func (c *TTL[V]) DefaultTTL() time.Duration {
	return c.defaultTTL
}

// Get returns the value for key. An expired entry is deleted and reported
// as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		CacheMisses.WithLabelValues("ttl", c.name).Inc()
		return zero, false
	}

	if entry.IsExpired(c.now()) {
		delete(c.entries, key)
		CacheExpirations.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues("ttl", c.name).Inc()
		CacheEntries.WithLabelValues("ttl", c.name).Set(float64(len(c.entries)))
		return zero, false
	}

	CacheHits.WithLabelValues("ttl", c.name).Inc()
	return entry.Value, true
}

// Set stores value with the default TTL.
func (c *TTL[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value expiring after ttl. A non-positive ttl falls back
// to the default.
func (c *TTL[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry[V]{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	CacheEntries.WithLabelValues("ttl", c.name).Set(float64(len(c.entries)))
}

// Delete removes a single entry.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	CacheEntries.WithLabelValues("ttl", c.name).Set(float64(len(c.entries)))
}

// DeleteFunc removes every entry whose key matches and returns the count.
func (c *TTL[V]) DeleteFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if match(key) {
			delete(c.entries, key)
			removed++
		}
	}
	CacheEntries.WithLabelValues("ttl", c.name).Set(float64(len(c.entries)))
	return removed
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry[V])
	CacheEntries.WithLabelValues("ttl", c.name).Set(0)
}

// Prune drops every expired entry and returns how many were removed.
func (c *TTL[V]) Prune() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		CacheExpirations.WithLabelValues(c.name).Add(float64(removed))
		CacheEntries.WithLabelValues("ttl", c.name).Set(float64(len(c.entries)))
	}
	return removed
}

// Len returns the number of live entries.
func (c *TTL[V]) Len() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, entry := range c.entries {
		if !entry.IsExpired(now) {
			n++
		}
	}
	return n
}
