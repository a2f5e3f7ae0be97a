package cache

import (
	"time"
)

// Clock returns the current time. Tests swap it for a controllable one.
type Clock func() time.Time

// Entry represents a cached value together with its bookkeeping timestamps.
type Entry[V any] struct {
	// Key is the string form of the cache key.
	Key string

	// Value is the cached payload.
	Value V

	// CreatedAt is when the value was stored.
	CreatedAt time.Time

	// ExpiresAt is when the entry becomes stale (TTL caches only).
	ExpiresAt time.Time

	// LastAccessedAt is updated on every read (LRU cache only).
	LastAccessedAt time.Time
}

// IsExpired returns true if the entry has expired at now.
// An entry with a zero ExpiresAt never expires.
func (e *Entry[V]) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[V]) TTL(now time.Time) time.Duration {
	ttl := e.ExpiresAt.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
