package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownStore persists the cooldown deadline for the process (memory) or
// for every process sharing the API key (Redis).
type CooldownStore interface {
	// Load returns the current deadline, or the zero time if none is set.
	Load(ctx context.Context) (time.Time, error)

	// Extend moves the deadline to until if until is later than the stored value.
	Extend(ctx context.Context, until time.Time) error

	// Reset clears the deadline.
	Reset(ctx context.Context) error
}

// MemoryStore keeps the deadline in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	until time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements CooldownStore.
func (s *MemoryStore) Load(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.until, nil
}

// Extend implements CooldownStore.
func (s *MemoryStore) Extend(_ context.Context, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until.After(s.until) {
		s.until = until
	}
	return nil
}

// Reset implements CooldownStore.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.until = time.Time{}
	return nil
}

// extendScript sets KEYS[1] to ARGV[1] (unix ms) with a PX expiry of ARGV[2]
// only when it is later than the stored deadline.
var extendScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if tonumber(ARGV[1]) > current then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return 1
end
return 0
`)

// RedisStore shares the deadline through Redis. The key expires together
// with the cooldown, so no stale state outlives it.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a Redis-backed store using RedisKeyCooldownUntil.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis: redisClient,
		key:   RedisKeyCooldownUntil,
	}
}

// Load implements CooldownStore.
func (s *RedisStore) Load(ctx context.Context) (time.Time, error) {
	ms, err := s.redis.Get(ctx, s.key).Int64()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("get cooldown deadline: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// Extend implements CooldownStore.
func (s *RedisStore) Extend(ctx context.Context, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	// PX must be at least 1ms.
	px := ttl.Milliseconds()
	if px < 1 {
		px = 1
	}
	if err := extendScript.Run(ctx, s.redis, []string{s.key}, until.UnixMilli(), px).Err(); err != nil {
		return fmt.Errorf("store cooldown deadline in redis: %w", err)
	}
	return nil
}

// Reset implements CooldownStore.
func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
