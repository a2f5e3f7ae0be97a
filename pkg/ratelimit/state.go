// Package ratelimit implements local request self-throttling and the global
// cooldown imposed after the upstream signals rate limiting.
//
// Two mechanisms live here:
//
//   - Limiter: a sliding-window counter rejecting calls beyond N per window.
//   - Cooldown: a single process-wide "do not dispatch until" timestamp,
//     optionally shared between processes through Redis because the upstream
//     limit is per API key, not per caller.
package ratelimit

import (
	"time"
)

// Redis keys for shared cooldown state.
const (
	RedisKeyCooldownUntil = "scripture:rate_limit:cooldown_until"
)

// Defaults for cooldown handling.
const (
	// DefaultCooldown applies when the upstream signals rate limiting
	// without a wait hint.
	DefaultCooldown = 60 * time.Second

	// DefaultMaxRequests and DefaultWindow bound the local limiter.
	DefaultMaxRequests = 5
	DefaultWindow      = 60 * time.Second
)

// Clock returns the current time.
type Clock func() time.Time

// CooldownState represents the current global cooldown.
type CooldownState struct {
	// Until is the moment dispatching may resume. Zero when never triggered.
	Until time.Time `json:"until"`

	// LastTrigger is when the cooldown was last triggered.
	LastTrigger time.Time `json:"last_trigger"`

	// Triggers counts cooldown triggers observed by this process.
	Triggers int `json:"triggers"`
}

// Active returns true while dispatching is suspended.
func (s CooldownState) Active(now time.Time) bool {
	return now.Before(s.Until)
}

// Remaining returns the duration until the cooldown ends.
// Returns 0 if the cooldown has already passed.
func (s CooldownState) Remaining(now time.Time) time.Duration {
	d := s.Until.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
