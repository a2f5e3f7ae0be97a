package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for cooldown tracking.
var (
	cooldownTriggersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scripture_cooldown_triggers_total",
		Help: "Total number of global cooldowns triggered by rate limit signals",
	})

	cooldownRemainingSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scripture_cooldown_remaining_seconds",
		Help: "Seconds remaining in the active global cooldown at the last trigger",
	})
)

// Cooldown tracks the global "no dispatch until" deadline.
type Cooldown struct {
	store       CooldownStore
	defaultWait time.Duration
	now         Clock
	logger      zerolog.Logger

	mu    sync.Mutex
	state CooldownState
}

// CooldownOption configures a Cooldown.
type CooldownOption func(*Cooldown)

// WithCooldownClock overrides the time source.
func WithCooldownClock(now Clock) CooldownOption {
	return func(c *Cooldown) {
		c.now = now
	}
}

// WithDefaultWait overrides DefaultCooldown.
func WithDefaultWait(d time.Duration) CooldownOption {
	return func(c *Cooldown) {
		if d > 0 {
			c.defaultWait = d
		}
	}
}

// NewCooldown creates a cooldown backed by store (a MemoryStore when nil).
func NewCooldown(store CooldownStore, logger zerolog.Logger, opts ...CooldownOption) *Cooldown {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cooldown{
		store:       store,
		defaultWait: DefaultCooldown,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trigger suspends dispatching for wait (the default when wait <= 0) and
// returns the resulting deadline. An active, later deadline is kept.
func (c *Cooldown) Trigger(ctx context.Context, wait time.Duration) time.Time {
	if wait <= 0 {
		wait = c.defaultWait
	}
	now := c.now()
	until := now.Add(wait)

	c.mu.Lock()
	if until.After(c.state.Until) {
		c.state.Until = until
	}
	c.state.LastTrigger = now
	c.state.Triggers++
	until = c.state.Until
	c.mu.Unlock()

	if err := c.store.Extend(ctx, until); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to share cooldown deadline")
	}

	cooldownTriggersTotal.Inc()
	cooldownRemainingSeconds.Set(until.Sub(now).Seconds())

	c.logger.Warn().
		Dur("wait", wait).
		Time("cooldown_until", until).
		Msg("Upstream rate limit - global cooldown active")

	return until
}

// Until returns the effective deadline, merging the shared store with the
// locally known value. Store errors fall back to the local value.
func (c *Cooldown) Until(ctx context.Context) time.Time {
	shared, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load shared cooldown, using local state")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if shared.After(c.state.Until) {
		c.state.Until = shared
	}
	return c.state.Until
}

// Remaining returns the time left in the cooldown, 0 when inactive.
func (c *Cooldown) Remaining(ctx context.Context) time.Duration {
	d := c.Until(ctx).Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// Active reports whether dispatching is currently suspended.
func (c *Cooldown) Active(ctx context.Context) bool {
	return c.Remaining(ctx) > 0
}

// State returns a snapshot of the cooldown.
func (c *Cooldown) State(ctx context.Context) CooldownState {
	c.Until(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset clears the cooldown locally and in the store.
func (c *Cooldown) Reset(ctx context.Context) error {
	c.mu.Lock()
	c.state.Until = time.Time{}
	c.mu.Unlock()

	cooldownRemainingSeconds.Set(0)
	return c.store.Reset(ctx)
}
