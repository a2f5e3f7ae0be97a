package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var limiterRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "scripture_rate_limit_rejections_total",
	Help: "Total number of calls rejected by the local sliding-window limiter",
})

// Limiter is a sliding-window request counter. It is advisory: callers ask
// before dispatching and back off when rejected.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         Clock

	mu         sync.Mutex
	timestamps []time.Time
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithLimiterClock overrides the time source.
func WithLimiterClock(now Clock) LimiterOption {
	return func(l *Limiter) {
		l.now = now
	}
}

// NewLimiter creates a limiter allowing maxRequests calls per window.
func NewLimiter(maxRequests int, window time.Duration, opts ...LimiterOption) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckLimit records a call, or rejects it with a rate limit error whose
// Wait is the time until the oldest recorded call leaves the window.
// Rejected calls are not recorded.
func (l *Limiter) CheckLimit() error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	if len(l.timestamps) >= l.maxRequests {
		wait := l.window - now.Sub(l.timestamps[0])
		limiterRejectionsTotal.Inc()
		return apierr.RateLimited(wait, fmt.Sprintf(
			"local limit of %d requests per %s exceeded", l.maxRequests, l.window))
	}

	l.timestamps = append(l.timestamps, now)
	return nil
}

// Remaining returns the number of calls still allowed in the current window.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	return l.maxRequests - len(l.timestamps)
}

// Reset forgets all recorded calls.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = nil
}

// prune drops timestamps that have left the window, so a rejection always
// carries a positive wait. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	i := 0
	for i < len(l.timestamps) && now.Sub(l.timestamps[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
