// Package retry bounds operations with a per-attempt deadline and retries
// transient failures with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the configuration for retry logic.
type Config struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier is applied to the delay after each retry.
	Multiplier float64

	// Jitter randomizes each delay by ±Jitter (0.2 = ±20%). Zero disables it.
	Jitter float64
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MaxRetries: 2,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Limiter is consulted before every attempt.
type Limiter interface {
	CheckLimit() error
}

// Executor runs operations under Config.
type Executor struct {
	config  Config
	limiter Limiter
	logger  zerolog.Logger

	// sleep waits for d or until ctx ends.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithLimiter makes every attempt ask limiter first.
func WithLimiter(limiter Limiter) Option {
	return func(e *Executor) {
		e.limiter = limiter
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = sleep
	}
}

// New creates an executor. Zero fields in cfg take their defaults.
func New(cfg Config, opts ...Option) *Executor {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}

	e := &Executor{
		config: cfg,
		logger: log.With().Str("component", "retry").Logger(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Do executes op until it succeeds, fails with a non-retryable error, or
// runs out of retries. The last error is returned unwrapped.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := e.config.BaseDelay
	attempts := e.config.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := e.attempt(ctx, op)
		if err == nil {
			if attempt > 1 {
				e.logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}
		lastErr = err
		class := classLabel(err)

		if !shouldRetry(ctx, err) {
			return err
		}
		if attempt >= attempts {
			break
		}

		retriesTotal.WithLabelValues(class).Inc()
		wait := e.withJitter(delay)
		retryBackoffSeconds.WithLabelValues(class).Observe(wait.Seconds())

		e.logger.Warn().
			Err(err).
			Str("error_class", class).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")

		if err := e.sleep(ctx, wait); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * e.config.Multiplier)
		if e.config.MaxDelay > 0 && delay > e.config.MaxDelay {
			delay = e.config.MaxDelay
		}
	}

	class := classLabel(lastErr)
	retryExhaustedTotal.WithLabelValues(class).Inc()
	e.logger.Error().
		Err(lastErr).
		Str("error_class", class).
		Int("max_attempts", attempts).
		Msg("Retry attempts exhausted")

	return lastErr
}

// attempt runs op once under the per-attempt deadline.
func (e *Executor) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if e.limiter != nil {
		if err := e.limiter.CheckLimit(); err != nil {
			return err
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	err := op(attemptCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		// A transport error caused by the attempt deadline is a timeout.
		if c := apierr.ClassOf(err); c == "" || c == apierr.ClassNetwork {
			return apierr.Timeout(e.config.Timeout, err)
		}
	}
	return err
}

func (e *Executor) withJitter(d time.Duration) time.Duration {
	if e.config.Jitter <= 0 {
		return d
	}
	j := e.config.Jitter
	return time.Duration(float64(d) * (1 - j + rand.Float64()*2*j))
}

// Do runs op through ex and returns its value.
func Do[T any](ctx context.Context, ex *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := ex.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// shouldRetry reports whether err is transient. Rate limits, missing
// configuration, 404 and other 4xx responses are final. Unclassified
// failures are treated as transport errors.
func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch apierr.ClassOf(err) {
	case "":
		return !errors.Is(err, context.Canceled)
	default:
		return apierr.Retryable(err)
	}
}

func classLabel(err error) string {
	if c := apierr.ClassOf(err); c != "" {
		return string(c)
	}
	return "unknown"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
