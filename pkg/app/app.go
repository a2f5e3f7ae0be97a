// Package app wires the scripture client runtime: one request queue, one
// cooldown and limiter, the caches, the Scripture and chat clients, and the
// preload scheduler. Consumers hold an *App instead of reaching for globals.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/scripture-client/internal/config"
	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/chat"
	"github.com/Sternrassler/scripture-client/pkg/logging"
	"github.com/Sternrassler/scripture-client/pkg/preload"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/ratelimit"
	"github.com/Sternrassler/scripture-client/pkg/retry"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Config holds the runtime configuration.
type Config struct {
	Scripture scripture.Config
	Chat      chat.Config
	Queue     queue.Config
	Retry     retry.Config
	Preload   preload.Config

	// PreloadEnabled turns the background scheduler on.
	PreloadEnabled bool

	// RateLimitMax requests are allowed per RateLimitWindow.
	RateLimitMax    int
	RateLimitWindow time.Duration
	DefaultCooldown time.Duration

	ContentSize int

	// RedisURL shares the cooldown between processes. Empty keeps it in memory.
	RedisURL string
}

// DefaultConfig returns the runtime defaults without credentials.
func DefaultConfig() Config {
	return Config{
		Chat:            chat.DefaultConfig(),
		Queue:           queue.DefaultConfig(),
		Retry:           retry.DefaultConfig(),
		Preload:         preload.DefaultConfig(),
		PreloadEnabled:  true,
		RateLimitMax:    ratelimit.DefaultMaxRequests,
		RateLimitWindow: ratelimit.DefaultWindow,
		DefaultCooldown: ratelimit.DefaultCooldown,
		ContentSize:     cache.DefaultContentSize,
	}
}

// FromFile maps a loaded configuration file onto the runtime configuration.
func FromFile(f *config.Config) Config {
	cfg := DefaultConfig()

	cfg.Scripture = scripture.Config{
		APIKey:          f.Bible.APIKey,
		BaseURL:         f.Bible.BaseURL,
		DefaultBibleID:  f.Bible.DefaultBibleID,
		UserAgent:       f.Bible.UserAgent,
		PassageTTL:      config.Duration(f.Bible.PassageTTL, cache.DefaultPassageTTL),
		SearchTTL:       config.Duration(f.Bible.SearchTTL, cache.DefaultSearchTTL),
		MetadataTTL:     config.Duration(f.Bible.MetadataTTL, cache.DefaultVersionTTL),
		BookConcurrency: f.Bible.BookConcurrency,
	}

	cfg.Chat.APIKey = f.Chat.APIKey
	cfg.Chat.APIURL = f.Chat.APIURL
	cfg.Chat.Referer = f.Chat.Referer
	if f.Chat.Model != "" {
		cfg.Chat.Model = f.Chat.Model
	}

	cfg.Queue.MinInterval = config.Duration(f.Queue.MinInterval, cfg.Queue.MinInterval)
	cfg.Queue.BufferDelay = config.Duration(f.Queue.BufferDelay, cfg.Queue.BufferDelay)

	if f.RateLimit.MaxRequests > 0 {
		cfg.RateLimitMax = f.RateLimit.MaxRequests
	}
	cfg.RateLimitWindow = config.Duration(f.RateLimit.Window, cfg.RateLimitWindow)
	cfg.DefaultCooldown = config.Duration(f.RateLimit.DefaultCooldown, cfg.DefaultCooldown)

	cfg.Retry.Timeout = config.Duration(f.Retry.Timeout, cfg.Retry.Timeout)
	cfg.Retry.MaxRetries = f.Retry.MaxRetries
	cfg.Retry.BaseDelay = config.Duration(f.Retry.BaseDelay, cfg.Retry.BaseDelay)
	cfg.Retry.MaxDelay = config.Duration(f.Retry.MaxDelay, cfg.Retry.MaxDelay)

	if f.Cache.ContentSize > 0 {
		cfg.ContentSize = f.Cache.ContentSize
	}

	cfg.PreloadEnabled = f.Preload.Enabled
	if f.Preload.FactsPerDay > 0 {
		cfg.Preload.FactsPerDay = f.Preload.FactsPerDay
	}

	cfg.RedisURL = f.Redis.URL
	return cfg
}

// App is the assembled runtime.
type App struct {
	config Config
	logger zerolog.Logger

	redis      *redis.Client
	ownsRedis  bool
	storeKind  string
	httpClient *http.Client

	Limiter   *ratelimit.Limiter
	Cooldown  *ratelimit.Cooldown
	Queue     *queue.Queue
	Content   *cache.Content
	Scripture *scripture.Client
	Chat      *chat.Client

	// Preload is nil when preloading is disabled.
	Preload *preload.Scheduler

	startOnce sync.Once
	closeOnce sync.Once
}

// Option configures an App.
type Option func(*App)

// WithHTTPClient sets the HTTP client of both upstream clients.
func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) {
		a.httpClient = hc
	}
}

// WithRedisClient shares the cooldown through an existing Redis client.
// The caller keeps ownership of the client.
func WithRedisClient(rc *redis.Client) Option {
	return func(a *App) {
		a.redis = rc
	}
}

// New assembles the runtime. When a Redis URL is configured the server is
// pinged and an unreachable server is an error.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	a := &App{
		config: cfg,
		logger: logging.NewLogger(logging.ComponentApp),
	}
	for _, opt := range opts {
		opt(a)
	}

	store, err := a.cooldownStore(ctx)
	if err != nil {
		return nil, err
	}

	a.Limiter = ratelimit.NewLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	a.Cooldown = ratelimit.NewCooldown(store, logging.NewLogger("cooldown"), ratelimit.WithDefaultWait(cfg.DefaultCooldown))
	a.Queue = queue.New(cfg.Queue, a.Cooldown)
	a.Content = cache.NewContent(cfg.ContentSize)

	scriptureOpts := []scripture.Option{
		scripture.WithContentCache(a.Content),
		scripture.WithExecutor(retry.New(cfg.Retry, retry.WithLimiter(a.Limiter))),
	}
	if a.httpClient != nil {
		scriptureOpts = append(scriptureOpts, scripture.WithHTTPClient(a.httpClient))
	}
	a.Scripture = scripture.New(cfg.Scripture, a.Queue, scriptureOpts...)

	chatOpts := []chat.Option{chat.WithVerseSearcher(a.Scripture)}
	if a.httpClient != nil {
		chatOpts = append(chatOpts, chat.WithHTTPClient(a.httpClient))
	}
	a.Chat = chat.New(cfg.Chat, chatOpts...)

	if cfg.PreloadEnabled {
		a.Preload = preload.New(cfg.Preload, a.Scripture, a.Content)
	}
	return a, nil
}

func (a *App) cooldownStore(ctx context.Context) (ratelimit.CooldownStore, error) {
	if a.redis == nil && a.config.RedisURL != "" {
		opts, err := redis.ParseURL(a.config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		a.ownsRedis = true
	}
	if a.redis == nil {
		a.storeKind = "memory"
		return ratelimit.NewMemoryStore(), nil
	}

	if err := a.redis.Ping(ctx).Err(); err != nil {
		if a.ownsRedis {
			a.redis.Close()
		}
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.storeKind = "redis"
	a.logger.Info().Str("addr", a.redis.Options().Addr).Msg("Sharing cooldown through Redis")
	return ratelimit.NewRedisStore(a.redis), nil
}

// Start begins queue processing and reports missing configuration once.
// Cancelling ctx shuts the queue down.
func (a *App) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		a.Queue.Start(ctx)

		status := a.Status(ctx)
		for _, svc := range []ServiceStatus{status.Scripture, status.Chat} {
			if !svc.Configured {
				a.logger.Error().Str("service", svc.Name).Strs("missing", svc.Missing).Msg("Service not configured")
			}
		}
		a.logger.Info().
			Str("cooldown_store", a.storeKind).
			Bool("preload", a.Preload != nil).
			Msg("Runtime started")
	})
}

// Close stops the scheduler and the queue and releases Redis.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		if a.Preload != nil {
			a.Preload.Close()
		}
		a.Queue.Close()
		if a.ownsRedis {
			err = a.redis.Close()
		}
		a.logger.Info().Msg("Runtime stopped")
	})
	return err
}
