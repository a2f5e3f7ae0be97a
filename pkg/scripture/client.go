// Package scripture provides the Scripture API client used by every page of
// the application.
//
// Every network call is paced by the global request queue and executed
// through the retry executor. Results are cached twice: in a per-concern TTL
// cache and in the shared LRU content cache, which is consulted first.
package scripture

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/batch"
	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Config holds the client configuration.
type Config struct {
	// Provider credentials and endpoint. All three are required.
	APIKey         string
	BaseURL        string
	DefaultBibleID string

	// UserAgent is sent with every request when set.
	UserAgent string

	// TTLs per concern. Zero values take the cache package defaults.
	PassageTTL  time.Duration
	SearchTTL   time.Duration
	MetadataTTL time.Duration

	// BookConcurrency bounds how many chapters LoadBook queues at once.
	BookConcurrency int
}

// Client is the Scripture API client.
type Client struct {
	config     Config
	httpClient *http.Client
	queue      *queue.Queue
	executor   *retry.Executor
	content    *cache.Content
	logger     zerolog.Logger
	group      singleflight.Group

	flightsMu sync.Mutex
	flights   map[string]*flight

	passages *cache.TTL[Passage]
	searches *cache.TTL[[]Verse]
	bibles   *cache.TTL[[]Bible]
	books    *cache.TTL[[]Book]
	chapters *cache.TTL[[]Chapter]
	verses   *cache.TTL[[]VerseSummary]
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithExecutor sets the retry executor wrapping every request.
func WithExecutor(ex *retry.Executor) Option {
	return func(c *Client) {
		c.executor = ex
	}
}

// WithContentCache shares an LRU content cache with other components.
func WithContentCache(content *cache.Content) Option {
	return func(c *Client) {
		c.content = content
	}
}

// WithCacheClock overrides the time source of the TTL caches.
func WithCacheClock(now cache.Clock) Option {
	return func(c *Client) {
		c.newTTLCaches(cache.WithClock(now))
	}
}

// New creates a client submitting its requests to q.
// Missing credentials do not fail construction; every call then returns an
// error matching apierr.ErrNotConfigured.
func New(cfg Config, q *queue.Queue, opts ...Option) *Client {
	if q == nil {
		panic("request queue cannot be nil")
	}

	c := &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		queue:   q,
		logger:  log.With().Str("component", "scripture-client").Logger(),
		flights: make(map[string]*flight),
	}
	c.newTTLCaches()

	for _, opt := range opts {
		opt(c)
	}

	if c.executor == nil {
		c.executor = retry.New(retry.DefaultConfig())
	}
	if c.content == nil {
		c.content = cache.NewContent(cache.DefaultContentSize)
	}

	if missing := c.Missing(); len(missing) > 0 {
		c.logger.Warn().Strs("missing", missing).Msg("Scripture API not fully configured")
	}
	return c
}

func (c *Client) newTTLCaches(opts ...cache.Option) {
	metadataTTL := c.config.MetadataTTL
	if metadataTTL <= 0 {
		metadataTTL = cache.DefaultVersionTTL
	}
	passageTTL := c.config.PassageTTL
	if passageTTL <= 0 {
		passageTTL = cache.DefaultPassageTTL
	}

	c.passages = cache.NewTTL[Passage]("passages", passageTTL, opts...)
	c.searches = cache.NewTTL[[]Verse]("search", c.config.SearchTTL, opts...)
	c.bibles = cache.NewTTL[[]Bible]("bibles", metadataTTL, opts...)
	c.books = cache.NewTTL[[]Book]("books", metadataTTL, opts...)
	c.chapters = cache.NewTTL[[]Chapter]("chapters", metadataTTL, opts...)
	c.verses = cache.NewTTL[[]VerseSummary]("verses", metadataTTL, opts...)
}

// Missing lists absent required settings.
func (c *Client) Missing() []string {
	var missing []string
	if c.config.APIKey == "" {
		missing = append(missing, "API key")
	}
	if c.config.BaseURL == "" {
		missing = append(missing, "base URL")
	}
	if c.config.DefaultBibleID == "" {
		missing = append(missing, "Bible ID")
	}
	return missing
}

// Configured reports whether all required settings are present.
func (c *Client) Configured() bool {
	return len(c.Missing()) == 0
}

func (c *Client) checkConfiguration() error {
	if missing := c.Missing(); len(missing) > 0 {
		return apierr.NotConfigured("bible api", missing...)
	}
	return nil
}

// DefaultBibleID returns the configured default translation.
func (c *Client) DefaultBibleID() string {
	return c.config.DefaultBibleID
}

// Content returns the LRU content cache.
func (c *Client) Content() *cache.Content {
	return c.content
}

func (c *Client) bibleID(id string) string {
	if id != "" {
		return id
	}
	return c.config.DefaultBibleID
}

// ClearCaches empties every TTL cache and the content cache.
func (c *Client) ClearCaches() {
	c.passages.Clear()
	c.searches.Clear()
	c.bibles.Clear()
	c.books.Clear()
	c.chapters.Clear()
	c.verses.Clear()
	c.content.ClearAll()
}

// SwitchVersion drops everything cached for the previous translation from
// both cache layers, so reading under it again issues a fresh request. It
// returns the number of content cache entries removed.
func (c *Client) SwitchVersion(from, to string) int {
	if from == "" || from == to {
		return 0
	}
	removed := c.content.ClearVersion(from)

	suffix := ":" + from
	match := func(key string) bool { return strings.HasSuffix(key, suffix) }
	expired := c.passages.DeleteFunc(match) +
		c.searches.DeleteFunc(match) +
		c.books.DeleteFunc(match) +
		c.chapters.DeleteFunc(match) +
		c.verses.DeleteFunc(match)

	c.logger.Info().
		Str("from", from).
		Str("to", to).
		Int("removed", removed).
		Int("ttl_removed", expired).
		Msg("Switched Bible version")
	return removed
}

func (c *Client) newBatch() *batch.Fetcher[int, Passage] {
	cfg := batch.DefaultConfig()
	if c.config.BookConcurrency > 0 {
		cfg.MaxConcurrency = c.config.BookConcurrency
	}
	return batch.New[int, Passage](cfg)
}

// fetch resolves key through the content cache, then ttl, then the queue.
// Concurrent identical fetches share one queued request. The queued request
// is detached from ctx, so a caller giving up does not cancel it and the
// result still lands in the caches. A High caller joining a flight that was
// queued at Normal promotes it.
func fetch[T any](ctx context.Context, c *Client, key cache.Key, ttl *cache.TTL[T], priority queue.Priority, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := c.content.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	id := key.String()
	if v, ok := ttl.Get(id); ok {
		c.content.Set(key, v)
		return v, nil
	}

	f := c.joinFlight(id, priority)
	defer c.leaveFlight(id, f)

	ch := c.group.DoChan(id, func() (any, error) {
		ticket := c.enqueueFlight(f, priority, func(ctx context.Context) (any, error) {
			return retry.Do(ctx, c.executor, load)
		})
		defer c.leaveFlight(id, f)

		v, err := ticket.Wait(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		typed, _ := v.(T)
		ttl.Set(id, typed)
		c.content.Set(key, typed)
		return typed, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// flight is the queued request behind a singleflight key. refs counts the
// waiting callers plus the running leader.
type flight struct {
	ticket *queue.Ticket
	high   bool
	refs   int
}

// joinFlight registers a caller for id. A High caller promotes a request
// already queued at Normal, or marks the flight so the leader queues High.
func (c *Client) joinFlight(id string, priority queue.Priority) *flight {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	f, ok := c.flights[id]
	if !ok {
		f = &flight{}
		c.flights[id] = f
	}
	f.refs++

	if priority == queue.High && !f.high {
		f.high = true
		if f.ticket != nil && c.queue.Promote(f.ticket.ID) {
			c.logger.Debug().Str("key", id).Str("request_id", f.ticket.ID).Msg("Promoted pending fetch")
		}
	}
	return f
}

// enqueueFlight queues the leader's request at the flight's priority.
func (c *Client) enqueueFlight(f *flight, priority queue.Priority, op queue.Operation) *queue.Ticket {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	if f.high {
		priority = queue.High
	}
	f.refs++
	f.ticket = c.queue.Enqueue(priority, op)
	return f.ticket
}

func (c *Client) leaveFlight(id string, f *flight) {
	c.flightsMu.Lock()
	defer c.flightsMu.Unlock()

	f.refs--
	if f.refs <= 0 && c.flights[id] == f {
		delete(c.flights, id)
	}
}

// cached reports whether key is available without a network call.
func cached[T any](c *Client, key cache.Key, ttl *cache.TTL[T]) bool {
	if c.content.Contains(key) {
		return true
	}
	_, ok := ttl.Get(key.String())
	return ok
}
