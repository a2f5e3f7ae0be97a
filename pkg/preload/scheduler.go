// Package preload warms the content cache in the background based on the
// page the user is viewing.
//
// Every fetch is submitted at normal priority behind foreground requests.
// Requests failing a guard are dropped, never deferred.
package preload

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/facts"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Page identifies the screen that triggered a preload.
type Page string

const (
	PageHome    Page = "home"
	PageReading Page = "reading"
	PageLookup  Page = "lookup"
	PageFacts   Page = "facts"
)

// Context describes what the user is looking at.
type Context struct {
	BibleID string

	// Book and Chapter are the chapter being read.
	Book    string
	Chapter int

	// LastChapter is the book's chapter count. Zero means unknown.
	LastChapter int

	// Day is the facts day currently shown. Zero means today.
	Day int
}

// Source loads and probes Scripture content.
type Source interface {
	GetPassage(ctx context.Context, passageID string, opts scripture.PassageOptions) (scripture.Passage, error)
	GetChapter(ctx context.Context, book string, chapter int, opts scripture.PassageOptions) (scripture.Passage, error)
	IsPassageCached(passageID, bibleID string) bool
	IsChapterCached(book string, chapter int, bibleID string) bool
}

// Config holds scheduler settings.
type Config struct {
	// CycleHold is how long a triggered cycle blocks the next one.
	CycleHold time.Duration

	// CacheHighWater disables preloading while the content cache holds
	// more entries.
	CacheHighWater int

	// MinInterval spaces preload attempts.
	MinInterval time.Duration

	NextChapterDelay time.Duration

	LookupDelay   time.Duration
	LookupPassage string

	// FactsHighWater disables facts preloading while the content cache
	// holds at least this many entries.
	FactsHighWater   int
	FactsDelay       time.Duration
	FactsItemSpacing time.Duration
	FactsPerDay      int
}

// DefaultConfig returns the default, deliberately conservative settings.
func DefaultConfig() Config {
	return Config{
		CycleHold:        time.Second,
		CacheHighWater:   20,
		MinInterval:      5 * time.Second,
		NextChapterDelay: 2 * time.Second,
		LookupDelay:      time.Second,
		LookupPassage:    "JHN.3.16",
		FactsHighWater:   15,
		FactsDelay:       10 * time.Second,
		FactsItemSpacing: 10 * time.Second,
		FactsPerDay:      5,
	}
}

// Stats is a snapshot of the scheduler and the cache it fills.
type Stats struct {
	Running      bool     `json:"running"`
	PendingTasks int      `json:"pending_tasks"`
	InFlight     []string `json:"in_flight"`
	CacheSize    int      `json:"cache_size"`
	CacheMax     int      `json:"cache_max"`
}

// Scheduler runs preload tasks. Create it with New and stop it with Close.
type Scheduler struct {
	config  Config
	source  Source
	content *cache.Content
	now     func() time.Time
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	cycleUntil  time.Time
	lastAttempt time.Time
	inFlight    map[string]bool
	pending     int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used by the guards.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a scheduler filling content through source. Zero config
// fields take their defaults.
func New(cfg Config, source Source, content *cache.Content, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.CycleHold <= 0 {
		cfg.CycleHold = def.CycleHold
	}
	if cfg.CacheHighWater <= 0 {
		cfg.CacheHighWater = def.CacheHighWater
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = def.MinInterval
	}
	if cfg.NextChapterDelay < 0 {
		cfg.NextChapterDelay = def.NextChapterDelay
	}
	if cfg.LookupDelay < 0 {
		cfg.LookupDelay = def.LookupDelay
	}
	if cfg.LookupPassage == "" {
		cfg.LookupPassage = def.LookupPassage
	}
	if cfg.FactsHighWater <= 0 {
		cfg.FactsHighWater = def.FactsHighWater
	}
	if cfg.FactsDelay < 0 {
		cfg.FactsDelay = def.FactsDelay
	}
	if cfg.FactsItemSpacing < 0 {
		cfg.FactsItemSpacing = def.FactsItemSpacing
	}
	if cfg.FactsPerDay <= 0 {
		cfg.FactsPerDay = def.FactsPerDay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		config:   cfg,
		source:   source,
		content:  content,
		now:      time.Now,
		logger:   log.With().Str("component", "preload").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SmartPreload schedules the preloads useful for page and returns
// immediately. Requests failing a guard are dropped.
func (s *Scheduler) SmartPreload(page Page, pc Context) {
	if reason, ok := s.admit(); !ok {
		preloadSkippedTotal.WithLabelValues(reason).Inc()
		s.logger.Debug().Str("page", string(page)).Str("reason", reason).Msg("Preload skipped")
		return
	}

	switch page {
	case PageReading:
		s.preloadNextChapter(pc)
	case PageLookup:
		s.preloadLookup(pc)
	case PageFacts:
		s.preloadFacts(pc)
	default:
		preloadSkippedTotal.WithLabelValues(reasonDisabled).Inc()
		s.logger.Debug().Str("page", string(page)).Msg("Preloading disabled for page")
	}
}

// admit applies the cycle, capacity and interval guards and starts a cycle.
func (s *Scheduler) admit() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	switch {
	case s.closed:
		return reasonClosed, false
	case now.Before(s.cycleUntil):
		return reasonCycle, false
	case s.content.NearCapacity(s.config.CacheHighWater):
		return reasonCacheFull, false
	case !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.config.MinInterval:
		return reasonTooSoon, false
	}

	s.lastAttempt = now
	s.cycleUntil = now.Add(s.config.CycleHold)
	return "", true
}

func (s *Scheduler) preloadNextChapter(pc Context) {
	if pc.Book == "" || pc.Chapter <= 0 {
		preloadSkippedTotal.WithLabelValues(reasonNoContext).Inc()
		return
	}
	next := pc.Chapter + 1
	if pc.LastChapter > 0 && next > pc.LastChapter {
		preloadSkippedTotal.WithLabelValues(reasonBeyondBook).Inc()
		s.logger.Debug().Str("book", pc.Book).Int("chapter", next).Msg("No next chapter to preload")
		return
	}

	id := scripture.ChapterID(pc.Book, next)
	s.spawn(PageReading, "chapter:"+id+":"+pc.BibleID, func(ctx context.Context) string {
		if !sleep(ctx, s.config.NextChapterDelay) {
			return outcomeCancelled
		}
		if s.source.IsChapterCached(pc.Book, next, pc.BibleID) {
			return outcomeCached
		}
		_, err := s.source.GetChapter(ctx, pc.Book, next, scripture.PassageOptions{
			BibleID:  pc.BibleID,
			Priority: queue.Normal,
		})
		return s.outcome(ctx, err, "chapter", id)
	})
}

func (s *Scheduler) preloadLookup(pc Context) {
	id := s.config.LookupPassage
	s.spawn(PageLookup, "passage:"+id+":"+pc.BibleID, func(ctx context.Context) string {
		if !sleep(ctx, s.config.LookupDelay) {
			return outcomeCancelled
		}
		if s.source.IsPassageCached(id, pc.BibleID) {
			return outcomeCached
		}
		_, err := s.source.GetPassage(ctx, id, scripture.PassageOptions{
			BibleID:  pc.BibleID,
			Priority: queue.Normal,
		})
		return s.outcome(ctx, err, "passage", id)
	})
}

// preloadFacts loads tomorrow's facts one verse at a time with growing
// delays, caching the partial list after every verse.
func (s *Scheduler) preloadFacts(pc Context) {
	if s.content.Len() >= s.config.FactsHighWater {
		preloadSkippedTotal.WithLabelValues(reasonCacheFull).Inc()
		s.logger.Debug().Int("cache_size", s.content.Len()).Msg("Cache too full for facts preload")
		return
	}

	day := pc.Day
	if day <= 0 {
		day = facts.DayOfYear(s.now())
	}
	tomorrow := day + 1
	key := FactsKey(tomorrow)
	if s.content.Contains(key) {
		preloadSkippedTotal.WithLabelValues(reasonCached).Inc()
		return
	}

	templates := facts.ForDay(tomorrow, s.config.FactsPerDay)
	s.spawn(PageFacts, key.String(), func(ctx context.Context) string {
		if !sleep(ctx, s.config.FactsDelay) {
			return outcomeCancelled
		}

		loaded := make([]facts.Fact, 0, len(templates)+len(facts.General))
		for i, tmpl := range templates {
			if !sleep(ctx, time.Duration(i+1)*s.config.FactsItemSpacing) {
				return outcomeCancelled
			}

			p, err := s.source.GetPassage(ctx, tmpl.VerseRef, scripture.PassageOptions{Priority: queue.Normal})
			loaded = append(loaded, facts.Resolve(tmpl, p, err))
			s.content.Set(key, append([]facts.Fact(nil), loaded...))

			if errors.Is(err, apierr.ErrRateLimited) {
				s.logger.Warn().Int("day", tomorrow).Int("loaded", i).Msg("Facts preload stopped by rate limit")
				return outcomeHalted
			}
			if err != nil {
				s.logger.Warn().Err(err).Str("fact", tmpl.Title).Msg("Facts preload verse failed")
			}
		}

		s.content.Set(key, append(loaded, facts.General...))
		s.logger.Info().Int("day", tomorrow).Int("facts", len(templates)).Msg("Facts preloaded")
		return outcomeLoaded
	})
}

// FactsKey is the content cache key of a day's facts.
func FactsKey(day int) cache.Key {
	return cache.Key{Type: cache.TypeFacts, ID: facts.CacheID(day)}
}

func (s *Scheduler) outcome(ctx context.Context, err error, kind, id string) string {
	switch {
	case err == nil:
		s.logger.Info().Str("kind", kind).Str("id", id).Msg("Preloaded")
		return outcomeLoaded
	case ctx.Err() != nil:
		return outcomeCancelled
	default:
		s.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("Preload failed")
		return outcomeFailed
	}
}

// spawn runs task in the background unless key is already being preloaded.
func (s *Scheduler) spawn(page Page, key string, task func(ctx context.Context) string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		preloadSkippedTotal.WithLabelValues(reasonClosed).Inc()
		return
	}
	if s.inFlight[key] {
		s.mu.Unlock()
		preloadSkippedTotal.WithLabelValues(reasonInFlight).Inc()
		s.logger.Debug().Str("key", key).Msg("Preload already in flight")
		return
	}
	s.inFlight[key] = true
	s.pending++
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		outcome := task(s.ctx)

		s.mu.Lock()
		delete(s.inFlight, key)
		s.pending--
		s.mu.Unlock()

		preloadTasksTotal.WithLabelValues(string(page), outcome).Inc()
	}()
}

// Wait blocks until every scheduled task has finished.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Close cancels outstanding tasks and waits for them to return.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.inFlight))
	for k := range s.inFlight {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Stats{
		Running:      s.now().Before(s.cycleUntil),
		PendingTasks: s.pending,
		InFlight:     keys,
		CacheSize:    s.content.Len(),
		CacheMax:     s.content.MaxSize(),
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
