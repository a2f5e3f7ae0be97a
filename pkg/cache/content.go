package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultContentSize is the default capacity of the content cache.
const DefaultContentSize = 25

// contentEntry links the cache key and the entry to the list element.
type contentEntry struct {
	key   Key
	entry Entry[any]
}

// Content is a bounded LRU cache keyed by Key. The list front is the most
// recently accessed entry; the back is evicted first.
// It is safe for concurrent use.
type Content struct {
	maxSize int
	now     Clock
	logger  zerolog.Logger

	mu    sync.Mutex
	lru   *list.List
	items map[Key]*list.Element
}

// ContentStats summarizes the cache contents.
type ContentStats struct {
	TotalItems int                 `json:"total_items"`
	MaxSize    int                 `json:"max_size"`
	ByType     map[ContentType]int `json:"by_type"`
}

// NewContent creates a content cache holding at most maxSize entries.
func NewContent(maxSize int, opts ...Option) *Content {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxSize <= 0 {
		maxSize = DefaultContentSize
	}
	return &Content{
		maxSize: maxSize,
		now:     o.now,
		logger:  log.With().Str("component", "content-cache").Logger(),
		lru:     list.New(),
		items:   make(map[Key]*list.Element),
	}
}

// Get returns the value for key and marks it as most recently used.
func (c *Content) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		CacheMisses.WithLabelValues("lru", string(key.Type)).Inc()
		return nil, false
	}

	ce := element.Value.(*contentEntry)
	ce.entry.LastAccessedAt = c.now()
	c.lru.MoveToFront(element)

	CacheHits.WithLabelValues("lru", string(key.Type)).Inc()
	c.logger.Debug().Str("key", key.String()).Msg("Content cache hit")
	return ce.entry.Value, true
}

// Contains reports whether key is cached without touching its access time.
func (c *Content) Contains(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Set stores value under key. When the cache is full the entry with the
// oldest access time is evicted first.
func (c *Content) Set(key Key, value any) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		ce := element.Value.(*contentEntry)
		ce.entry.Value = value
		ce.entry.LastAccessedAt = now
		c.lru.MoveToFront(element)
		return
	}

	if c.lru.Len() >= c.maxSize {
		c.evictOldest()
	}

	element := c.lru.PushFront(&contentEntry{
		key: key,
		entry: Entry[any]{
			Key:            key.String(),
			Value:          value,
			CreatedAt:      now,
			LastAccessedAt: now,
		},
	})
	c.items[key] = element
	CacheEntries.WithLabelValues("lru", "content").Set(float64(c.lru.Len()))

	c.logger.Debug().Str("key", key.String()).Msg("Cached content")
}

// evictOldest removes the back of the list. Caller holds c.mu.
func (c *Content) evictOldest() {
	element := c.lru.Back()
	if element == nil {
		return
	}
	ce := c.lru.Remove(element).(*contentEntry)
	delete(c.items, ce.key)
	CacheEvictions.Inc()

	c.logger.Debug().
		Str("key", ce.key.String()).
		Time("last_accessed", ce.entry.LastAccessedAt).
		Msg("Evicted from content cache")
}

// Delete removes a single entry.
func (c *Content) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		c.lru.Remove(element)
		delete(c.items, key)
		CacheEntries.WithLabelValues("lru", "content").Set(float64(c.lru.Len()))
	}
}

// Clear removes every entry of the given type and returns the count.
func (c *Content) Clear(t ContentType) int {
	return c.removeWhere(func(k Key) bool { return k.Type == t })
}

// ClearVersion removes every entry stored for a translation.
func (c *Content) ClearVersion(version string) int {
	if version == "" {
		return 0
	}
	return c.removeWhere(func(k Key) bool { return k.Version == version })
}

// ClearAll empties the cache.
func (c *Content) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.items = make(map[Key]*list.Element)
	CacheEntries.WithLabelValues("lru", "content").Set(0)
	c.logger.Debug().Msg("Cleared entire content cache")
}

func (c *Content) removeWhere(match func(Key) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, element := range c.items {
		if match(key) {
			c.lru.Remove(element)
			delete(c.items, key)
			removed++
		}
	}
	CacheEntries.WithLabelValues("lru", "content").Set(float64(c.lru.Len()))
	return removed
}

// Len returns the number of cached entries.
func (c *Content) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MaxSize returns the capacity.
func (c *Content) MaxSize() int {
	return c.maxSize
}

// NearCapacity reports whether more than threshold entries are cached.
func (c *Content) NearCapacity(threshold int) bool {
	return c.Len() > threshold
}

// Stats returns per-type entry counts.
func (c *Content) Stats() ContentStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := ContentStats{
		TotalItems: c.lru.Len(),
		MaxSize:    c.maxSize,
		ByType:     make(map[ContentType]int),
	}
	for key := range c.items {
		stats.ByType[key.Type]++
	}
	return stats
}
