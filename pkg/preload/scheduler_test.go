package preload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/facts"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    []string
	cached   map[string]bool
	failOn   map[string]error
	priority []queue.Priority
	block    chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{cached: map[string]bool{}, failOn: map[string]error{}}
}

func (f *fakeSource) record(id string, opts scripture.PassageOptions) error {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.priority = append(f.priority, opts.Priority)
	err := f.failOn[id]
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (f *fakeSource) GetPassage(ctx context.Context, id string, opts scripture.PassageOptions) (scripture.Passage, error) {
	if err := f.record(id, opts); err != nil {
		return scripture.Passage{}, err
	}
	return scripture.Passage{Reference: id, Content: "text of " + id}, nil
}

func (f *fakeSource) GetChapter(ctx context.Context, book string, chapter int, opts scripture.PassageOptions) (scripture.Passage, error) {
	id := scripture.ChapterID(book, chapter)
	if err := f.record(id, opts); err != nil {
		return scripture.Passage{}, err
	}
	return scripture.Passage{Reference: id}, nil
}

func (f *fakeSource) IsPassageCached(id, bibleID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached[id]
}

func (f *fakeSource) IsChapterCached(book string, chapter int, bibleID string) bool {
	return f.IsPassageCached(scripture.ChapterID(book, chapter), bibleID)
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() Config {
	return Config{
		CycleHold:        time.Second,
		CacheHighWater:   20,
		MinInterval:      5 * time.Second,
		NextChapterDelay: time.Millisecond,
		LookupDelay:      time.Millisecond,
		FactsHighWater:   15,
		FactsDelay:       time.Millisecond,
		FactsItemSpacing: time.Millisecond,
		FactsPerDay:      3,
	}
}

func setupScheduler(t *testing.T, src Source) (*Scheduler, *cache.Content, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	content := cache.NewContent(25)
	s := New(testConfig(), src, content, WithClock(clock.Now))
	t.Cleanup(s.Close)
	return s, content, clock
}

func TestSmartPreload_NextChapter(t *testing.T) {
	src := newFakeSource()
	s, _, _ := setupScheduler(t, src)

	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 1, LastChapter: 50, BibleID: "kjv"})
	s.Wait()

	calls := src.Calls()
	if len(calls) != 1 || calls[0] != "GEN.2" {
		t.Fatalf("calls = %v, want [GEN.2]", calls)
	}
	if src.priority[0] != queue.Normal {
		t.Errorf("priority = %v, want normal", src.priority[0])
	}
}

func TestSmartPreload_NextChapterSkips(t *testing.T) {
	tests := []struct {
		name string
		pc   Context
	}{
		{"last chapter", Context{Book: "JUD", Chapter: 1, LastChapter: 1}},
		{"no context", Context{}},
		{"already cached", Context{Book: "GEN", Chapter: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newFakeSource()
			src.cached["GEN.5"] = true
			s, _, _ := setupScheduler(t, src)

			s.SmartPreload(PageReading, tt.pc)
			s.Wait()

			if calls := src.Calls(); len(calls) != 0 {
				t.Errorf("calls = %v, want none", calls)
			}
		})
	}
}

func TestSmartPreload_Guards(t *testing.T) {
	src := newFakeSource()
	s, content, clock := setupScheduler(t, src)
	pc := Context{Book: "GEN", Chapter: 1}

	s.SmartPreload(PageReading, pc)
	s.Wait()

	// Within CycleHold and MinInterval.
	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 2})
	s.Wait()

	// Past CycleHold but within MinInterval.
	clock.Advance(2 * time.Second)
	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 3})
	s.Wait()

	if calls := src.Calls(); len(calls) != 1 {
		t.Fatalf("calls = %v, want one preload", calls)
	}

	// Past MinInterval, but the cache is above the high-water mark.
	clock.Advance(5 * time.Second)
	for i := 0; i < 21; i++ {
		content.Set(cache.Key{Type: cache.TypeChapter, ID: scripture.ChapterID("PSA", i+1)}, i)
	}
	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 4})
	s.Wait()

	if calls := src.Calls(); len(calls) != 1 {
		t.Fatalf("calls = %v, want no preload above high water", calls)
	}

	content.ClearAll()
	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 5})
	s.Wait()

	if calls := src.Calls(); len(calls) != 2 || calls[1] != "GEN.6" {
		t.Errorf("calls = %v, want GEN.6 preloaded", calls)
	}
}

func TestSmartPreload_InFlightDedupe(t *testing.T) {
	src := newFakeSource()
	src.block = make(chan struct{})
	s, _, clock := setupScheduler(t, src)

	pc := Context{Book: "GEN", Chapter: 1, BibleID: "kjv"}
	s.SmartPreload(PageReading, pc)

	deadline := time.Now().Add(time.Second)
	for len(src.Calls()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	clock.Advance(10 * time.Second)
	s.SmartPreload(PageReading, pc)

	stats := s.Stats()
	if stats.PendingTasks != 1 || len(stats.InFlight) != 1 {
		t.Errorf("Stats() = %+v, want one in-flight task", stats)
	}

	close(src.block)
	s.Wait()

	if calls := src.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, want duplicate dropped", calls)
	}
	if stats := s.Stats(); stats.PendingTasks != 0 || len(stats.InFlight) != 0 {
		t.Errorf("Stats() after Wait = %+v", stats)
	}
}

func TestSmartPreload_HomeDisabled(t *testing.T) {
	src := newFakeSource()
	s, _, _ := setupScheduler(t, src)

	s.SmartPreload(PageHome, Context{})
	s.Wait()

	if calls := src.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestSmartPreload_Lookup(t *testing.T) {
	src := newFakeSource()
	s, _, clock := setupScheduler(t, src)

	s.SmartPreload(PageLookup, Context{})
	s.Wait()

	if calls := src.Calls(); len(calls) != 1 || calls[0] != "JHN.3.16" {
		t.Fatalf("calls = %v, want [JHN.3.16]", calls)
	}

	src.cached["JHN.3.16"] = true
	clock.Advance(10 * time.Second)
	s.SmartPreload(PageLookup, Context{})
	s.Wait()

	if calls := src.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, cached passage must not be fetched", calls)
	}
}

func TestSmartPreload_Facts(t *testing.T) {
	src := newFakeSource()
	s, content, _ := setupScheduler(t, src)

	s.SmartPreload(PageFacts, Context{Day: 10})
	s.Wait()

	want := facts.ForDay(11, 3)
	calls := src.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %d verses", calls, len(want))
	}
	for i, tmpl := range want {
		if calls[i] != tmpl.VerseRef {
			t.Errorf("calls[%d] = %s, want %s", i, calls[i], tmpl.VerseRef)
		}
	}

	v, ok := content.Get(FactsKey(11))
	if !ok {
		t.Fatal("facts for day 11 not cached")
	}
	loaded := v.([]facts.Fact)
	if len(loaded) != len(want)+len(facts.General) {
		t.Errorf("cached facts = %d, want %d", len(loaded), len(want)+len(facts.General))
	}
	if loaded[0].Content != "text of "+want[0].VerseRef {
		t.Errorf("facts[0].Content = %q", loaded[0].Content)
	}
}

func TestSmartPreload_FactsStopsOnRateLimit(t *testing.T) {
	src := newFakeSource()
	want := facts.ForDay(11, 3)
	src.failOn[want[1].VerseRef] = apierr.RateLimited(time.Minute, "")
	s, content, _ := setupScheduler(t, src)

	s.SmartPreload(PageFacts, Context{Day: 10})
	s.Wait()

	if calls := src.Calls(); len(calls) != 2 {
		t.Fatalf("calls = %v, want stop after rate limit", calls)
	}

	v, ok := content.Get(FactsKey(11))
	if !ok {
		t.Fatal("partial facts not cached")
	}
	loaded := v.([]facts.Fact)
	if len(loaded) != 2 || loaded[1].Content != facts.Unavailable {
		t.Errorf("cached facts = %+v", loaded)
	}
}

func TestSmartPreload_FactsSkippedWhenCacheBusy(t *testing.T) {
	src := newFakeSource()
	s, content, _ := setupScheduler(t, src)
	for i := 0; i < 15; i++ {
		content.Set(cache.Key{Type: cache.TypePassage, ID: scripture.ChapterID("PSA", i+1)}, i)
	}

	s.SmartPreload(PageFacts, Context{Day: 10})
	s.Wait()

	if calls := src.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}

func TestClose_CancelsTasks(t *testing.T) {
	src := newFakeSource()
	clock := &fakeClock{now: time.Now()}
	cfg := testConfig()
	cfg.NextChapterDelay = time.Hour
	s := New(cfg, src, cache.NewContent(25), WithClock(clock.Now))

	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 1})

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close() did not cancel the pending task")
	}
	if calls := src.Calls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}

	clock.Advance(time.Hour)
	s.SmartPreload(PageReading, Context{Book: "GEN", Chapter: 1})
	if stats := s.Stats(); stats.PendingTasks != 0 {
		t.Errorf("task scheduled after Close: %+v", stats)
	}
}
