package app

import (
	"context"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/facts"
	"github.com/Sternrassler/scripture-client/pkg/preload"
	"github.com/Sternrassler/scripture-client/pkg/queue"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

// Page-level operations: each serves a foreground request at high priority
// and then hints the preload scheduler.

// ReadChapter loads a chapter for reading and preloads the next one.
func (a *App) ReadChapter(ctx context.Context, book string, chapter int, bibleID string) (scripture.Passage, error) {
	p, err := a.Scripture.GetChapter(ctx, book, chapter, scripture.ForegroundPassage(bibleID))
	if err != nil {
		return p, err
	}
	a.hint(preload.PageReading, preload.Context{
		BibleID:     bibleID,
		Book:        book,
		Chapter:     chapter,
		LastChapter: a.Scripture.KnownChapterCount(book, bibleID),
	})
	return p, nil
}

// Lookup resolves a reference or keyword query and warms popular passages.
func (a *App) Lookup(ctx context.Context, query string, opts scripture.LookupOptions) ([]scripture.LookupResult, error) {
	results, err := a.Scripture.Lookup(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	a.hint(preload.PageLookup, preload.Context{BibleID: opts.BibleID})
	return results, nil
}

// Facts returns the facts for day, serving a preloaded set when complete.
// Tomorrow's facts are preloaded afterwards.
func (a *App) Facts(ctx context.Context, day int) ([]facts.Fact, error) {
	if day <= 0 {
		day = facts.DayOfYear(time.Now())
	}
	templates := facts.ForDay(day, a.factsPerDay())
	key := preload.FactsKey(day)

	if v, ok := a.Content.Get(key); ok {
		if cached, ok := v.([]facts.Fact); ok && len(cached) == len(templates)+len(facts.General) {
			a.hint(preload.PageFacts, preload.Context{Day: day})
			return cached, nil
		}
	}

	loaded, err := facts.Load(ctx, func(ctx context.Context, id string) (scripture.Passage, error) {
		return a.Scripture.GetPassage(ctx, id, scripture.PassageOptions{Priority: queue.High})
	}, templates, facts.Options{
		Concurrency:     1,
		HaltOnRateLimit: true,
		IncludeGeneral:  true,
	})
	if err != nil {
		a.logger.Warn().Err(err).Int("day", day).Msg("Facts loading halted by rate limit")
		return loaded, nil
	}

	a.Content.Set(key, loaded)
	a.hint(preload.PageFacts, preload.Context{Day: day})
	return loaded, nil
}

// SwitchVersion drops content of the previous translation.
func (a *App) SwitchVersion(from, to string) int {
	return a.Scripture.SwitchVersion(from, to)
}

func (a *App) factsPerDay() int {
	if a.config.Preload.FactsPerDay > 0 {
		return a.config.Preload.FactsPerDay
	}
	return preload.DefaultConfig().FactsPerDay
}

func (a *App) hint(page preload.Page, pc preload.Context) {
	if a.Preload != nil {
		a.Preload.SmartPreload(page, pc)
	}
}
