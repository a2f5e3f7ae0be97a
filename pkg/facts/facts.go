// Package facts provides the daily Bible facts page: verse-backed fact
// templates rotated per day plus a few general facts.
package facts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/scripture-client/pkg/apierr"
	"github.com/Sternrassler/scripture-client/pkg/batch"
	"github.com/Sternrassler/scripture-client/pkg/scripture"
)

// Unavailable is the content shown when a fact's verse cannot be loaded.
const Unavailable = "Verse temporarily unavailable"

// Template is a fact backed by a verse.
type Template struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	VerseRef    string `json:"verse_ref"`
}

// Fact is a resolved fact.
type Fact struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reference   string `json:"reference,omitempty"`
	Content     string `json:"content,omitempty"`

	// General facts carry no verse.
	General bool `json:"general,omitempty"`

	// Err is set when the verse could not be loaded.
	Err error `json:"-"`
}

// Templates are the verse-backed facts.
var Templates = []Template{
	{"Shortest Verse", "John 11:35 is the shortest verse in the Bible.", "JHN.11.35"},
	{"Most Popular Verse", "John 3:16 is often called the most popular verse in the Bible.", "JHN.3.16"},
	{"The Great Commandment", "Jesus summarized all commandments into two great ones.", "MAT.22.37-MAT.22.39"},
	{"The Golden Rule", "This verse contains Jesus' famous Golden Rule.", "MAT.7.12"},
	{"God's Promise", "One of the most comforting promises in the Bible.", "JER.29.11"},
	{"Perfect Love", "This verse describes the nature of perfect love.", "1JN.4.18"},
	{"The Lord's Prayer", "Jesus taught His disciples this model prayer.", "MAT.6.9-MAT.6.13"},
	{"Beatitudes - Blessed Are the Poor", "The first beatitude from Jesus' Sermon on the Mount.", "MAT.5.3"},
	{"Faith Without Works", "James teaches about the relationship between faith and works.", "JAS.2.17"},
	{"God is Love", "One of the most profound statements about God's nature.", "1JN.4.8"},
	{"The Armor of God", "Paul describes the spiritual armor Christians should wear.", "EPH.6.11"},
	{"Creation Beginning", "The very first verse of the Bible describes God's creation.", "GEN.1.1"},
	{"Jesus' Identity", "Jesus declares His divine identity using the sacred name.", "JHN.8.58"},
	{"The Great Commission", "Jesus' final command to His disciples before ascending.", "MAT.28.19-MAT.28.20"},
	{"Salvation by Grace", "Paul explains that salvation comes by grace through faith.", "EPH.2.8-EPH.2.9"},
	{"God's Omnipresence", "David asks where he can flee from God's presence.", "PSA.139.7"},
	{"The Resurrection", "Paul declares the victory over death through Christ.", "1CO.15.55"},
	{"Trust in the Lord", "Proverbs teaches us to trust God with all our heart.", "PRO.3.5-PRO.3.6"},
	{"Be Still and Know", "God calls us to be still and recognize His divinity.", "PSA.46.10"},
	{"Love Your Enemies", "Jesus teaches the radical concept of loving our enemies.", "MAT.5.44"},
}

// General are facts without a verse.
var General = []Fact{
	{Title: "Books in the Bible", Description: "There are 66 books in the Bible - 39 in the Old Testament and 27 in the New Testament.", General: true},
	{Title: "Languages", Description: "The Bible has been translated into over 3,000 languages worldwide.", General: true},
	{Title: "Authors", Description: "The Bible was written by approximately 40 different authors over a span of 1,600 years.", General: true},
}

// DayOfYear returns the day number used for rotation.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// ForDay returns n templates for day, rotating through Templates so
// consecutive days show different facts. n <= 0 or n >= len(Templates)
// returns every template, starting at the day's offset.
func ForDay(day, n int) []Template {
	total := len(Templates)
	if n <= 0 || n > total {
		n = total
	}
	start := ((day*n)%total + total) % total

	out := make([]Template, n)
	for i := range out {
		out[i] = Templates[(start+i)%total]
	}
	return out
}

// CacheID identifies the facts of a day in the content cache.
func CacheID(day int) string {
	return fmt.Sprintf("day-%d", day)
}

// VerseLoader fetches the passage behind a template.
type VerseLoader func(ctx context.Context, passageID string) (scripture.Passage, error)

// Resolve turns a template and its load result into a fact.
func Resolve(t Template, p scripture.Passage, err error) Fact {
	f := Fact{Title: t.Title, Description: t.Description}
	if err != nil {
		f.Content = Unavailable
		f.Err = err
		return f
	}
	f.Reference = p.Reference
	f.Content = p.Text()
	return f
}

// Options configures Load.
type Options struct {
	// Concurrency bounds parallel verse loads.
	Concurrency int

	// HaltOnRateLimit stops loading further verses once one is rate limited.
	HaltOnRateLimit bool

	// IncludeGeneral appends the general facts.
	IncludeGeneral bool
}

// Load resolves templates through load. Facts whose verse fails are kept
// with Unavailable content. The returned error is a rate limit error when
// loading halted, nil otherwise.
func Load(ctx context.Context, load VerseLoader, templates []Template, opts Options) ([]Fact, error) {
	cfg := batch.DefaultConfig()
	if opts.Concurrency > 0 {
		cfg.MaxConcurrency = opts.Concurrency
	}
	if opts.HaltOnRateLimit {
		cfg.StopOnError = func(err error) bool {
			return errors.Is(err, apierr.ErrRateLimited)
		}
	}

	results := batch.New[Template, scripture.Passage](cfg).FetchAll(ctx, templates, func(ctx context.Context, t Template) (scripture.Passage, error) {
		return load(ctx, t.VerseRef)
	})

	var halted error
	out := make([]Fact, 0, len(results)+len(General))
	for _, r := range results {
		out = append(out, Resolve(r.Key, r.Value, r.Err))
		if halted == nil && opts.HaltOnRateLimit && errors.Is(r.Err, apierr.ErrRateLimited) {
			halted = r.Err
		}
	}
	if opts.IncludeGeneral {
		out = append(out, General...)
	}
	return out, halted
}
