package scripture

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strconv"

	"github.com/Sternrassler/scripture-client/pkg/cache"
	"github.com/Sternrassler/scripture-client/pkg/queue"
)

// DefaultSearchLimit is the number of verses returned by SearchVerses.
const DefaultSearchLimit = 15

// PassageOptions configures GetPassage.
type PassageOptions struct {
	// BibleID selects the translation. Empty uses the default.
	BibleID string

	// ExcludeVerseNumbers drops verse number markers from the content.
	ExcludeVerseNumbers bool

	// Priority of the queued request. The zero value is queue.High;
	// background work sets queue.Normal.
	Priority queue.Priority
}

// ForegroundPassage returns options for a user-initiated read.
func ForegroundPassage(bibleID string) PassageOptions {
	return PassageOptions{BibleID: bibleID, Priority: queue.High}
}

// SearchOptions configures SearchVerses.
type SearchOptions struct {
	Limit    int
	BibleID  string
	Priority queue.Priority
}

// GetPassage fetches a verse, verse range or chapter by passage id
// ("JHN.3.16", "ROM.8.28-ROM.8.30", "GEN.1").
func (c *Client) GetPassage(ctx context.Context, passageID string, opts PassageOptions) (Passage, error) {
	return c.getPassage(ctx, cache.TypePassage, passageID, opts)
}

// GetChapter fetches the text of one chapter. It is cached as chapter content.
func (c *Client) GetChapter(ctx context.Context, book string, chapter int, opts PassageOptions) (Passage, error) {
	return c.getPassage(ctx, cache.TypeChapter, ChapterID(book, chapter), opts)
}

// ChapterKey returns the content cache key of a chapter.
func (c *Client) ChapterKey(book string, chapter int, bibleID string) cache.Key {
	return cache.Key{Type: cache.TypeChapter, ID: ChapterID(book, chapter), Version: c.bibleID(bibleID)}
}

// IsChapterCached reports whether a chapter is available without a request.
func (c *Client) IsChapterCached(book string, chapter int, bibleID string) bool {
	return cached(c, c.ChapterKey(book, chapter, bibleID), c.passages)
}

// IsPassageCached reports whether a passage is available without a request.
func (c *Client) IsPassageCached(passageID, bibleID string) bool {
	key := cache.Key{Type: cache.TypePassage, ID: passageID, Version: c.bibleID(bibleID)}
	return cached(c, key, c.passages)
}

func (c *Client) getPassage(ctx context.Context, kind cache.ContentType, passageID string, opts PassageOptions) (Passage, error) {
	if err := c.checkConfiguration(); err != nil {
		return Passage{}, err
	}
	bibleID := c.bibleID(opts.BibleID)

	id := passageID
	if opts.ExcludeVerseNumbers {
		id += ";plain"
	}
	key := cache.Key{Type: kind, ID: id, Version: bibleID}

	return fetch(ctx, c, key, c.passages, opts.Priority, func(ctx context.Context) (Passage, error) {
		var query url.Values
		if !opts.ExcludeVerseNumbers {
			query = url.Values{"include-verse-numbers": []string{"true"}}
		}

		var resp passageResponse
		path := fmt.Sprintf("/bibles/%s/passages/%s", url.PathEscape(bibleID), url.PathEscape(passageID))
		if err := c.getJSON(ctx, "passage", path, query, &resp); err != nil {
			return Passage{}, err
		}
		return Passage{
			Reference: resp.Data.Reference,
			Content:   resp.Data.Content,
			Copyright: resp.Data.Copyright,
			BibleID:   bibleID,
		}, nil
	})
}

// SearchVerses runs a keyword search. Verse text is returned without markup.
func (c *Client) SearchVerses(ctx context.Context, query string, opts SearchOptions) ([]Verse, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}
	bibleID := c.bibleID(opts.BibleID)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	key := cache.Key{
		Type:    cache.TypeSearch,
		ID:      fmt.Sprintf("%s;limit=%d", query, limit),
		Version: bibleID,
	}

	return fetch(ctx, c, key, c.searches, opts.Priority, func(ctx context.Context) ([]Verse, error) {
		var resp searchResponse
		params := url.Values{
			"query": []string{query},
			"limit": []string{strconv.Itoa(limit)},
		}
		path := fmt.Sprintf("/bibles/%s/search", url.PathEscape(bibleID))
		if err := c.getJSON(ctx, "search", path, params, &resp); err != nil {
			return nil, err
		}

		verses := make([]Verse, 0, len(resp.Data.Verses))
		for _, v := range resp.Data.Verses {
			verses = append(verses, Verse{
				ID:            v.ID,
				Reference:     v.Reference,
				Text:          StripMarkup(v.Text),
				BibleID:       bibleID,
				BookID:        v.BookID,
				ChapterNumber: v.ChapterNumber,
				VerseNumber:   v.VerseNumber,
			})
		}
		return verses, nil
	})
}

// GetBibles lists every translation offered by the provider.
func (c *Client) GetBibles(ctx context.Context) ([]Bible, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}
	key := cache.Key{Type: cache.TypeMetadata, ID: "bibles"}

	return fetch(ctx, c, key, c.bibles, queue.High, func(ctx context.Context) ([]Bible, error) {
		var resp biblesResponse
		if err := c.getJSON(ctx, "bibles", "/bibles", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
}

// GetEnglishBibles lists English translations, popular ones first. When
// the list cannot be loaded it returns just the default translation.
func (c *Client) GetEnglishBibles(ctx context.Context) ([]Bible, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}

	bibles, err := c.GetBibles(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn().Err(err).Msg("Failed to load Bible versions, using default")
		return []Bible{defaultBible(c.config.DefaultBibleID)}, nil
	}
	return FilterEnglish(bibles), nil
}

// GetBooks lists the books of a translation in canonical order.
func (c *Client) GetBooks(ctx context.Context, bibleID string) ([]Book, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}
	bibleID = c.bibleID(bibleID)
	key := cache.Key{Type: cache.TypeBooks, ID: "books", Version: bibleID}

	return fetch(ctx, c, key, c.books, queue.High, func(ctx context.Context) ([]Book, error) {
		var resp booksResponse
		path := fmt.Sprintf("/bibles/%s/books", url.PathEscape(bibleID))
		if err := c.getJSON(ctx, "books", path, nil, &resp); err != nil {
			return nil, err
		}
		SortCanonical(resp.Data)
		return resp.Data, nil
	})
}

// GetChapters lists the chapters of a book, including introductions.
func (c *Client) GetChapters(ctx context.Context, bookID, bibleID string) ([]Chapter, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}
	bibleID = c.bibleID(bibleID)
	key := cache.Key{Type: cache.TypeMetadata, ID: "chapters:" + bookID, Version: bibleID}

	return fetch(ctx, c, key, c.chapters, queue.High, func(ctx context.Context) ([]Chapter, error) {
		var resp chaptersResponse
		path := fmt.Sprintf("/bibles/%s/books/%s/chapters", url.PathEscape(bibleID), url.PathEscape(bookID))
		if err := c.getJSON(ctx, "chapters", path, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
}

// KnownChapterCount returns the number of numbered chapters of a book when
// its chapter list is cached, or 0. It never issues a request.
func (c *Client) KnownChapterCount(bookID, bibleID string) int {
	key := cache.Key{Type: cache.TypeMetadata, ID: "chapters:" + bookID, Version: c.bibleID(bibleID)}
	if v, ok := c.content.Get(key); ok {
		if chapters, ok := v.([]Chapter); ok {
			return len(ChapterNumbers(chapters))
		}
	}
	if chapters, ok := c.chapters.Get(key.String()); ok {
		return len(ChapterNumbers(chapters))
	}
	return 0
}

// GetVerses lists the verses of a chapter.
func (c *Client) GetVerses(ctx context.Context, bookID string, chapter int, bibleID string) ([]VerseSummary, error) {
	if err := c.checkConfiguration(); err != nil {
		return nil, err
	}
	bibleID = c.bibleID(bibleID)
	key := cache.Key{Type: cache.TypeMetadata, ID: "verses:" + ChapterID(bookID, chapter), Version: bibleID}

	return fetch(ctx, c, key, c.verses, queue.High, func(ctx context.Context) ([]VerseSummary, error) {
		var resp versesResponse
		path := fmt.Sprintf("/bibles/%s/books/%s/chapters/%d/verses", url.PathEscape(bibleID), url.PathEscape(bookID), chapter)
		if err := c.getJSON(ctx, "verses", path, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Data, nil
	})
}

// ChapterNumbers returns the numbered chapters of chapters, skipping
// introductions.
func ChapterNumbers(chapters []Chapter) []int {
	numbers := make([]int, 0, len(chapters))
	for _, ch := range chapters {
		if n, err := strconv.Atoi(ch.Number); err == nil && n > 0 {
			numbers = append(numbers, n)
		}
	}
	return numbers
}

// ChapterResult is one chapter of a loaded book. Err is set when the
// chapter could not be loaded; the caller shows a placeholder for it.
type ChapterResult struct {
	Number  int
	Passage Passage
	Err     error
}

// BookContent is a book loaded chapter by chapter.
type BookContent struct {
	BookID   string
	BibleID  string
	Chapters []ChapterResult
}

// Failed returns the number of chapters that could not be loaded.
func (b BookContent) Failed() int {
	n := 0
	for _, ch := range b.Chapters {
		if ch.Err != nil {
			n++
		}
	}
	return n
}

// LoadBook loads every chapter of a book. Only listing the chapters can
// fail the call; individual chapter failures are reported per chapter.
func (c *Client) LoadBook(ctx context.Context, bookID string, opts PassageOptions) (BookContent, error) {
	bibleID := c.bibleID(opts.BibleID)
	content := BookContent{BookID: bookID, BibleID: bibleID}

	chapters, err := c.GetChapters(ctx, bookID, bibleID)
	if err != nil {
		return content, fmt.Errorf("list chapters of %s: %w", bookID, err)
	}

	numbers := ChapterNumbers(chapters)
	results := c.newBatch().FetchAll(ctx, numbers, func(ctx context.Context, n int) (Passage, error) {
		return c.GetChapter(ctx, bookID, n, opts)
	})

	content.Chapters = make([]ChapterResult, len(results))
	for i, r := range results {
		content.Chapters[i] = ChapterResult{Number: r.Key, Passage: r.Value, Err: r.Err}
	}

	if failed := content.Failed(); failed > 0 {
		c.logger.Warn().
			Str("book", bookID).
			Int("failed", failed).
			Int("chapters", len(numbers)).
			Msg("Book loaded with missing chapters")
	}
	return content, nil
}

// LookupMode selects how Lookup interprets its query.
type LookupMode string

const (
	LookupAuto    LookupMode = "auto"
	LookupVerse   LookupMode = "verse"
	LookupKeyword LookupMode = "keyword"
)

// LookupResult is one hit of a lookup.
type LookupResult struct {
	Reference string `json:"reference"`
	Text      string `json:"text"`

	// Kind is "specific" for a resolved reference and "search" for keyword hits.
	Kind    string `json:"type"`
	BibleID string `json:"bibleId"`
}

// LookupOptions configures Lookup.
type LookupOptions struct {
	Mode    LookupMode
	BibleID string
	Limit   int
}

// Lookup resolves a human query. In auto mode a parsable reference is
// fetched as a passage and anything else is searched by keyword.
func (c *Client) Lookup(ctx context.Context, query string, opts LookupOptions) ([]LookupResult, error) {
	bibleID := c.bibleID(opts.BibleID)
	mode := opts.Mode
	if mode == "" {
		mode = LookupAuto
	}

	ref, refErr := ParseReference(query)
	if mode == LookupVerse || (mode == LookupAuto && refErr == nil) {
		if refErr != nil {
			return nil, refErr
		}
		passage, err := c.GetPassage(ctx, ref.PassageID(), ForegroundPassage(bibleID))
		if err != nil {
			return nil, fmt.Errorf("lookup %q: %w", query, err)
		}
		return []LookupResult{{
			Reference: passage.Reference,
			Text:      passage.Text(),
			Kind:      "specific",
			BibleID:   bibleID,
		}}, nil
	}

	verses, err := c.SearchVerses(ctx, query, SearchOptions{Limit: opts.Limit, BibleID: bibleID, Priority: queue.High})
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	results := make([]LookupResult, len(verses))
	for i, v := range verses {
		results[i] = LookupResult{Reference: v.Reference, Text: v.Text, Kind: "search", BibleID: bibleID}
	}
	return results, nil
}

// PopularVerses are the candidates of RandomVerse.
var PopularVerses = []string{
	"JHN.3.16", "ROM.8.28", "PHP.4.13", "PSA.23.1", "JER.29.11",
	"MAT.28.20", "ROM.8.31", "PSA.46.10", "PRO.3.5-PRO.3.6", "ISA.41.10",
	"ROM.12.2", "GAL.2.20", "EPH.2.8-EPH.2.9", "JHN.14.6", "PSA.119.105",
}

// FallbackVerse is returned by RandomVerse when the provider is unavailable.
var FallbackVerse = Passage{
	Reference: "John 3:16",
	Content:   "For God so loved the world that he gave his one and only Son, that whoever believes in him shall not perish but have eternal life.",
	Copyright: "Public Domain",
}

// RandomVerse returns one of PopularVerses, or FallbackVerse on failure.
// It never returns an error.
func (c *Client) RandomVerse(ctx context.Context) Passage {
	id := PopularVerses[rand.Intn(len(PopularVerses))]

	passage, err := c.GetPassage(ctx, id, PassageOptions{Priority: queue.High})
	if err != nil {
		c.logger.Warn().Err(err).Str("passage", id).Msg("Random verse unavailable, using fallback")
		return FallbackVerse
	}
	return passage
}
