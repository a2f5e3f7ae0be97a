package scripture

import (
	"regexp"
	"strings"
)

// Language of a Bible translation.
type Language struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Bible is a translation offered by the provider.
type Bible struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Abbreviation string   `json:"abbreviation"`
	Description  string   `json:"description,omitempty"`
	Language     Language `json:"language"`
}

// Book of a translation.
type Book struct {
	ID           string `json:"id"`
	BibleID      string `json:"bibleId"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
	NameLong     string `json:"nameLong"`
}

// Chapter summary. Number is a string because providers list
// introductions as "intro".
type Chapter struct {
	ID        string `json:"id"`
	BibleID   string `json:"bibleId"`
	BookID    string `json:"bookId"`
	Number    string `json:"number"`
	Reference string `json:"reference"`
}

// VerseSummary identifies one verse of a chapter.
type VerseSummary struct {
	ID        string `json:"id"`
	OrgID     string `json:"orgId"`
	BibleID   string `json:"bibleId"`
	BookID    string `json:"bookId"`
	ChapterID string `json:"chapterId"`
	Reference string `json:"reference"`
}

// Passage is the normalized text of a verse, range or chapter.
type Passage struct {
	Reference string `json:"reference"`
	Content   string `json:"content"`
	Copyright string `json:"copyright"`
	BibleID   string `json:"bibleId"`
}

// Text returns the passage content with markup removed.
func (p Passage) Text() string {
	return StripMarkup(p.Content)
}

// Verse is a normalized search hit.
type Verse struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Text          string `json:"text"`
	BibleID       string `json:"bibleId"`
	BookID        string `json:"bookId"`
	ChapterNumber string `json:"chapterNumber,omitempty"`
	VerseNumber   string `json:"verseNumber,omitempty"`
}

// Wire envelopes. The provider wraps every payload in {"data": ...}.
type (
	biblesResponse struct {
		Data []Bible `json:"data"`
	}

	booksResponse struct {
		Data []Book `json:"data"`
	}

	chaptersResponse struct {
		Data []Chapter `json:"data"`
	}

	versesResponse struct {
		Data []VerseSummary `json:"data"`
	}

	passageResponse struct {
		Data struct {
			ID        string `json:"id"`
			Reference string `json:"reference"`
			Content   string `json:"content"`
			Copyright string `json:"copyright"`
		} `json:"data"`
	}

	searchResponse struct {
		Data struct {
			Query  string `json:"query"`
			Total  int    `json:"total"`
			Verses []struct {
				ID            string `json:"id"`
				BookID        string `json:"bookId"`
				ChapterID     string `json:"chapterId"`
				Reference     string `json:"reference"`
				Text          string `json:"text"`
				ChapterNumber string `json:"chapterNumber"`
				VerseNumber   string `json:"verseNumber"`
			} `json:"verses"`
		} `json:"data"`
	}
)

var markupPattern = regexp.MustCompile(`<[^>]*>`)

// StripMarkup removes HTML tags and surrounding whitespace.
func StripMarkup(s string) string {
	return strings.TrimSpace(markupPattern.ReplaceAllString(s, ""))
}
