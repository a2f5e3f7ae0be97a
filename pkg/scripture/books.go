package scripture

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrInvalidReference is returned when a human reference cannot be parsed.
var ErrInvalidReference = errors.New(`invalid verse reference format, try "John 3:16" or "Romans 8:28-30"`)

// canonicalOrder lists the 66 book ids, Old Testament first.
var canonicalOrder = []string{
	"GEN", "EXO", "LEV", "NUM", "DEU", "JOS", "JDG", "RUT",
	"1SA", "2SA", "1KI", "2KI", "1CH", "2CH", "EZR", "NEH", "EST",
	"JOB", "PSA", "PRO", "ECC", "SNG", "ISA", "JER", "LAM", "EZK",
	"DAN", "HOS", "JOL", "AMO", "OBA", "JON", "MIC", "NAM", "HAB",
	"ZEP", "HAG", "ZEC", "MAL",
	"MAT", "MRK", "LUK", "JHN", "ACT", "ROM", "1CO", "2CO", "GAL",
	"EPH", "PHP", "COL", "1TH", "2TH", "1TI", "2TI", "TIT", "PHM",
	"HEB", "JAS", "1PE", "2PE", "1JN", "2JN", "3JN", "JUD", "REV",
}

const oldTestamentBooks = 39

var canonicalIndex = func() map[string]int {
	m := make(map[string]int, len(canonicalOrder))
	for i, id := range canonicalOrder {
		m[id] = i
	}
	return m
}()

// bookNames maps lower-case names and common abbreviations to book ids.
var bookNames = map[string]string{
	"genesis": "GEN", "gen": "GEN",
	"exodus": "EXO", "exo": "EXO",
	"leviticus": "LEV", "lev": "LEV",
	"numbers": "NUM", "num": "NUM",
	"deuteronomy": "DEU", "deut": "DEU",
	"joshua": "JOS", "josh": "JOS",
	"judges": "JDG", "judg": "JDG",
	"ruth":     "RUT",
	"1 samuel": "1SA", "1sam": "1SA", "1 sam": "1SA",
	"2 samuel": "2SA", "2sam": "2SA", "2 sam": "2SA",
	"1 kings": "1KI", "1ki": "1KI",
	"2 kings": "2KI", "2ki": "2KI",
	"1 chronicles": "1CH", "1chr": "1CH",
	"2 chronicles": "2CH", "2chr": "2CH",
	"ezra":     "EZR",
	"nehemiah": "NEH", "neh": "NEH",
	"esther": "EST",
	"job":    "JOB",
	"psalms": "PSA", "psalm": "PSA", "ps": "PSA",
	"proverbs": "PRO", "prov": "PRO",
	"ecclesiastes": "ECC", "eccl": "ECC",
	"song of solomon": "SNG", "song": "SNG",
	"isaiah": "ISA", "isa": "ISA",
	"jeremiah": "JER", "jer": "JER",
	"lamentations": "LAM", "lam": "LAM",
	"ezekiel": "EZK", "ezek": "EZK",
	"daniel": "DAN", "dan": "DAN",
	"hosea":     "HOS",
	"joel":      "JOL",
	"amos":      "AMO",
	"obadiah":   "OBA",
	"jonah":     "JON",
	"micah":     "MIC",
	"nahum":     "NAM",
	"habakkuk":  "HAB",
	"zephaniah": "ZEP",
	"haggai":    "HAG",
	"zechariah": "ZEC",
	"malachi":   "MAL",

	"matthew": "MAT", "matt": "MAT", "mt": "MAT",
	"mark": "MRK", "mk": "MRK",
	"luke": "LUK", "lk": "LUK",
	"john": "JHN", "jn": "JHN",
	"acts":   "ACT",
	"romans": "ROM", "rom": "ROM",
	"1 corinthians": "1CO", "1cor": "1CO", "1 cor": "1CO",
	"2 corinthians": "2CO", "2cor": "2CO", "2 cor": "2CO",
	"galatians": "GAL", "gal": "GAL",
	"ephesians": "EPH", "eph": "EPH",
	"philippians": "PHP", "phil": "PHP",
	"colossians": "COL", "col": "COL",
	"1 thessalonians": "1TH", "1thess": "1TH", "1 thess": "1TH",
	"2 thessalonians": "2TH", "2thess": "2TH", "2 thess": "2TH",
	"1 timothy": "1TI", "1tim": "1TI", "1 tim": "1TI",
	"2 timothy": "2TI", "2tim": "2TI", "2 tim": "2TI",
	"titus":    "TIT",
	"philemon": "PHM", "phlm": "PHM",
	"hebrews": "HEB", "heb": "HEB",
	"james": "JAS", "jas": "JAS",
	"1 peter": "1PE", "1pet": "1PE", "1 pet": "1PE",
	"2 peter": "2PE", "2pet": "2PE", "2 pet": "2PE",
	"1 john": "1JN", "1jn": "1JN",
	"2 john": "2JN", "2jn": "2JN",
	"3 john": "3JN", "3jn": "3JN",
	"jude":       "JUD",
	"revelation": "REV", "rev": "REV",
}

var whitespace = regexp.MustCompile(`\s+`)

// BookID converts a book name or abbreviation to its API id. Unknown names
// are upper-cased with whitespace removed.
func BookID(name string) string {
	normalized := whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
	if id, ok := bookNames[normalized]; ok {
		return id
	}
	return strings.ToUpper(whitespace.ReplaceAllString(strings.TrimSpace(name), ""))
}

// IsCanonical reports whether id is one of the 66 canonical book ids.
func IsCanonical(id string) bool {
	_, ok := canonicalIndex[id]
	return ok
}

// IsOldTestament reports whether id is an Old Testament book.
func IsOldTestament(id string) bool {
	i, ok := canonicalIndex[id]
	return ok && i < oldTestamentBooks
}

// SortCanonical orders books canonically. Books outside the canon follow,
// sorted by name.
func SortCanonical(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		a, aok := canonicalIndex[books[i].ID]
		b, bok := canonicalIndex[books[j].ID]
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		case bok:
			return false
		default:
			return books[i].Name < books[j].Name
		}
	})
}

// Reference is a parsed human verse reference.
type Reference struct {
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	StartVerse int    `json:"start_verse,omitempty"`
	EndVerse   int    `json:"end_verse,omitempty"`
}

// PassageID returns the API passage id: "JHN.3.16", "ROM.8.28-ROM.8.30"
// or "GEN.1" for a whole chapter.
func (r Reference) PassageID() string {
	switch {
	case r.StartVerse > 0 && r.EndVerse > 0 && r.EndVerse != r.StartVerse:
		return fmt.Sprintf("%s.%d.%d-%s.%d.%d", r.Book, r.Chapter, r.StartVerse, r.Book, r.Chapter, r.EndVerse)
	case r.StartVerse > 0:
		return fmt.Sprintf("%s.%d.%d", r.Book, r.Chapter, r.StartVerse)
	default:
		return fmt.Sprintf("%s.%d", r.Book, r.Chapter)
	}
}

// IsChapter reports whether the reference names a whole chapter.
func (r Reference) IsChapter() bool {
	return r.StartVerse == 0
}

var (
	verseRefPattern   = regexp.MustCompile(`(?i)^(\d?\s?[a-z]+(?:\s+[a-z]+)*)\s+(\d+):(\d+)(?:-(\d+))?$`)
	chapterRefPattern = regexp.MustCompile(`(?i)^(\d?\s?[a-z]+(?:\s+[a-z]+)*)\s+(\d+)$`)
)

// ParseReference parses "John 3:16", "Romans 8:28-30", "1 Cor 13:4" or
// "Genesis 1".
func ParseReference(s string) (Reference, error) {
	s = strings.TrimSpace(s)

	if m := verseRefPattern.FindStringSubmatch(s); m != nil {
		ref := Reference{Book: BookID(m[1])}
		fmt.Sscan(m[2], &ref.Chapter)
		fmt.Sscan(m[3], &ref.StartVerse)
		if m[4] != "" {
			fmt.Sscan(m[4], &ref.EndVerse)
		}
		if ref.Chapter == 0 || ref.StartVerse == 0 || (ref.EndVerse != 0 && ref.EndVerse < ref.StartVerse) {
			return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
		}
		return ref, nil
	}

	if m := chapterRefPattern.FindStringSubmatch(s); m != nil {
		ref := Reference{Book: BookID(m[1])}
		fmt.Sscan(m[2], &ref.Chapter)
		if ref.Chapter == 0 {
			return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
		}
		return ref, nil
	}

	return Reference{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
}

// ChapterID returns the API chapter id, e.g. "GEN.1".
func ChapterID(book string, chapter int) string {
	return fmt.Sprintf("%s.%d", book, chapter)
}
