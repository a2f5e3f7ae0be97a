package scripture

import (
	"sort"
	"strings"
)

// englishAbbreviations are translations treated as English regardless of
// their language metadata.
var englishAbbreviations = map[string]bool{
	"kjv": true, "niv": true, "esv": true, "nlt": true, "nasb": true, "nkjv": true,
	"rsv": true, "nrsv": true, "msg": true, "amp": true, "tpt": true, "cev": true,
	"gnb": true, "gnt": true, "hcsb": true, "csb": true, "net": true, "web": true,
}

// popularOrder ranks well-known translations first.
var popularOrder = map[string]int{
	"kjv": 0, "niv": 1, "esv": 2, "nlt": 3, "nasb": 4, "nkjv": 5,
}

// IsEnglish reports whether b is an English translation.
func IsEnglish(b Bible) bool {
	lang := strings.ToLower(b.Language.ID)
	name := strings.ToLower(b.Name)
	abbr := strings.ToLower(b.Abbreviation)

	return lang == "eng" ||
		lang == "en" ||
		strings.Contains(lang, "english") ||
		strings.Contains(name, "english") ||
		englishAbbreviations[abbr]
}

// FilterEnglish returns the English translations, popular ones first and the
// rest sorted by name. The input is not modified.
func FilterEnglish(bibles []Bible) []Bible {
	english := make([]Bible, 0, len(bibles))
	for _, b := range bibles {
		if IsEnglish(b) {
			english = append(english, b)
		}
	}

	sort.SliceStable(english, func(i, j int) bool {
		a, aok := popularOrder[strings.ToLower(english[i].Abbreviation)]
		b, bok := popularOrder[strings.ToLower(english[j].Abbreviation)]
		switch {
		case aok && bok:
			return a < b
		case aok:
			return true
		case bok:
			return false
		default:
			return english[i].Name < english[j].Name
		}
	})
	return english
}

// defaultBible is returned by GetEnglishBibles when the version list cannot
// be loaded.
func defaultBible(id string) Bible {
	return Bible{
		ID:           id,
		Name:         "King James Version",
		Abbreviation: "KJV",
		Language:     Language{ID: "eng", Name: "English"},
	}
}
