package cache

import (
	"strings"
)

// ContentType discriminates the kinds of content held by the Content cache.
type ContentType string

const (
	// TypePassage is a verse or verse range.
	TypePassage ContentType = "passage"

	// TypeChapter is a whole chapter loaded for reading.
	TypeChapter ContentType = "chapter"

	// TypeSearch is a keyword search result set.
	TypeSearch ContentType = "search"

	// TypeBooks is the book list of a translation.
	TypeBooks ContentType = "books"

	// TypeMetadata is translation metadata (version lists).
	TypeMetadata ContentType = "metadata"

	// TypeFacts is a day's set of facts with resolved verse text.
	TypeFacts ContentType = "facts"
)

// Key represents a unique identifier for cached content.
// Keys compare by value, so two keys for the same chapter in different
// translations never collide.
type Key struct {
	// Type is the content kind.
	Type ContentType

	// ID identifies the content within its type (e.g., "GEN.1", "day-42").
	ID string

	// Version is the Bible translation ID ("" for version-independent content).
	Version string
}

// String generates a deterministic key string.
// Format: type:id[:version]
//
// Example:
//
//	chapter:GEN.1:de4e12af7f28f599-02
func (k Key) String() string {
	parts := []string{string(k.Type), k.ID}
	if k.Version != "" {
		parts = append(parts, k.Version)
	}
	return strings.Join(parts, ":")
}
