// Package cache provides the in-memory caches of the Scripture client.
//
// Two cache shapes are offered:
//
//   - TTL: a generic key/value store with per-entry expiry. Distinct
//     instances are created per concern (passages, search results, version
//     lists) with different default TTLs. There is no size bound; entries
//     are pruned lazily on Get or eagerly with Prune.
//   - Content: a bounded LRU keyed by a typed Key{Type, ID, Version}. It is
//     fed by both foreground fetches and the preload scheduler and evicts
//     the entry with the oldest access time when full.
//
// # Basic Usage
//
//	passages := cache.NewTTL[scripture.Passage]("passages", 15*time.Minute)
//	passages.Set("GEN.1", p)
//	if p, ok := passages.Get("GEN.1"); ok {
//		// fresh
//	}
//
//	content := cache.NewContent(25)
//	key := cache.Key{Type: cache.TypeChapter, ID: "GEN.1", Version: "de4e12af7f28f599-02"}
//	content.Set(key, chapter)
//	content.ClearVersion("de4e12af7f28f599-02") // after switching translation
//
// # Metrics
//
//   - scripture_cache_hits_total{layer, cache}
//   - scripture_cache_misses_total{layer, cache}
//   - scripture_cache_expirations_total{cache}
//   - scripture_cache_evictions_total
//   - scripture_cache_entries{layer, cache}
//
// Entries never outlive the process.
package cache
