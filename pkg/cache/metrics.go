package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer ("ttl", "lru") and cache name
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scripture_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer", "cache"},
	)

	// CacheMisses tracks cache misses by layer and cache name
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scripture_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer", "cache"},
	)

	// CacheExpirations tracks TTL entries dropped because they expired
	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scripture_cache_expirations_total",
			Help: "Total number of expired TTL cache entries removed",
		},
		[]string{"cache"},
	)

	// CacheEvictions tracks LRU evictions
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scripture_cache_evictions_total",
			Help: "Total number of entries evicted from the content cache",
		},
	)

	// CacheEntries tracks the current number of entries
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scripture_cache_entries",
			Help: "Current number of cache entries",
		},
		[]string{"layer", "cache"},
	)
)
