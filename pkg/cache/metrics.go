package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookups answered from the cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_redirect_cache_hits_total",
			Help: "Total number of resolver cache hits",
		},
		[]string{"backend"}, // "memory", "redis"
	)

	// CacheMisses tracks lookups for identifiers never resolved
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_redirect_cache_misses_total",
			Help: "Total number of resolver cache misses",
		},
		[]string{"backend"},
	)

	// CacheInserts tracks write-through inserts after upstream resolution
	CacheInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_redirect_cache_inserts_total",
			Help: "Total number of resolver cache inserts",
		},
		[]string{"backend"},
	)

	// CacheEntries tracks the number of identifiers currently cached
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "image_redirect_cache_entries",
			Help: "Current number of identifiers in the resolver cache",
		},
		[]string{"backend"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_redirect_cache_errors_total",
			Help: "Total number of resolver cache operation errors",
		},
		[]string{"backend", "operation"}, // "lookup", "insert", "len", "reset"
	)
)
