package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks listing cache hits.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kucoin_listing_cache_hits_total",
			Help: "Total number of listing cache hits",
		},
	)

	// CacheMisses tracks listing cache misses.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kucoin_listing_cache_misses_total",
			Help: "Total number of listing cache misses",
		},
	)

	// CacheErrors tracks cache operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kucoin_listing_cache_errors_total",
			Help: "Total number of listing cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
