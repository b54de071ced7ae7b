package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by cache name ("favicon", "packet", ...).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultramotd_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks cache misses by cache name.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultramotd_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheEvictions tracks entries removed by expiry or size pressure.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultramotd_cache_evictions_total",
			Help: "Total number of cache evictions",
		},
		[]string{"cache"},
	)

	// CacheEntries tracks the current number of live entries per cache.
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ultramotd_cache_entries",
			Help: "Current number of entries per cache",
		},
		[]string{"cache"},
	)
)
