package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaingraph_cache_lookups_total",
		Help: "Cache lookups by tier and result",
	}, []string{"tier", "result"})

	cacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaingraph_cache_writes_total",
		Help: "Cache writes by tier",
	}, []string{"tier"})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chaingraph_cache_evictions_total",
		Help: "Entries evicted from the memory tier",
	})

	cachePromotions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chaingraph_cache_promotions_total",
		Help: "Entries moved from the persistent tier into memory",
	})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chaingraph_cache_errors_total",
		Help: "Cache tier failures by tier and operation",
	}, []string{"tier", "op"})

	cacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chaingraph_cache_invalidated_entries_total",
		Help: "Entries removed by address invalidation",
	})

	cacheExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chaingraph_cache_expired_entries_total",
		Help: "Expired entries purged on read or by the janitor",
	})
)
