package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// Options configures a Cache. Zero values fall back to the package defaults.
type Options struct {
	// Path is the Badger directory; empty keeps the persistent tier in memory
	Path string

	MaxMemoryItems int
	// MemoryNodeThreshold routes results with fewer nodes to the memory tier
	MemoryNodeThreshold int
	// PromoteNodeThreshold caps the size of persistent hits moved into memory
	PromoteNodeThreshold int

	TTLGraph   time.Duration
	TTLMetrics time.Duration
	TTLQuery   time.Duration

	WarmAddresses []string

	// Now overrides the clock (tests)
	Now func() time.Time
}

func (o *Options) applyDefaults() {
	if o.MaxMemoryItems < 1 {
		o.MaxMemoryItems = constants.DefaultMaxMemoryItems
	}
	if o.MemoryNodeThreshold < 1 {
		o.MemoryNodeThreshold = constants.DefaultMemoryNodeThreshold
	}
	if o.PromoteNodeThreshold < 1 {
		o.PromoteNodeThreshold = constants.DefaultPromoteNodeThreshold
	}
	if o.TTLGraph <= 0 {
		o.TTLGraph = constants.TTLGraph
	}
	if o.TTLMetrics <= 0 {
		o.TTLMetrics = constants.TTLMetrics
	}
	if o.TTLQuery <= 0 {
		o.TTLQuery = constants.TTLQuery
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits              uint64  `json:"hits"`
	Misses            uint64  `json:"misses"`
	Writes            uint64  `json:"writes"`
	Evictions         uint64  `json:"evictions"`
	Promotions        uint64  `json:"promotions"`
	HitRate           float64 `json:"hit_rate"`
	MemoryEntries     int     `json:"memory_entries"`
	PersistentEntries int     `json:"persistent_entries"`
}

// Cache is the two-tier result cache: a bounded in-memory LRU in front of a
// Badger store. Failures inside the cache are logged and reported as misses
// or unsuccessful writes; they never reach query callers.
type Cache struct {
	opts       Options
	memory     *memoryTier
	persistent *persistentTier
	logger     *zap.Logger

	flight singleflight.Group
	// tierMu orders writes and promotions that touch both tiers
	tierMu sync.Mutex

	warmMu sync.RWMutex
	warm   map[string]struct{}

	hits       atomic.Uint64
	misses     atomic.Uint64
	writes     atomic.Uint64
	evictions  atomic.Uint64
	promotions atomic.Uint64
}

// New opens the persistent tier and builds the cache
func New(opts Options, logger *zap.Logger) (*Cache, error) {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	persistent, err := openPersistent(opts.Path, logger)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		opts:       opts,
		memory:     newMemoryTier(opts.MaxMemoryItems),
		persistent: persistent,
		logger:     logger,
		warm:       make(map[string]struct{}),
	}
	c.AddWarmAddresses(opts.WarmAddresses...)
	return c, nil
}

// Close releases the persistent tier
func (c *Cache) Close() error {
	return c.persistent.close()
}

// ttlFor resolves a non-positive ttl to the kind's default
func (c *Cache) ttlFor(kind Kind, ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	switch kind {
	case KindGraph:
		return c.opts.TTLGraph
	case KindMetrics:
		return c.opts.TTLMetrics
	default:
		return c.opts.TTLQuery
	}
}

// Set serializes value and stores it in the tier chosen by nodeCount. It
// reports whether the value was stored.
func (c *Cache) Set(key Key, value interface{}, nodeCount int, ttl time.Duration, metadata map[string]string) bool {
	id := key.String()
	data, err := json.Marshal(value)
	if err != nil {
		c.logFailure(apperrors.NewCache("encode", id, err))
		return false
	}

	now := c.opts.Now()
	entry := Entry{
		ID:           id,
		Address:      key.Address,
		Data:         data,
		Metadata:     metadata,
		NodeCount:    nodeCount,
		CreatedAt:    now,
		ExpiresAt:    now.Add(c.ttlFor(key.Kind, ttl)),
		LastAccessed: now,
	}

	c.tierMu.Lock()
	if nodeCount < c.opts.MemoryNodeThreshold {
		if _, err := c.persistent.delete(id, key.Address); err != nil {
			c.logFailure(apperrors.NewCache(string(TierPersistent), id, err))
		}
		c.recordEvictions(c.memory.put(entry))
		entry.Tier = TierMemory
	} else {
		if err := c.persistent.put(entry); err != nil {
			c.logFailure(apperrors.NewCache(string(TierPersistent), id, err))
			c.tierMu.Unlock()
			cacheErrors.WithLabelValues(string(TierPersistent), "write").Inc()
			return false
		}
		c.memory.remove(id)
		entry.Tier = TierPersistent
	}
	c.tierMu.Unlock()

	c.writes.Add(1)
	cacheWrites.WithLabelValues(string(entry.Tier)).Inc()
	c.logger.Debug("Cached entry",
		zap.String("key", id),
		zap.String("tier", string(entry.Tier)),
		zap.Int("nodes", nodeCount),
		zap.Int("bytes", len(data)),
	)
	return true
}

// Get looks key up in memory, then in the persistent tier, decoding a hit
// into dest. Expired entries are purged and count as misses. A persistent hit
// small enough is promoted into memory.
func (c *Cache) Get(key Key, dest interface{}) bool {
	entry, ok := c.lookup(key)
	if !ok {
		c.misses.Add(1)
		return false
	}
	if err := json.Unmarshal(entry.Data, dest); err != nil {
		c.logFailure(apperrors.NewCache(string(entry.Tier), entry.ID, err))
		c.misses.Add(1)
		return false
	}
	c.hits.Add(1)
	return true
}

func (c *Cache) lookup(key Key) (Entry, bool) {
	id := key.String()
	now := c.opts.Now()

	if entry, ok := c.memory.get(id, now); ok {
		cacheLookups.WithLabelValues(string(TierMemory), "hit").Inc()
		return entry, true
	}

	stored, found, err := c.persistent.get(id)
	if err != nil {
		c.logFailure(apperrors.NewCache(string(TierPersistent), id, err))
		cacheErrors.WithLabelValues(string(TierPersistent), "read").Inc()
		return Entry{}, false
	}
	if !found {
		cacheLookups.WithLabelValues(string(TierPersistent), "miss").Inc()
		return Entry{}, false
	}
	if stored.Expired(now) {
		if _, err := c.persistent.delete(id, stored.Address); err != nil {
			c.logFailure(apperrors.NewCache(string(TierPersistent), id, err))
		}
		cacheExpired.Inc()
		cacheLookups.WithLabelValues(string(TierPersistent), "expired").Inc()
		return Entry{}, false
	}

	cacheLookups.WithLabelValues(string(TierPersistent), "hit").Inc()
	stored.touch(now)
	if stored.NodeCount <= c.opts.PromoteNodeThreshold {
		c.promote(*stored)
	}
	return *stored, true
}

// promote moves a persistent entry into memory. The move happens once when
// concurrent reads hit the same entry, and is skipped when a write replaced
// the entry after it was read.
func (c *Cache) promote(entry Entry) {
	c.tierMu.Lock()
	defer c.tierMu.Unlock()

	now := c.opts.Now()
	if c.memory.contains(entry.ID, now) {
		return
	}
	current, found, err := c.persistent.get(entry.ID)
	if err != nil || !found || !current.CreatedAt.Equal(entry.CreatedAt) {
		return
	}
	c.recordEvictions(c.memory.put(entry))
	if _, err := c.persistent.delete(entry.ID, entry.Address); err != nil {
		c.logFailure(apperrors.NewCache(string(TierPersistent), entry.ID, err))
	}
	c.promotions.Add(1)
	cachePromotions.Inc()
	c.logger.Debug("Promoted entry to memory",
		zap.String("key", entry.ID),
		zap.Int("nodes", entry.NodeCount),
	)
}

// TierOf reports where key currently lives without touching recency or stats
func (c *Cache) TierOf(key Key) (Tier, bool) {
	id := key.String()
	now := c.opts.Now()
	if c.memory.contains(id, now) {
		return TierMemory, true
	}
	stored, found, err := c.persistent.get(id)
	if err != nil || !found || stored.Expired(now) {
		return "", false
	}
	return TierPersistent, true
}

// CacheGraph stores a traversal result; the node count picks the tier
func (c *Cache) CacheGraph(key Key, g *graph.Graph, ttl time.Duration, metadata map[string]string) bool {
	if g == nil {
		return false
	}
	return c.Set(key, g, g.NodeCount(), ttl, metadata)
}

// GetCachedGraph returns a decoded copy of a cached traversal result
func (c *Cache) GetCachedGraph(key Key) (*graph.Graph, bool) {
	var g graph.Graph
	if !c.Get(key, &g) {
		return nil, false
	}
	return &g, true
}

// CacheQuery stores result under a key derived from query text and params
func (c *Cache) CacheQuery(query string, params map[string]interface{}, result interface{}, ttl time.Duration) bool {
	return c.Set(QueryKey(query, params), result, 0, ttl, nil)
}

// GetCachedQuery decodes a cached query result into dest
func (c *Cache) GetCachedQuery(query string, params map[string]interface{}, dest interface{}) bool {
	return c.Get(QueryKey(query, params), dest)
}

// InvalidateAddress removes every entry scoped to address from both tiers
// and returns how many were removed.
func (c *Cache) InvalidateAddress(address string) int {
	removed := 0
	for _, id := range c.memory.keysFor(address) {
		if c.memory.remove(id) {
			removed++
		}
	}

	ids, err := c.persistent.keysFor(address)
	if err != nil {
		c.logFailure(apperrors.NewCache(string(TierPersistent), address, err))
	}
	for _, id := range ids {
		existed, err := c.persistent.delete(id, address)
		if err != nil {
			c.logFailure(apperrors.NewCache(string(TierPersistent), id, err))
			continue
		}
		if existed {
			removed++
		}
	}

	cacheInvalidations.Add(float64(removed))
	c.logger.Info("Invalidated address",
		zap.String("address", address),
		zap.Int("entries", removed),
	)
	return removed
}

// CleanExpiredEntries purges expired entries from both tiers and returns the count
func (c *Cache) CleanExpiredEntries() int {
	now := c.opts.Now()
	purged := c.memory.purgeExpired(now)

	n, err := c.persistent.purgeExpired(now)
	if err != nil {
		c.logFailure(apperrors.NewCache(string(TierPersistent), "expired", err))
	}
	purged += n

	cacheExpired.Add(float64(purged))
	if purged > 0 {
		c.logger.Info("Purged expired cache entries", zap.Int("entries", purged))
	}
	return purged
}

// StartJanitor runs CleanExpiredEntries every interval until ctx is done
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanExpiredEntries()
			}
		}
	}()
}

// GetCacheStats snapshots the counters and tier sizes
func (c *Cache) GetCacheStats() Stats {
	s := Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Writes:        c.writes.Load(),
		Evictions:     c.evictions.Load(),
		Promotions:    c.promotions.Load(),
		MemoryEntries: c.memory.len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	n, err := c.persistent.count()
	if err != nil {
		c.logFailure(apperrors.NewCache(string(TierPersistent), "count", err))
	}
	s.PersistentEntries = n
	return s
}

func (c *Cache) recordEvictions(n int) {
	if n == 0 {
		return
	}
	c.evictions.Add(uint64(n))
	cacheEvictions.Add(float64(n))
}

func (c *Cache) logFailure(err *apperrors.ErrCache) {
	c.logger.Warn("Cache operation failed",
		zap.String("tier", err.Tier),
		zap.String("key", err.Key),
		zap.Error(err),
	)
}
