package cache

import (
	"context"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
)

// WarmLoader produces the graph cached for a warm address
type WarmLoader interface {
	// WarmKey is the key the loaded graph is stored under
	WarmKey(address string) Key
	// LoadWarmGraph computes the graph for address
	LoadWarmGraph(ctx context.Context, address string) (*graph.Graph, error)
}

// AddWarmAddresses adds addresses to the warm set
func (c *Cache) AddWarmAddresses(addresses ...string) {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	for _, a := range addresses {
		if a != "" {
			c.warm[a] = struct{}{}
		}
	}
}

// RemoveWarmAddress drops address from the warm set
func (c *Cache) RemoveWarmAddress(address string) {
	c.warmMu.Lock()
	defer c.warmMu.Unlock()
	delete(c.warm, address)
}

// WarmAddresses lists the warm set in address order
func (c *Cache) WarmAddresses() []string {
	c.warmMu.RLock()
	defer c.warmMu.RUnlock()
	out := make([]string, 0, len(c.warm))
	for a := range c.warm {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// WarmCache loads and caches the graph of every warm address not already
// cached, a few at a time. It returns how many addresses were loaded; the
// first load error cancels the loads still running and is returned.
func (c *Cache) WarmCache(ctx context.Context, loader WarmLoader) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.WarmConcurrency)

	var loaded atomic.Int64
	for _, address := range c.WarmAddresses() {
		key := loader.WarmKey(address)
		if _, ok := c.TierOf(key); ok {
			continue
		}
		address := address
		g.Go(func() error {
			result, err := loader.LoadWarmGraph(gctx, address)
			if err != nil {
				c.logger.Warn("Cache warm load failed", zap.String("address", address), zap.Error(err))
				return err
			}
			if c.CacheGraph(key, result, 0, map[string]string{"source": "warm"}) {
				loaded.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	c.logger.Info("Cache warmed", zap.Int64("loaded", loaded.Load()))
	return int(loaded.Load()), err
}
