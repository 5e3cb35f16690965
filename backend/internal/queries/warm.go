package queries

import (
	"context"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
)

// WarmKey is the cache key GetDirectConnections uses for address with default options
func (q *GraphQueries) WarmKey(address string) cache.Key {
	return cache.GraphKey("direct_connections", address, map[string]interface{}{
		"depth":         1,
		"limit":         constants.DefaultNeighborLimit,
		"min_volume":    graph.Volume{}.String(),
		"include_paths": false,
	})
}

// LoadWarmGraph computes the default direct-connections graph for address,
// bypassing the cache so the caller decides where it goes.
func (q *GraphQueries) LoadWarmGraph(ctx context.Context, address string) (*graph.Graph, error) {
	uncached := *q
	uncached.cache = nil
	return uncached.GetDirectConnections(ctx, address, Options{})
}

var _ cache.WarmLoader = (*GraphQueries)(nil)
