package queries

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// GetDirectConnections returns the center and its immediate neighbors. An
// unknown address yields an empty graph.
func (q *GraphQueries) GetDirectConnections(ctx context.Context, address string, opts Options) (*graph.Graph, error) {
	if err := validateAddress("address", address); err != nil {
		return nil, err
	}
	opts.IncludePaths = false
	return q.neighborhood(ctx, "direct_connections", address, 1, opts)
}

// GetMultiHopConnections expands up to depth hops (1-3) from address. Every
// node carries its minimum hop distance and the number of distinct simple
// paths reaching it.
func (q *GraphQueries) GetMultiHopConnections(ctx context.Context, address string, depth int, opts Options) (*graph.Graph, error) {
	if err := validateAddress("address", address); err != nil {
		return nil, err
	}
	if err := validateDepth(depth); err != nil {
		return nil, err
	}
	return q.neighborhood(ctx, "multi_hop", address, depth, opts)
}

func (q *GraphQueries) neighborhood(ctx context.Context, op, address string, depth int, opts Options) (*graph.Graph, error) {
	limit, err := resolveLimit(opts.Limit)
	if err != nil {
		return nil, err
	}

	key := cache.GraphKey(op, address, map[string]interface{}{
		"depth":         depth,
		"limit":         limit,
		"min_volume":    opts.MinVolume.String(),
		"include_paths": opts.IncludePaths,
	})

	return run(ctx, q, op, func(ctx context.Context) (*graph.Graph, error) {
		return cache.Fetch(ctx, q.cache, key, 0, graphSize, func(ctx context.Context) (*graph.Graph, error) {
			adj := graph.NewAdjacency(q.store, opts.MinVolume)
			t, err := expand(ctx, adj, address, depth, limit)
			if err != nil {
				return nil, err
			}
			if !t.found {
				g := graph.EmptyGraph(address)
				g.Depth = depth
				return g, nil
			}

			walk := t.walkPaths(depth, opts.IncludePaths)
			if walk.truncated {
				q.logger.Warn("Path enumeration truncated",
					zap.String("address", address),
					zap.Int("depth", depth),
				)
			}

			asm := graph.NewAssembler(address)
			for _, n := range t.nodes(adj) {
				if n.Address != address {
					n.PathCount = walk.counts[n.Address]
				}
				asm.AddNode(n)
			}
			for _, neighbors := range t.expanded {
				for _, n := range neighbors {
					for _, r := range n.Relationships {
						asm.AddEdge(r)
					}
				}
			}

			g := asm.Build()
			g.Depth = depth
			if opts.IncludePaths {
				g.Paths = walk.paths
			}
			return g, nil
		})
	})
}

// ExtractSubgraph returns the neighborhood through depth with every
// relationship among its nodes, then removes nodes outside the requested
// types or risk range. The center is always kept.
func (q *GraphQueries) ExtractSubgraph(ctx context.Context, address string, depth int, opts SubgraphOptions) (*graph.Graph, error) {
	if err := validateAddress("address", address); err != nil {
		return nil, err
	}
	if err := validateDepth(depth); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(opts.Limit)
	if err != nil {
		return nil, err
	}
	if r := opts.RiskScoreRange; r != nil && (r.Min > r.Max || r.Min < 0 || r.Max > 100) {
		return nil, apperrors.NewValidation("risk_score_range", "Risk score range must satisfy 0 <= min <= max <= 100")
	}

	types := make([]string, 0, len(opts.NodeTypes))
	allowed := make(map[graph.NodeType]bool, len(opts.NodeTypes))
	for _, nt := range opts.NodeTypes {
		types = append(types, string(nt))
		allowed[nt] = true
	}
	sort.Strings(types)
	params := map[string]interface{}{
		"depth":      depth,
		"limit":      limit,
		"min_volume": opts.MinVolume.String(),
		"node_types": types,
	}
	if r := opts.RiskScoreRange; r != nil {
		params["risk_min"], params["risk_max"] = r.Min, r.Max
	}
	key := cache.GraphKey("subgraph", address, params)

	return run(ctx, q, "subgraph", func(ctx context.Context) (*graph.Graph, error) {
		return cache.Fetch(ctx, q.cache, key, 0, graphSize, func(ctx context.Context) (*graph.Graph, error) {
			adj := graph.NewAdjacency(q.store, opts.MinVolume)
			t, err := expand(ctx, adj, address, depth, limit)
			if err != nil {
				return nil, err
			}
			if !t.found {
				g := graph.EmptyGraph(address)
				g.Depth = depth
				return g, nil
			}

			rels, err := q.store.RelationshipsAmong(ctx, t.addresses())
			if err != nil {
				return nil, err
			}

			asm := graph.NewAssembler(address)
			for _, n := range t.nodes(adj) {
				asm.AddNode(n)
			}
			for _, r := range rels {
				if r.TotalVolume.Cmp(opts.MinVolume) >= 0 {
					asm.AddEdge(r)
				}
			}

			for _, addr := range t.order {
				acc, _ := adj.Account(addr)
				if len(allowed) > 0 && !allowed[acc.NodeType] {
					asm.RemoveNode(addr)
					continue
				}
				if r := opts.RiskScoreRange; r != nil && (acc.RiskScore < r.Min || acc.RiskScore > r.Max) {
					asm.RemoveNode(addr)
				}
			}

			g := asm.Build()
			g.Depth = depth
			return g, nil
		})
	})
}
