package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// Degree sources
const (
	SourceDenormalized = "denormalized"
	SourceAggregated   = "aggregated"
)

// DegreeCentrality counts an address's relationships
type DegreeCentrality struct {
	Address     string `json:"address"`
	Found       bool   `json:"found"`
	InDegree    int    `json:"in_degree"`
	OutDegree   int    `json:"out_degree"`
	TotalDegree int    `json:"total_degree"`
	// Source tells whether the figures came from the stored account or were
	// counted from its relationships
	Source string `json:"source"`
}

// CalculateDegreeCentrality reads the degree figures the ingestion pipeline
// keeps on the account, counting relationships on demand when they are absent.
func (m *GraphMetrics) CalculateDegreeCentrality(ctx context.Context, address string) (*DegreeCentrality, error) {
	if address == "" {
		return nil, apperrors.NewValidation("address", "Address must not be empty")
	}

	key := cache.MetricsKey("degree", address, nil)
	attrs := []attribute.KeyValue{attribute.String("address", address)}
	return run(ctx, m, "degree_centrality", attrs, func(ctx context.Context, span trace.Span) (*DegreeCentrality, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*DegreeCentrality, error) {
			acc, found, err := graph.LookupAccount(ctx, m.store, address)
			if err != nil {
				return nil, err
			}
			result := &DegreeCentrality{Address: address, Found: found}
			if !found {
				result.Source = SourceAggregated
				return result, nil
			}

			if acc.InDegree+acc.OutDegree > 0 {
				result.InDegree = acc.InDegree
				result.OutDegree = acc.OutDegree
				result.Source = SourceDenormalized
			} else {
				span.AddEvent("aggregating_degree")
				adj := graph.NewAdjacency(m.store, graph.Volume{})
				if err := adj.Load(ctx, []string{address}, graph.ScanBoth); err != nil {
					return nil, err
				}
				result.InDegree = len(adj.In(address))
				result.OutDegree = len(adj.Out(address))
				result.Source = SourceAggregated
			}
			result.TotalDegree = result.InDegree + result.OutDegree
			return result, nil
		})
	})
}

// ClusteringResult is an address's local clustering coefficient
type ClusteringResult struct {
	Address       string  `json:"address"`
	Coefficient   float64 `json:"clustering_coefficient"`
	NeighborCount int     `json:"neighbor_count"`
	// Links counts connected neighbor pairs; either direction counts once
	Links int `json:"links"`
}

// CalculateClusteringCoefficient is the fraction of neighbor pairs that are
// themselves connected, treating edges as undirected. Fewer than two
// neighbors gives 0.
func (m *GraphMetrics) CalculateClusteringCoefficient(ctx context.Context, address string) (*ClusteringResult, error) {
	if address == "" {
		return nil, apperrors.NewValidation("address", "Address must not be empty")
	}

	key := cache.MetricsKey("clustering", address, nil)
	attrs := []attribute.KeyValue{attribute.String("address", address)}
	return run(ctx, m, "clustering_coefficient", attrs, func(ctx context.Context, span trace.Span) (*ClusteringResult, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*ClusteringResult, error) {
			adj := graph.NewAdjacency(m.store, graph.Volume{})
			if err := adj.Load(ctx, []string{address}, graph.ScanBoth); err != nil {
				return nil, err
			}
			neighbors := adj.Neighbors(address, 0)
			result := &ClusteringResult{Address: address, NeighborCount: len(neighbors)}
			span.SetAttributes(attribute.Int("neighbor_count", len(neighbors)))

			k := len(neighbors)
			if k < 2 {
				return result, nil
			}

			addrs := make([]string, k)
			for i, n := range neighbors {
				addrs[i] = n.Address
			}
			rels, err := m.store.RelationshipsAmong(ctx, addrs)
			if err != nil {
				return nil, err
			}

			pairs := make(map[graph.EdgeKey]struct{}, len(rels))
			for _, r := range rels {
				if r.FromAddress == r.ToAddress {
					continue
				}
				pair := graph.EdgeKey{From: r.FromAddress, To: r.ToAddress}
				if pair.To < pair.From {
					pair = graph.EdgeKey{From: pair.To, To: pair.From}
				}
				pairs[pair] = struct{}{}
			}
			result.Links = len(pairs)
			result.Coefficient = float64(result.Links) / (float64(k) * float64(k-1) / 2)
			return result, nil
		})
	})
}

// PageRankResult holds scores over a node set
type PageRankResult struct {
	Scores        map[string]float64 `json:"scores"`
	Ranked        []NodeScore        `json:"ranked"`
	Iterations    int                `json:"iterations"`
	DampingFactor float64            `json:"damping_factor"`
}

// CalculatePageRank runs a fixed number of power iterations (0: default 20)
// over the subgraph induced by nodeSet. Rank held by nodes without outgoing
// edges is spread evenly over the set, so scores always sum to 1.
func (m *GraphMetrics) CalculatePageRank(ctx context.Context, nodeSet []string, iterations int) (*PageRankResult, error) {
	nodes, err := normalizeNodeSet(nodeSet)
	if err != nil {
		return nil, err
	}
	if iterations == 0 {
		iterations = constants.DefaultPageRankIterations
	}
	if iterations < 1 || iterations > constants.MaxPageRankIterations {
		return nil, apperrors.NewValidation("iterations",
			fmt.Sprintf("Iterations must be between 1 and %d", constants.MaxPageRankIterations))
	}

	key := cache.MetricsKey("pagerank", "", nodeSetParams(nodes, map[string]interface{}{"iterations": iterations}))
	attrs := []attribute.KeyValue{
		attribute.Int("node_count", len(nodes)),
		attribute.Int("iterations", iterations),
	}
	return run(ctx, m, "pagerank", attrs, func(ctx context.Context, span trace.Span) (*PageRankResult, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*PageRankResult, error) {
			g, err := m.loadInduced(ctx, nodes)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(attribute.Int("edge_count", g.edges))

			scores, err := pageRank(ctx, g, iterations, constants.DampingFactor)
			if err != nil {
				return nil, err
			}
			return &PageRankResult{
				Scores:        scoreMap(nodes, scores),
				Ranked:        ranked(nodes, scores),
				Iterations:    iterations,
				DampingFactor: constants.DampingFactor,
			}, nil
		})
	})
}

func pageRank(ctx context.Context, g *induced, iterations int, d float64) ([]float64, error) {
	n := len(g.nodes)
	rank := make([]float64, n)
	next := make([]float64, n)
	for i := range rank {
		rank[i] = 1 / float64(n)
	}

	for iter := 0; iter < iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sink := 0.0
		for u := 0; u < n; u++ {
			if len(g.out[u]) == 0 {
				sink += rank[u]
			}
		}
		base := (1-d)/float64(n) + d*sink/float64(n)
		for v := range next {
			next[v] = base
		}
		for u := 0; u < n; u++ {
			if len(g.out[u]) == 0 {
				continue
			}
			share := d * rank[u] / float64(len(g.out[u]))
			for _, v := range g.out[u] {
				next[v] += share
			}
		}
		rank, next = next, rank
	}
	return rank, nil
}

// BetweennessResult holds estimated betweenness over a node set
type BetweennessResult struct {
	Scores map[string]float64 `json:"scores"`
	Ranked []NodeScore        `json:"ranked"`
	// Pivots is the number of source nodes shortest paths were counted from
	Pivots int  `json:"pivots"`
	Exact  bool `json:"exact"`
}

// CalculateBetweennessCentrality estimates directed betweenness over the
// subgraph induced by nodeSet by running Brandes' accumulation from sampleSize
// evenly spaced pivots (0: default 50) and scaling by n/sampleSize. A sample
// covering the whole set gives exact values.
func (m *GraphMetrics) CalculateBetweennessCentrality(ctx context.Context, nodeSet []string, sampleSize int) (*BetweennessResult, error) {
	nodes, err := normalizeNodeSet(nodeSet)
	if err != nil {
		return nil, err
	}
	if sampleSize == 0 {
		sampleSize = constants.DefaultBetweennessSamples
	}
	if sampleSize < 1 || sampleSize > constants.MaxBetweennessSamples {
		return nil, apperrors.NewValidation("sample_size",
			fmt.Sprintf("Sample size must be between 1 and %d", constants.MaxBetweennessSamples))
	}

	key := cache.MetricsKey("betweenness", "", nodeSetParams(nodes, map[string]interface{}{"sample_size": sampleSize}))
	attrs := []attribute.KeyValue{
		attribute.Int("node_count", len(nodes)),
		attribute.Int("sample_size", sampleSize),
	}
	return run(ctx, m, "betweenness_centrality", attrs, func(ctx context.Context, span trace.Span) (*BetweennessResult, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*BetweennessResult, error) {
			g, err := m.loadInduced(ctx, nodes)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(attribute.Int("edge_count", g.edges))

			pivots := samplePivots(len(nodes), sampleSize)
			scores, err := brandes(ctx, g, pivots)
			if err != nil {
				return nil, err
			}
			if scale := float64(len(nodes)) / float64(len(pivots)); scale != 1 {
				for i := range scores {
					scores[i] *= scale
				}
			}
			return &BetweennessResult{
				Scores: scoreMap(nodes, scores),
				Ranked: ranked(nodes, scores),
				Pivots: len(pivots),
				Exact:  len(pivots) == len(nodes),
			}, nil
		})
	})
}

// samplePivots picks k evenly spaced indices out of n, or all of them
func samplePivots(n, k int) []int {
	if k >= n {
		k = n
	}
	pivots := make([]int, k)
	for i := range pivots {
		pivots[i] = i * n / k
	}
	return pivots
}

// brandes accumulates pair dependencies from each pivot over unweighted
// directed shortest paths
func brandes(ctx context.Context, g *induced, pivots []int) ([]float64, error) {
	n := len(g.nodes)
	cb := make([]float64, n)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int, n)
	stack := make([]int, 0, n)
	queue := make([]int, 0, n)

	for _, s := range pivots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := 0; i < n; i++ {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0
		stack = stack[:0]
		queue = append(queue[:0], s)

		for head := 0; head < len(queue); head++ {
			v := queue[head]
			stack = append(stack, v)
			for _, w := range g.out[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				cb[w] += delta[w]
			}
		}
	}
	return cb, nil
}
