package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	apperrors "chain-graph/backend/pkg/errors"
)

// MethodLabelPropagation is the only supported community detection method
const MethodLabelPropagation = "label_propagation"

// Community is one group of a partition
type Community struct {
	ID      int      `json:"id"`
	Members []string `json:"members"`
	Size    int      `json:"size"`
}

// CommunityResult partitions a node set
type CommunityResult struct {
	Method      string         `json:"method"`
	Communities []Community    `json:"communities"`
	Assignments map[string]int `json:"assignments"`
	Iterations  int            `json:"iterations"`
	Converged   bool           `json:"converged"`
}

// DetectCommunities partitions nodeSet by asynchronous label propagation over
// the undirected induced subgraph. Nodes update in address order, each taking
// the most frequent label among its neighbors with ties going to the lowest
// label, until a full sweep changes nothing or 20 sweeps have run. Community
// ids are numbered by size desc, then by first member.
func (m *GraphMetrics) DetectCommunities(ctx context.Context, nodeSet []string, method string) (*CommunityResult, error) {
	if method == "" {
		method = MethodLabelPropagation
	}
	if method != MethodLabelPropagation {
		return nil, apperrors.NewValidation("method",
			fmt.Sprintf("Unknown community detection method %q (label_propagation)", method))
	}
	nodes, err := normalizeNodeSet(nodeSet)
	if err != nil {
		return nil, err
	}

	key := cache.MetricsKey("communities", "", nodeSetParams(nodes, map[string]interface{}{"method": method}))
	attrs := []attribute.KeyValue{
		attribute.Int("node_count", len(nodes)),
		attribute.String("method", method),
	}
	return run(ctx, m, "communities", attrs, func(ctx context.Context, span trace.Span) (*CommunityResult, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*CommunityResult, error) {
			g, err := m.loadInduced(ctx, nodes)
			if err != nil {
				return nil, err
			}

			labels, iterations, converged, err := propagateLabels(ctx, g.undirected(), constants.DefaultLabelPropagationIterations)
			if err != nil {
				return nil, err
			}
			if !converged {
				span.AddEvent("iteration_cap_reached")
			}

			result := partition(nodes, labels)
			result.Method = method
			result.Iterations = iterations
			result.Converged = converged
			span.SetAttributes(
				attribute.Int("community_count", len(result.Communities)),
				attribute.Int("iterations", iterations),
			)
			return result, nil
		})
	})
}

func propagateLabels(ctx context.Context, adj [][]int, maxIterations int) ([]int, int, bool, error) {
	labels := make([]int, len(adj))
	for i := range labels {
		labels[i] = i
	}

	counts := make(map[int]int)
	for iter := 1; iter <= maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, false, err
		}

		changed := false
		for v, neighbors := range adj {
			if len(neighbors) == 0 {
				continue
			}
			for k := range counts {
				delete(counts, k)
			}
			for _, u := range neighbors {
				counts[labels[u]]++
			}
			best, bestCount := -1, 0
			for label, c := range counts {
				if c > bestCount || (c == bestCount && label < best) {
					best, bestCount = label, c
				}
			}
			if best != labels[v] {
				labels[v] = best
				changed = true
			}
		}
		if !changed {
			return labels, iter, true, nil
		}
	}
	return labels, maxIterations, false, nil
}

func partition(nodes []string, labels []int) *CommunityResult {
	groups := make(map[int][]string)
	for i, addr := range nodes {
		groups[labels[i]] = append(groups[labels[i]], addr)
	}

	communities := make([]Community, 0, len(groups))
	for _, members := range groups {
		// nodes is sorted, so members already are
		communities = append(communities, Community{Members: members, Size: len(members)})
	}
	sort.Slice(communities, func(i, j int) bool {
		if communities[i].Size != communities[j].Size {
			return communities[i].Size > communities[j].Size
		}
		return communities[i].Members[0] < communities[j].Members[0]
	})

	assignments := make(map[string]int, len(nodes))
	for id := range communities {
		communities[id].ID = id
		for _, addr := range communities[id].Members {
			assignments[addr] = id
		}
	}
	return &CommunityResult{Communities: communities, Assignments: assignments}
}
