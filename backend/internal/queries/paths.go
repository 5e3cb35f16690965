package queries

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
)

// ShortestPathResult is the outcome of a hop-count path search. A missing
// path is a normal result with Found false and an explanatory message.
type ShortestPathResult struct {
	Found      bool         `json:"found"`
	Path       []string     `json:"path"`
	Hops       int          `json:"hops"`
	Nodes      []graph.Node `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	PathVolume graph.Volume `json:"path_volume"`
	Message    string       `json:"message"`
}

// CircularFlow is a simple directed cycle through the queried address
type CircularFlow struct {
	// Path lists the cycle; the closing hop reads "<address> (circular)"
	Path            []string     `json:"path"`
	PathLength      int          `json:"path_length"`
	MinVolumeInPath graph.Volume `json:"min_volume_in_path"`
}

// CircularFlowResult lists the cycles found for an address
type CircularFlowResult struct {
	Address   string         `json:"address"`
	Flows     []CircularFlow `json:"flows"`
	Count     int            `json:"count"`
	Truncated bool           `json:"truncated,omitempty"`
}

// CircularSuffix marks the closing hop of a circular flow
const CircularSuffix = " (circular)"

// FindShortestPath finds the path with the fewest hops along transfer
// direction from one address to another, within maxDepth hops (0: default).
func (q *GraphQueries) FindShortestPath(ctx context.Context, from, to string, maxDepth int) (*ShortestPathResult, error) {
	if err := validateAddress("from", from); err != nil {
		return nil, err
	}
	if err := validateAddress("to", to); err != nil {
		return nil, err
	}
	depth, err := resolvePathDepth(maxDepth)
	if err != nil {
		return nil, err
	}

	key := cache.QueryKey("shortest_path", map[string]interface{}{
		"address":   from,
		"to":        to,
		"max_depth": depth,
	})

	return run(ctx, q, "shortest_path", func(ctx context.Context) (*ShortestPathResult, error) {
		return cache.Fetch(ctx, q.cache, key, 0, nil, func(ctx context.Context) (*ShortestPathResult, error) {
			adj := graph.NewAdjacency(q.store, graph.Volume{})

			if from == to {
				if err := adj.LoadAccounts(ctx, []string{from}); err != nil {
					return nil, err
				}
				acc, _ := adj.Account(from)
				return &ShortestPathResult{
					Found:   true,
					Path:    []string{from},
					Nodes:   []graph.Node{centerNode(acc)},
					Edges:   []graph.Edge{},
					Message: "Source and target are the same address",
				}, nil
			}

			res, err := graph.ShortestPath(ctx, adj, from, to, graph.SearchOptions{MaxDepth: depth})
			if err != nil {
				return nil, err
			}
			q.logger.Debug("Shortest path search",
				zap.String("from", from),
				zap.String("to", to),
				zap.Bool("found", res.Found),
				zap.Int("expanded", res.Expanded),
			)
			if !res.Found {
				return &ShortestPathResult{
					Path:    []string{},
					Nodes:   []graph.Node{},
					Edges:   []graph.Edge{},
					Message: fmt.Sprintf("No path found from %s to %s within %d hops", from, to, depth),
				}, nil
			}

			g, err := PathGraph(ctx, adj, res.Path, res.Relationships)
			if err != nil {
				return nil, err
			}
			hops := len(res.Path) - 1
			return &ShortestPathResult{
				Found:      true,
				Path:       res.Path,
				Hops:       hops,
				Nodes:      g.Nodes,
				Edges:      g.Edges,
				PathVolume: graph.Bottleneck(res.Relationships),
				Message:    fmt.Sprintf("Path found with %d hops", hops),
			}, nil
		})
	})
}

// PathGraph shapes a path as nodes ordered along it (hop level = position)
// and the relationships joining consecutive addresses.
func PathGraph(ctx context.Context, adj *graph.Adjacency, path []string, rels []graph.Relationship) (*graph.Graph, error) {
	if err := adj.LoadAccounts(ctx, path); err != nil {
		return nil, err
	}
	asm := graph.NewAssembler("")
	for i, addr := range path {
		acc, _ := adj.Account(addr)
		n := graph.NodeFromAccount(acc)
		n.HopLevel = i
		asm.AddNode(n)
	}
	for _, r := range rels {
		asm.AddEdge(r)
	}
	return asm.Build(), nil
}

// DetectCircularFlows finds simple directed cycles that leave address and
// return to it within maxDepth hops (0: default), using only relationships of
// at least minVolume. Cycles are ordered by length, then bottleneck volume
// desc, then path.
func (q *GraphQueries) DetectCircularFlows(ctx context.Context, address string, maxDepth int, minVolume graph.Volume) (*CircularFlowResult, error) {
	if err := validateAddress("address", address); err != nil {
		return nil, err
	}
	depth, err := resolvePathDepth(maxDepth)
	if err != nil {
		return nil, err
	}

	key := cache.QueryKey("circular_flows", map[string]interface{}{
		"address":    address,
		"max_depth":  depth,
		"min_volume": minVolume.String(),
	})

	return run(ctx, q, "circular_flows", func(ctx context.Context) (*CircularFlowResult, error) {
		return cache.Fetch(ctx, q.cache, key, 0, nil, func(ctx context.Context) (*CircularFlowResult, error) {
			adj := graph.NewAdjacency(q.store, minVolume)
			flows, truncated, err := findCycles(ctx, adj, address, depth)
			if err != nil {
				return nil, err
			}
			if truncated {
				q.logger.Warn("Circular flow search truncated", zap.String("address", address), zap.Int("depth", depth))
			}
			return &CircularFlowResult{
				Address:   address,
				Flows:     flows,
				Count:     len(flows),
				Truncated: truncated,
			}, nil
		})
	})
}

// findCycles runs a depth-first search over outgoing relationships. Each
// relationship into the start address closes a cycle.
func findCycles(ctx context.Context, adj *graph.Adjacency, start string, depth int) ([]CircularFlow, bool, error) {
	flows := []CircularFlow{}
	budget := constants.MaxPathExpansions
	truncated := false

	path := []string{start}
	onPath := map[string]bool{start: true}
	var bottlenecks []graph.Volume

	var visit func(addr string) error
	visit = func(addr string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := adj.Load(ctx, []string{addr}, graph.ScanOutgoing); err != nil {
			return err
		}
		for _, r := range adj.Out(addr) {
			if budget == 0 || len(flows) >= constants.MaxPathResults {
				truncated = true
				return nil
			}
			budget--

			next := r.ToAddress
			bottleneck := r.TotalVolume
			if len(bottlenecks) > 0 {
				bottleneck = bottleneck.Min(bottlenecks[len(bottlenecks)-1])
			}

			if next == start {
				if len(path) < 2 {
					continue
				}
				cycle := make([]string, 0, len(path)+1)
				cycle = append(cycle, path...)
				cycle = append(cycle, start+CircularSuffix)
				flows = append(flows, CircularFlow{
					Path:            cycle,
					PathLength:      len(path),
					MinVolumeInPath: bottleneck,
				})
				continue
			}
			if onPath[next] || len(path) >= depth {
				continue
			}

			path = append(path, next)
			onPath[next] = true
			bottlenecks = append(bottlenecks, bottleneck)
			if err := visit(next); err != nil {
				return err
			}
			bottlenecks = bottlenecks[:len(bottlenecks)-1]
			onPath[next] = false
			path = path[:len(path)-1]
		}
		return nil
	}
	if err := visit(start); err != nil {
		return nil, false, err
	}

	sort.Slice(flows, func(i, j int) bool {
		if flows[i].PathLength != flows[j].PathLength {
			return flows[i].PathLength < flows[j].PathLength
		}
		if c := flows[i].MinVolumeInPath.Cmp(flows[j].MinVolumeInPath); c != 0 {
			return c > 0
		}
		return strings.Join(flows[i].Path, ",") < strings.Join(flows[j].Path, ",")
	})
	return flows, truncated, nil
}
