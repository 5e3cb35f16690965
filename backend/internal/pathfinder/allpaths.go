package pathfinder

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// PathInfo describes one enumerated path
type PathInfo struct {
	Path        []string     `json:"path"`
	Length      int          `json:"length"`
	TotalVolume graph.Volume `json:"total_volume"`
	// MinVolume is the bottleneck relationship volume
	MinVolume graph.Volume `json:"min_volume"`
	Edges     []graph.Edge `json:"edges"`
}

// PathsResult lists enumerated paths between two addresses
type PathsResult struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Paths     []PathInfo `json:"paths"`
	Count     int        `json:"count"`
	Truncated bool       `json:"truncated,omitempty"`
}

// FindAllPaths enumerates simple directed paths up to maxDepth hops (0:
// default 4), shortest first, stopping at maxResults (0: default 100). Paths
// of equal length are ordered by total volume desc, then lexically.
func (p *PathFinder) FindAllPaths(ctx context.Context, from, to string, maxDepth, maxResults int) (*PathsResult, error) {
	if err := validateEndpoints(from, to); err != nil {
		return nil, err
	}
	depth, err := resolveDepth(maxDepth)
	if err != nil {
		return nil, err
	}
	limit, err := resolveMaxResults(maxResults)
	if err != nil {
		return nil, err
	}

	key := cache.QueryKey("all_paths", map[string]interface{}{
		"address":     from,
		"to":          to,
		"max_depth":   depth,
		"max_results": limit,
	})
	return run(ctx, p, "all_paths", func(ctx context.Context) (*PathsResult, error) {
		return cache.Fetch(ctx, p.cache, key, 0, nil, func(ctx context.Context) (*PathsResult, error) {
			return p.enumerate(ctx, from, to, depth, limit, graph.Volume{}, byLengthThenVolume)
		})
	})
}

// FindHighValuePaths enumerates paths whose every relationship carries at
// least minVolume, ordered by bottleneck volume desc, then length, then path.
func (p *PathFinder) FindHighValuePaths(ctx context.Context, from, to string, minVolume graph.Volume, maxDepth int) (*PathsResult, error) {
	if err := validateEndpoints(from, to); err != nil {
		return nil, err
	}
	if minVolume.IsZero() {
		return nil, apperrors.NewValidation("min_volume", "Minimum volume threshold must be positive")
	}
	depth, err := resolveDepth(maxDepth)
	if err != nil {
		return nil, err
	}

	key := cache.QueryKey("high_value_paths", map[string]interface{}{
		"address":    from,
		"to":         to,
		"max_depth":  depth,
		"min_volume": minVolume.String(),
	})
	return run(ctx, p, "high_value_paths", func(ctx context.Context) (*PathsResult, error) {
		return cache.Fetch(ctx, p.cache, key, 0, nil, func(ctx context.Context) (*PathsResult, error) {
			return p.enumerate(ctx, from, to, depth, constants.MaxPathResults, minVolume, byBottleneck)
		})
	})
}

type pathOrder func(a, b PathInfo) bool

func byLengthThenVolume(a, b PathInfo) bool {
	if a.Length != b.Length {
		return a.Length < b.Length
	}
	if c := a.TotalVolume.Cmp(b.TotalVolume); c != 0 {
		return c > 0
	}
	return strings.Join(a.Path, ",") < strings.Join(b.Path, ",")
}

func byBottleneck(a, b PathInfo) bool {
	if c := a.MinVolume.Cmp(b.MinVolume); c != 0 {
		return c > 0
	}
	return byLengthThenVolume(a, b)
}

// enumerate runs iterative deepening: each round lists every simple path of
// exactly that length, so shorter paths always win the result slots. All
// rounds share one expansion budget.
func (p *PathFinder) enumerate(ctx context.Context, from, to string, depth, limit int, minVolume graph.Volume, order pathOrder) (*PathsResult, error) {
	result := &PathsResult{From: from, To: to, Paths: []PathInfo{}}
	if from == to {
		return result, nil
	}

	adj := graph.NewAdjacency(p.store, minVolume)
	budget := constants.MaxPathExpansions

	for length := 1; length <= depth && len(result.Paths) < limit; length++ {
		var round []PathInfo
		path := []string{from}
		rels := []graph.Relationship{}
		onPath := map[string]bool{from: true}

		var visit func(addr string) error
		visit = func(addr string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := adj.Load(ctx, []string{addr}, graph.ScanOutgoing); err != nil {
				return err
			}
			for _, r := range adj.Out(addr) {
				if budget == 0 {
					result.Truncated = true
					return nil
				}
				budget--

				next := r.ToAddress
				if onPath[next] {
					continue
				}
				steps := len(path)
				if next == to {
					if steps == length {
						round = append(round, describe(append(path, next), append(rels, r)))
					}
					continue
				}
				if steps >= length {
					continue
				}

				path = append(path, next)
				rels = append(rels, r)
				onPath[next] = true
				if err := visit(next); err != nil {
					return err
				}
				onPath[next] = false
				path = path[:len(path)-1]
				rels = rels[:len(rels)-1]
			}
			return nil
		}
		if err := visit(from); err != nil {
			return nil, err
		}

		sort.Slice(round, func(i, j int) bool { return byLengthThenVolume(round[i], round[j]) })
		for _, info := range round {
			if len(result.Paths) >= limit {
				result.Truncated = true
				break
			}
			result.Paths = append(result.Paths, info)
		}
		if result.Truncated {
			break
		}
	}

	sort.SliceStable(result.Paths, func(i, j int) bool { return order(result.Paths[i], result.Paths[j]) })
	result.Count = len(result.Paths)
	if result.Truncated {
		p.logger.Warn("Path enumeration truncated",
			zap.String("from", from),
			zap.String("to", to),
			zap.Int("depth", depth),
			zap.Int("paths", result.Count),
		)
	}
	return result, nil
}

// describe copies the path and its relationships into a PathInfo
func describe(path []string, rels []graph.Relationship) PathInfo {
	info := PathInfo{
		Path:      append([]string(nil), path...),
		Length:    len(rels),
		MinVolume: graph.Bottleneck(rels),
		Edges:     make([]graph.Edge, 0, len(rels)),
	}
	for _, r := range rels {
		info.TotalVolume = info.TotalVolume.Add(r.TotalVolume)
		info.Edges = append(info.Edges, graph.EdgeFromRelationship(r))
	}
	return info
}
