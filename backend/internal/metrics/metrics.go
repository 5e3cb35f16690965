// Package metrics computes centrality, clustering, community and density
// figures over the relationship graph.
package metrics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/pkg/logger"
	apperrors "chain-graph/backend/pkg/errors"
)

var tracer = otel.Tracer("chaingraph.metrics")

// NodeScore pairs an address with a computed score
type NodeScore struct {
	Address string  `json:"address"`
	Score   float64 `json:"score"`
}

// GraphMetrics computes graph metrics against a Store, optionally through a cache
type GraphMetrics struct {
	store     graph.Store
	cache     *cache.Cache
	timeout   time.Duration
	scoresTTL time.Duration
	logger    *zap.Logger
}

// New creates the metrics service. cache may be nil; timeout <= 0 disables the time box.
func New(store graph.Store, c *cache.Cache, timeout time.Duration) *GraphMetrics {
	return &GraphMetrics{
		store:     store,
		cache:     c,
		timeout:   timeout,
		scoresTTL: constants.TTLScores,
		logger:    logger.Named("metrics"),
	}
}

// WithScoresTTL overrides how long relationship score listings stay cached
func (m *GraphMetrics) WithScoresTTL(ttl time.Duration) *GraphMetrics {
	if ttl > 0 {
		m.scoresTTL = ttl
	}
	return m
}

// run wraps a computation in a span and the metrics time box
func run[T any](ctx context.Context, m *GraphMetrics, op string, attrs []attribute.KeyValue, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, "GraphMetrics."+op, trace.WithAttributes(attrs...))
	defer span.End()

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(ctx, span)
	if err != nil && ctx.Err() != nil {
		err = apperrors.FromContext(op, m.timeout, ctx.Err())
	}
	elapsed := time.Since(start)
	computeDuration.WithLabelValues(op).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" failed")
		computeErrors.WithLabelValues(op).Inc()
		m.logger.Warn("Metric computation failed",
			zap.String("metric", op),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	m.logger.Debug("Metric computed", zap.String("metric", op), zap.Duration("elapsed", elapsed))
	return result, nil
}

// normalizeNodeSet dedups and sorts the set, rejecting empty members and
// sets the set-based metrics refuse to load
func normalizeNodeSet(nodeSet []string) ([]string, error) {
	if len(nodeSet) == 0 {
		return nil, apperrors.NewValidation("node_set", "Node set must not be empty")
	}
	seen := make(map[string]struct{}, len(nodeSet))
	nodes := make([]string, 0, len(nodeSet))
	for i, addr := range nodeSet {
		if addr == "" {
			return nil, apperrors.NewValidation("node_set", fmt.Sprintf("Address %d is empty", i))
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		nodes = append(nodes, addr)
	}
	if len(nodes) > constants.MaxMetricNodes {
		return nil, apperrors.NewValidation("node_set",
			fmt.Sprintf("Node set must not exceed %d addresses", constants.MaxMetricNodes))
	}
	sort.Strings(nodes)
	return nodes, nil
}

// nodeSetParams keys a set-based result on its normalized members
func nodeSetParams(nodes []string, extra map[string]interface{}) map[string]interface{} {
	params := map[string]interface{}{"nodes": strings.Join(nodes, ",")}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// induced is the subgraph spanned by a node set, indexed by position in the
// sorted member list. Self loops are dropped and parallel edges collapse.
type induced struct {
	nodes []string
	index map[string]int
	out   [][]int
	in    [][]int
	edges int
}

func (m *GraphMetrics) loadInduced(ctx context.Context, nodes []string) (*induced, error) {
	rels, err := m.store.RelationshipsAmong(ctx, nodes)
	if err != nil {
		return nil, err
	}

	g := &induced{
		nodes: nodes,
		index: make(map[string]int, len(nodes)),
		out:   make([][]int, len(nodes)),
		in:    make([][]int, len(nodes)),
	}
	for i, addr := range nodes {
		g.index[addr] = i
	}

	seen := make(map[[2]int]struct{}, len(rels))
	for _, r := range rels {
		u, okU := g.index[r.FromAddress]
		v, okV := g.index[r.ToAddress]
		if !okU || !okV || u == v {
			continue
		}
		if _, dup := seen[[2]int{u, v}]; dup {
			continue
		}
		seen[[2]int{u, v}] = struct{}{}
		g.out[u] = append(g.out[u], v)
		g.in[v] = append(g.in[v], u)
		g.edges++
	}
	for i := range nodes {
		sort.Ints(g.out[i])
		sort.Ints(g.in[i])
	}
	return g, nil
}

// undirected merges both directions into one sorted neighbor list per node
func (g *induced) undirected() [][]int {
	adj := make([][]int, len(g.nodes))
	for i := range g.nodes {
		merged := make([]int, 0, len(g.out[i])+len(g.in[i]))
		merged = append(merged, g.out[i]...)
		merged = append(merged, g.in[i]...)
		sort.Ints(merged)
		uniq := merged[:0]
		for _, v := range merged {
			if len(uniq) > 0 && uniq[len(uniq)-1] == v {
				continue
			}
			uniq = append(uniq, v)
		}
		adj[i] = uniq
	}
	return adj
}

// ranked orders scores desc, ties by address
func ranked(nodes []string, scores []float64) []NodeScore {
	out := make([]NodeScore, len(nodes))
	for i, addr := range nodes {
		out[i] = NodeScore{Address: addr, Score: scores[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Address < out[j].Address
	})
	return out
}

func scoreMap(nodes []string, scores []float64) map[string]float64 {
	out := make(map[string]float64, len(nodes))
	for i, addr := range nodes {
		out[addr] = scores[i]
	}
	return out
}
