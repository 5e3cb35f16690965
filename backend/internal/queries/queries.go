// Package queries answers neighborhood, subgraph and path questions about a
// single center address over the relationship store.
package queries

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/pkg/logger"
	apperrors "chain-graph/backend/pkg/errors"
)

// Options tune neighborhood traversals
type Options struct {
	// MinVolume drops relationships whose total volume is below it
	MinVolume graph.Volume
	// Limit caps neighbors expanded per node, highest volume first (0: default)
	Limit int
	// IncludePaths attaches the explored simple paths to multi-hop results
	IncludePaths bool
}

// RiskRange bounds risk scores inclusively
type RiskRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// SubgraphOptions filter an extracted subgraph
type SubgraphOptions struct {
	// NodeTypes keeps only these types when non-empty
	NodeTypes []graph.NodeType
	// RiskScoreRange keeps only nodes inside the range when set
	RiskScoreRange *RiskRange
	MinVolume      graph.Volume
	Limit          int
}

// GraphQueries resolves traversal queries against a Store, optionally through a cache
type GraphQueries struct {
	store   graph.Store
	cache   *cache.Cache
	timeout time.Duration
	logger  *zap.Logger
}

// New creates the query service. cache may be nil; timeout <= 0 disables the time box.
func New(store graph.Store, c *cache.Cache, timeout time.Duration) *GraphQueries {
	return &GraphQueries{
		store:   store,
		cache:   c,
		timeout: timeout,
		logger:  logger.Named("queries"),
	}
}

// run time-boxes fn and turns an expired deadline into a typed context error
func run[T any](ctx context.Context, q *GraphQueries, op string, fn func(context.Context) (T, error)) (T, error) {
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		err = apperrors.FromContext(op, q.timeout, ctx.Err())
	}
	if err != nil {
		q.logger.Warn("Query failed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
	} else {
		q.logger.Debug("Query completed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	}
	return result, err
}

func validateAddress(field, address string) error {
	if address == "" {
		return apperrors.NewValidation(field, "Address must not be empty")
	}
	return nil
}

func validateDepth(depth int) error {
	if depth < constants.MinDepth || depth > constants.MaxDepth {
		return apperrors.NewValidation("depth",
			fmt.Sprintf("Depth must be between %d and %d", constants.MinDepth, constants.MaxDepth))
	}
	return nil
}

// resolvePathDepth applies the path-search default and bounds
func resolvePathDepth(maxDepth int) (int, error) {
	if maxDepth == 0 {
		return constants.DefaultPathDepth, nil
	}
	if maxDepth < 1 || maxDepth > constants.MaxPathDepth {
		return 0, apperrors.NewValidation("max_depth",
			fmt.Sprintf("Max depth must be between 1 and %d", constants.MaxPathDepth))
	}
	return maxDepth, nil
}

func resolveLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return constants.DefaultNeighborLimit, nil
	case limit < 0 || limit > constants.MaxNeighborLimit:
		return 0, apperrors.NewValidation("limit",
			fmt.Sprintf("Limit must be between 1 and %d", constants.MaxNeighborLimit))
	default:
		return limit, nil
	}
}

func graphSize(g *graph.Graph) int {
	if g == nil {
		return 0
	}
	return g.NodeCount()
}

// centerNode shapes the queried account as the depth-0 node
func centerNode(acc graph.Account) graph.Node {
	n := graph.NodeFromAccount(acc)
	n.NodeType = graph.NodeTypeCenter
	n.HopLevel = 0
	return n
}
