// Package pathfinder searches directed transfer paths between two addresses
// and scores the risk along them.
package pathfinder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/queries"
	"chain-graph/backend/pkg/logger"
	apperrors "chain-graph/backend/pkg/errors"
)

// WeightType selects the cost a shortest-path search minimizes
type WeightType string

const (
	// WeightHops counts edges
	WeightHops WeightType = "hops"
	// WeightVolume prefers high-volume relationships
	WeightVolume WeightType = "volume"
	// WeightRisk prefers low-risk accounts and relationships
	WeightRisk WeightType = "risk"
)

// riskEpsilon keeps risk costs positive so zero-risk routes still prefer fewer hops
const riskEpsilon = 0.001

// ParseWeightType maps a request value onto a weight type; empty means hops
func ParseWeightType(s string) (WeightType, error) {
	switch WeightType(s) {
	case "", WeightHops:
		return WeightHops, nil
	case WeightVolume, WeightRisk:
		return WeightType(s), nil
	default:
		return "", apperrors.NewValidation("weight_type", fmt.Sprintf("Unknown weight type %q (hops, volume, risk)", s))
	}
}

// costFunc returns the edge cost for a weight type
func costFunc(w WeightType) graph.CostFunc {
	switch w {
	case WeightVolume:
		return func(r graph.Relationship, _ graph.Account) float64 {
			return 1 / (1 + r.TotalVolume.Log2p1())
		}
	case WeightRisk:
		return func(r graph.Relationship, to graph.Account) float64 {
			cost := riskEpsilon + to.RiskScore/100
			if r.Score != nil {
				cost += r.Score.RiskScore / 100
			}
			return cost
		}
	default:
		return graph.UnitCost
	}
}

// PathFinder runs path searches over the relationship store
type PathFinder struct {
	store         graph.Store
	queries       *queries.GraphQueries
	cache         *cache.Cache
	riskThreshold float64
	timeout       time.Duration
	logger        *zap.Logger
}

// New creates a path finder. riskThreshold <= 0 uses the default of 70.
func New(store graph.Store, q *queries.GraphQueries, c *cache.Cache, riskThreshold float64, timeout time.Duration) *PathFinder {
	if riskThreshold <= 0 {
		riskThreshold = constants.DefaultRiskThreshold
	}
	return &PathFinder{
		store:         store,
		queries:       q,
		cache:         c,
		riskThreshold: riskThreshold,
		timeout:       timeout,
		logger:        logger.Named("pathfinder"),
	}
}

func run[T any](ctx context.Context, p *PathFinder, op string, fn func(context.Context) (T, error)) (T, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		err = apperrors.FromContext(op, p.timeout, ctx.Err())
	}
	if err != nil {
		p.logger.Warn("Path search failed", zap.String("op", op), zap.Error(err))
	} else {
		p.logger.Debug("Path search completed", zap.String("op", op), zap.Duration("elapsed", time.Since(start)))
	}
	return result, err
}

func validateEndpoints(from, to string) error {
	if from == "" {
		return apperrors.NewValidation("from", "Address must not be empty")
	}
	if to == "" {
		return apperrors.NewValidation("to", "Address must not be empty")
	}
	return nil
}

func resolveDepth(maxDepth int) (int, error) {
	if maxDepth == 0 {
		return constants.DefaultPathDepth, nil
	}
	if maxDepth < 1 || maxDepth > constants.MaxPathDepth {
		return 0, apperrors.NewValidation("max_depth",
			fmt.Sprintf("Max depth must be between 1 and %d", constants.MaxPathDepth))
	}
	return maxDepth, nil
}

func resolveMaxResults(maxResults int) (int, error) {
	if maxResults == 0 {
		return constants.DefaultMaxPathResults, nil
	}
	if maxResults < 1 || maxResults > constants.MaxPathResults {
		return 0, apperrors.NewValidation("max_results",
			fmt.Sprintf("Max results must be between 1 and %d", constants.MaxPathResults))
	}
	return maxResults, nil
}
