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

// DensityResult is the directed density of an induced subgraph
type DensityResult struct {
	NodeCount int     `json:"node_count"`
	EdgeCount int     `json:"edge_count"`
	Density   float64 `json:"density"`
}

// CalculateGraphDensity is edgeCount / (n(n-1)) over the subgraph induced by
// nodeSet, counting each directed relationship once; 0 for fewer than two nodes.
func (m *GraphMetrics) CalculateGraphDensity(ctx context.Context, nodeSet []string) (*DensityResult, error) {
	nodes, err := normalizeNodeSet(nodeSet)
	if err != nil {
		return nil, err
	}

	key := cache.MetricsKey("density", "", nodeSetParams(nodes, nil))
	attrs := []attribute.KeyValue{attribute.Int("node_count", len(nodes))}
	return run(ctx, m, "density", attrs, func(ctx context.Context, span trace.Span) (*DensityResult, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) (*DensityResult, error) {
			result := &DensityResult{NodeCount: len(nodes)}
			if len(nodes) < 2 {
				return result, nil
			}
			g, err := m.loadInduced(ctx, nodes)
			if err != nil {
				return nil, err
			}
			n := float64(len(nodes))
			result.EdgeCount = g.edges
			result.Density = float64(g.edges) / (n * (n - 1))
			return result, nil
		})
	})
}

// ScoredRelationship is a scored edge with its strength label
type ScoredRelationship struct {
	graph.Edge
	Strength string `json:"strength"`
}

func scored(rels []graph.Relationship) []ScoredRelationship {
	out := make([]ScoredRelationship, 0, len(rels))
	for _, r := range rels {
		s := ScoredRelationship{Edge: graph.EdgeFromRelationship(r)}
		if r.Score != nil {
			s.Strength = graph.InterpretScore(r.Score.TotalScore)
		}
		out = append(out, s)
	}
	return out
}

// TopRelationships returns the highest scoring relationships (0: default 10)
func (m *GraphMetrics) TopRelationships(ctx context.Context, limit int) ([]ScoredRelationship, error) {
	if limit == 0 {
		limit = constants.DefaultTopRelationships
	}
	if limit < 1 || limit > constants.MaxTopRelationships {
		return nil, apperrors.NewValidation("limit",
			fmt.Sprintf("Limit must be between 1 and %d", constants.MaxTopRelationships))
	}

	key := cache.MetricsKey("top_relationships", "", map[string]interface{}{"limit": limit})
	attrs := []attribute.KeyValue{attribute.Int("limit", limit)}
	return run(ctx, m, "top_relationships", attrs, func(ctx context.Context, span trace.Span) ([]ScoredRelationship, error) {
		return cache.Fetch(ctx, m.cache, key, m.scoresTTL, nil, func(ctx context.Context) ([]ScoredRelationship, error) {
			rels, err := m.store.TopRelationships(ctx, limit)
			if err != nil {
				return nil, err
			}
			return scored(rels), nil
		})
	})
}

// SuspiciousRelationships returns relationships whose volume score and risk
// score both exceed the thresholds, riskiest first.
func (m *GraphMetrics) SuspiciousRelationships(ctx context.Context, minVolumeScore, minRiskScore float64) ([]ScoredRelationship, error) {
	if minVolumeScore < 0 || minVolumeScore > 100 {
		return nil, apperrors.NewValidation("min_volume_score", "Score threshold must be between 0 and 100")
	}
	if minRiskScore < 0 || minRiskScore > 100 {
		return nil, apperrors.NewValidation("min_risk_score", "Score threshold must be between 0 and 100")
	}

	key := cache.MetricsKey("suspicious_relationships", "", map[string]interface{}{
		"min_volume_score": minVolumeScore,
		"min_risk_score":   minRiskScore,
	})
	attrs := []attribute.KeyValue{
		attribute.Float64("min_volume_score", minVolumeScore),
		attribute.Float64("min_risk_score", minRiskScore),
	}
	return run(ctx, m, "suspicious_relationships", attrs, func(ctx context.Context, span trace.Span) ([]ScoredRelationship, error) {
		return cache.Fetch(ctx, m.cache, key, m.scoresTTL, nil, func(ctx context.Context) ([]ScoredRelationship, error) {
			rels, err := m.store.SuspiciousRelationships(ctx, minVolumeScore, minRiskScore)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(attribute.Int("matches", len(rels)))
			return scored(rels), nil
		})
	})
}
