package pathfinder

import (
	"context"
	"fmt"

	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// HopRisk is the risk assessment of one step along a path
type HopRisk struct {
	From string `json:"from"`
	To   string `json:"to"`
	// AccountRisk is the destination account's risk score
	AccountRisk float64 `json:"account_risk"`
	// EdgeRisk is the relationship risk score when the edge has been scored
	EdgeRisk  *float64 `json:"edge_risk,omitempty"`
	Risk      float64  `json:"risk"`
	HighRisk  bool     `json:"high_risk"`
	EdgeFound bool     `json:"edge_found"`
	// Volume of the relationship, zero when no edge joins the hop
	Volume graph.Volume `json:"volume"`
}

// PathRisk summarizes the risk along a path
type PathRisk struct {
	Path []string `json:"path"`
	// OriginRisk is the first account's own risk score
	OriginRisk float64 `json:"origin_risk"`
	OriginHigh bool    `json:"origin_high_risk"`

	Hops         []HopRisk `json:"hops"`
	MaxRisk      float64   `json:"max_risk"`
	MeanRisk     float64   `json:"mean_risk"`
	HighRisk     bool      `json:"high_risk"`
	HighRiskHops int       `json:"high_risk_hops"`
	RiskLevel    string    `json:"risk_level"`
	Threshold    float64   `json:"threshold"`
}

// RiskLevel labels a 0-100 risk score
func RiskLevel(score float64) string {
	switch {
	case score >= 90:
		return "critical"
	case score >= 70:
		return "high"
	case score >= 40:
		return "medium"
	default:
		return "low"
	}
}

// AnalyzePathRisk scores each hop of path as the larger of the destination
// account's risk and the relationship's risk score. Hops without a
// relationship in the store are still scored from the account. The origin
// account is scored on its own and counts toward the maximum and the high
// risk flag, not the per-hop mean.
func (p *PathFinder) AnalyzePathRisk(ctx context.Context, path []string) (*PathRisk, error) {
	if len(path) < 2 {
		return nil, apperrors.NewValidation("path", "Path must contain at least two addresses")
	}
	for i, addr := range path {
		if addr == "" {
			return nil, apperrors.NewValidation("path", fmt.Sprintf("Address %d is empty", i))
		}
	}

	return run(ctx, p, "path_risk", func(ctx context.Context) (*PathRisk, error) {
		adj := graph.NewAdjacency(p.store, graph.Volume{})
		if err := adj.LoadAccounts(ctx, path); err != nil {
			return nil, err
		}
		if err := adj.Load(ctx, path[:len(path)-1], graph.ScanOutgoing); err != nil {
			return nil, err
		}

		result := &PathRisk{
			Path:      path,
			Hops:      make([]HopRisk, 0, len(path)-1),
			Threshold: p.riskThreshold,
		}
		if origin, ok := adj.Account(path[0]); ok {
			result.OriginRisk = origin.RiskScore
		}
		result.OriginHigh = result.OriginRisk > p.riskThreshold
		result.MaxRisk = result.OriginRisk
		total := 0.0
		for i := 0; i+1 < len(path); i++ {
			from, to := path[i], path[i+1]
			acc, _ := adj.Account(to)
			hop := HopRisk{
				From:        from,
				To:          to,
				AccountRisk: acc.RiskScore,
				Risk:        acc.RiskScore,
			}
			for _, r := range adj.Out(from) {
				if r.ToAddress != to {
					continue
				}
				hop.EdgeFound = true
				hop.Volume = r.TotalVolume
				if r.Score != nil {
					edgeRisk := r.Score.RiskScore
					hop.EdgeRisk = &edgeRisk
					if edgeRisk > hop.Risk {
						hop.Risk = edgeRisk
					}
				}
				break
			}
			hop.HighRisk = hop.Risk > p.riskThreshold
			if hop.HighRisk {
				result.HighRiskHops++
			}
			if hop.Risk > result.MaxRisk {
				result.MaxRisk = hop.Risk
			}
			total += hop.Risk
			result.Hops = append(result.Hops, hop)
		}

		result.MeanRisk = total / float64(len(result.Hops))
		result.HighRisk = result.OriginHigh || result.HighRiskHops > 0
		result.RiskLevel = RiskLevel(result.MaxRisk)
		return result, nil
	})
}
