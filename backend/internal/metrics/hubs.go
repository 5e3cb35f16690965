package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// Hub weights
const (
	hubDegreeWeight = 0.5
	hubVolumeWeight = 0.5
)

// Hub is a highly connected or high-volume account
type Hub struct {
	Rank        int            `json:"rank"`
	Address     string         `json:"address"`
	NodeType    graph.NodeType `json:"node_type"`
	RiskScore   float64        `json:"risk_score"`
	Degree      int            `json:"degree"`
	TotalVolume graph.Volume   `json:"total_volume"`
	// DegreeScore and VolumeScore are normalized against the candidate maxima
	DegreeScore float64 `json:"degree_score"`
	VolumeScore float64 `json:"volume_score"`
	HubScore    float64 `json:"hub_score"`
}

// IdentifyHubs ranks the store's best-connected accounts by an even blend of
// normalized degree and normalized total volume and returns the top N (0:
// default 10). Candidates are the topN*4 highest-degree accounts, so a
// low-degree whale still competes on volume.
func (m *GraphMetrics) IdentifyHubs(ctx context.Context, topN int) ([]Hub, error) {
	if topN == 0 {
		topN = constants.DefaultHubCount
	}
	if topN < 1 || topN > constants.MaxHubCount {
		return nil, apperrors.NewValidation("top_n",
			fmt.Sprintf("Top N must be between 1 and %d", constants.MaxHubCount))
	}

	key := cache.MetricsKey("hubs", "", map[string]interface{}{"top_n": topN})
	attrs := []attribute.KeyValue{attribute.Int("top_n", topN)}
	return run(ctx, m, "hubs", attrs, func(ctx context.Context, span trace.Span) ([]Hub, error) {
		return cache.Fetch(ctx, m.cache, key, 0, nil, func(ctx context.Context) ([]Hub, error) {
			candidates, err := m.store.TopAccounts(ctx, topN*constants.HubCandidateFactor)
			if err != nil {
				return nil, err
			}
			span.SetAttributes(attribute.Int("candidates", len(candidates)))
			return rankHubs(candidates, topN), nil
		})
	})
}

func rankHubs(candidates []graph.Account, topN int) []Hub {
	hubs := make([]Hub, 0, len(candidates))
	maxDegree := 0
	maxVolume := graph.Volume{}
	for _, a := range candidates {
		h := Hub{
			Address:     a.Address,
			NodeType:    a.NodeType,
			RiskScore:   a.RiskScore,
			Degree:      a.Degree,
			TotalVolume: a.TotalVolumeIn.Add(a.TotalVolumeOut),
		}
		if h.Degree > maxDegree {
			maxDegree = h.Degree
		}
		maxVolume = maxVolume.Max(h.TotalVolume)
		hubs = append(hubs, h)
	}

	for i := range hubs {
		h := &hubs[i]
		if maxDegree > 0 {
			h.DegreeScore = float64(h.Degree) / float64(maxDegree)
		}
		h.VolumeScore = h.TotalVolume.Ratio(maxVolume)
		h.HubScore = hubDegreeWeight*h.DegreeScore + hubVolumeWeight*h.VolumeScore
	}

	sort.SliceStable(hubs, func(i, j int) bool {
		if hubs[i].HubScore != hubs[j].HubScore {
			return hubs[i].HubScore > hubs[j].HubScore
		}
		return hubs[i].Address < hubs[j].Address
	})
	if len(hubs) > topN {
		hubs = hubs[:topN]
	}
	for i := range hubs {
		hubs[i].Rank = i + 1
	}
	return hubs
}
