package pathfinder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/queries"
	apperrors "chain-graph/backend/pkg/errors"
)

func rel(from, to, volume string) graph.Relationship {
	return graph.Relationship{
		FromAddress:   from,
		ToAddress:     to,
		TotalVolume:   graph.MustVolume(volume),
		TransferCount: 1,
	}
}

// newRouteStore: a thin risky route S→A→T, a fat three-hop route S→B→C→T,
// and a medium route S→D→T.
func newRouteStore() *graph.MemoryStore {
	s := graph.NewMemoryStore()
	s.PutAccount(graph.Account{Address: "A", RiskScore: 95})
	s.PutAccount(graph.Account{Address: "D", RiskScore: 60})

	s.PutRelationship(rel("S", "A", "10"))
	scored := rel("A", "T", "10")
	scored.Score = &graph.RelationshipScore{RiskScore: 80, TotalScore: 10}
	s.PutRelationship(scored)

	s.PutRelationship(rel("S", "B", "1000000000000000"))
	s.PutRelationship(rel("B", "C", "1000000000000000"))
	s.PutRelationship(rel("C", "T", "1000000000000000"))

	s.PutRelationship(rel("S", "D", "100"))
	s.PutRelationship(rel("D", "T", "100"))
	return s
}

func newFinder(s graph.Store) *PathFinder {
	return New(s, queries.New(s, nil, time.Second), nil, 0, time.Second)
}

func TestFindShortestPath_WeightTypes(t *testing.T) {
	s := newRouteStore()
	p := newFinder(s)
	ctx := context.Background()

	res, err := p.FindShortestPath(ctx, "S", "C", WeightHops, 0)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "B", "C"}, res.Path)
	assert.Equal(t, WeightHops, res.WeightType)
	assert.Equal(t, 2.0, res.TotalCost)

	res, err = p.FindShortestPath(ctx, "S", "T", WeightVolume, 0)
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Path)
	assert.Equal(t, 3, res.Hops)
	assert.Equal(t, "1000000000000000", res.PathVolume.String())
	assert.Len(t, res.Nodes, 4)
	assert.Len(t, res.Edges, 3)

	res, err = p.FindShortestPath(ctx, "S", "T", WeightRisk, 0)
	require.NoError(t, err)
	require.True(t, res.Found)
	// Only the clean fat route avoids both A and D
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Path)
	assert.InDelta(t, 3*riskEpsilon, res.TotalCost, 1e-12)
}

func TestFindShortestPath_RiskAvoidsRiskyAccounts(t *testing.T) {
	s := graph.NewMemoryStore()
	s.PutAccount(graph.Account{Address: "A", RiskScore: 95})
	s.PutRelationship(rel("S", "A", "10"))
	s.PutRelationship(rel("A", "T", "10"))
	s.PutRelationship(rel("S", "B", "10"))
	s.PutRelationship(rel("B", "C", "10"))
	s.PutRelationship(rel("C", "T", "10"))

	// Without the query layer every weighting runs on the shared core
	p := New(s, nil, nil, 0, time.Second)
	ctx := context.Background()

	res, err := p.FindShortestPath(ctx, "S", "T", WeightRisk, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Path)

	res, err = p.FindShortestPath(ctx, "S", "T", WeightHops, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "A", "T"}, res.Path)
	assert.Equal(t, 2.0, res.TotalCost)
}

func TestFindShortestPath_Validation(t *testing.T) {
	p := newFinder(newRouteStore())
	ctx := context.Background()

	_, err := p.FindShortestPath(ctx, "S", "T", "cheapest", 0)
	assert.True(t, apperrors.IsValidation(err))

	_, err = p.FindShortestPath(ctx, "S", "T", WeightVolume, 7)
	assert.True(t, apperrors.IsValidation(err))

	_, err = p.FindShortestPath(ctx, "", "T", WeightVolume, 0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestFindShortestPath_SameAddress(t *testing.T) {
	s := graph.NewMemoryStore()
	s.PutAccount(graph.Account{Address: "S", RiskScore: 10})
	s.PutRelationship(rel("S", "B", "100"))
	s.PutRelationship(rel("B", "S", "100"))
	ctx := context.Background()

	finders := map[string]*PathFinder{
		"standalone":   New(s, nil, nil, 0, time.Second),
		"with_queries": newFinder(s),
	}
	for name, p := range finders {
		t.Run(name, func(t *testing.T) {
			for _, weight := range []WeightType{WeightHops, WeightVolume, WeightRisk} {
				res, err := p.FindShortestPath(ctx, "S", "S", weight, 0)
				require.NoError(t, err)
				assert.True(t, res.Found)
				assert.Equal(t, []string{"S"}, res.Path, "weight %s", weight)
				assert.Equal(t, 0, res.Hops)
				assert.Equal(t, 0.0, res.TotalCost)
				assert.Len(t, res.Nodes, 1)
				assert.Empty(t, res.Edges)
			}
		})
	}
}

func TestFindShortestPath_NotFound(t *testing.T) {
	p := newFinder(newRouteStore())

	res, err := p.FindShortestPath(context.Background(), "T", "S", WeightVolume, 0)
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Path)
	assert.NotEmpty(t, res.Message)
}

func TestFindAllPaths(t *testing.T) {
	s := newRouteStore()
	s.PutRelationship(rel("S", "T", "5"))
	p := newFinder(s)
	ctx := context.Background()

	res, err := p.FindAllPaths(ctx, "S", "T", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 4, res.Count)
	assert.False(t, res.Truncated)

	assert.Equal(t, []string{"S", "T"}, res.Paths[0].Path)
	// Equal length: higher total volume first
	assert.Equal(t, []string{"S", "D", "T"}, res.Paths[1].Path)
	assert.Equal(t, "200", res.Paths[1].TotalVolume.String())
	assert.Equal(t, []string{"S", "A", "T"}, res.Paths[2].Path)
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Paths[3].Path)
	assert.Equal(t, 3, res.Paths[3].Length)
	assert.Len(t, res.Paths[3].Edges, 3)

	for _, info := range res.Paths {
		seen := make(map[string]bool)
		for _, addr := range info.Path {
			assert.False(t, seen[addr], "path %v revisits %s", info.Path, addr)
			seen[addr] = true
		}
	}
}

func TestFindAllPaths_Caps(t *testing.T) {
	s := newRouteStore()
	s.PutRelationship(rel("S", "T", "5"))
	p := newFinder(s)
	ctx := context.Background()

	res, err := p.FindAllPaths(ctx, "S", "T", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.True(t, res.Truncated)
	assert.Equal(t, []string{"S", "D", "T"}, res.Paths[1].Path)

	res, err = p.FindAllPaths(ctx, "S", "T", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)

	_, err = p.FindAllPaths(ctx, "S", "T", 0, 5000)
	assert.True(t, apperrors.IsValidation(err))
}

func TestFindHighValuePaths(t *testing.T) {
	p := newFinder(newRouteStore())
	ctx := context.Background()

	res, err := p.FindHighValuePaths(ctx, "S", "T", graph.MustVolume("100"), 0)
	require.NoError(t, err)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Paths[0].Path)
	assert.Equal(t, []string{"S", "D", "T"}, res.Paths[1].Path)
	for _, info := range res.Paths {
		assert.GreaterOrEqual(t, info.MinVolume.Cmp(graph.MustVolume("100")), 0)
	}

	res, err = p.FindHighValuePaths(ctx, "S", "T", graph.MustVolume("1000000000000001"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Count)

	_, err = p.FindHighValuePaths(ctx, "S", "T", graph.Volume{}, 0)
	assert.True(t, apperrors.IsValidation(err))
}

func TestAnalyzePathRisk(t *testing.T) {
	p := newFinder(newRouteStore())

	res, err := p.AnalyzePathRisk(context.Background(), []string{"S", "A", "T"})
	require.NoError(t, err)
	require.Len(t, res.Hops, 2)

	assert.Equal(t, 95.0, res.Hops[0].Risk)
	assert.True(t, res.Hops[0].EdgeFound)
	assert.Nil(t, res.Hops[0].EdgeRisk)

	// T itself is clean; the scored relationship drives the hop
	assert.Equal(t, 0.0, res.Hops[1].AccountRisk)
	require.NotNil(t, res.Hops[1].EdgeRisk)
	assert.Equal(t, 80.0, res.Hops[1].Risk)

	assert.Equal(t, 95.0, res.MaxRisk)
	assert.InDelta(t, 87.5, res.MeanRisk, 1e-12)
	assert.True(t, res.HighRisk)
	assert.Equal(t, 2, res.HighRiskHops)
	assert.Equal(t, "critical", res.RiskLevel)
	assert.Equal(t, 70.0, res.Threshold)
}

func TestAnalyzePathRisk_MissingEdgeAndValidation(t *testing.T) {
	p := newFinder(newRouteStore())
	ctx := context.Background()

	res, err := p.AnalyzePathRisk(ctx, []string{"S", "D", "B"})
	require.NoError(t, err)
	assert.True(t, res.Hops[0].EdgeFound)
	assert.False(t, res.Hops[1].EdgeFound)
	assert.Equal(t, 60.0, res.MaxRisk)
	assert.False(t, res.HighRisk)
	assert.Equal(t, "medium", res.RiskLevel)

	_, err = p.AnalyzePathRisk(ctx, []string{"S"})
	assert.True(t, apperrors.IsValidation(err))
	_, err = p.AnalyzePathRisk(ctx, []string{"S", ""})
	assert.True(t, apperrors.IsValidation(err))
}

func TestParseWeightType(t *testing.T) {
	w, err := ParseWeightType("")
	require.NoError(t, err)
	assert.Equal(t, WeightHops, w)

	w, err = ParseWeightType("risk")
	require.NoError(t, err)
	assert.Equal(t, WeightRisk, w)

	_, err = ParseWeightType("fastest")
	assert.Error(t, err)
}

func TestAnalyzePathRisk_ScoresOrigin(t *testing.T) {
	s := graph.NewMemoryStore()
	s.PutAccount(graph.Account{Address: "mixer", RiskScore: 95})
	s.PutAccount(graph.Account{Address: "clean", RiskScore: 0})
	s.PutRelationship(rel("mixer", "clean", "1000"))
	p := newFinder(s)

	res, err := p.AnalyzePathRisk(context.Background(), []string{"mixer", "clean"})
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.OriginRisk)
	assert.True(t, res.OriginHigh)
	assert.Equal(t, 0.0, res.Hops[0].Risk)
	assert.Equal(t, 0, res.HighRiskHops)
	assert.Equal(t, 0.0, res.MeanRisk)
	assert.Equal(t, 95.0, res.MaxRisk)
	assert.True(t, res.HighRisk)
	assert.Equal(t, "critical", res.RiskLevel)
}
