package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDiamondStore: S→A→T is short but thin, S→B→C→T is long but fat
func newDiamondStore() *MemoryStore {
	s := NewMemoryStore()
	s.PutRelationship(rel("S", "A", "10", 1))
	s.PutRelationship(rel("A", "T", "10", 1))
	s.PutRelationship(rel("S", "B", "1000000000000000", 1))
	s.PutRelationship(rel("B", "C", "1000000000000000", 1))
	s.PutRelationship(rel("C", "T", "1000000000000000", 1))
	return s
}

func volumeCost(r Relationship, _ Account) float64 {
	return 1 / (1 + r.TotalVolume.Log2p1())
}

func TestShortestPath_Hops(t *testing.T) {
	adj := NewAdjacency(newDiamondStore(), Volume{})

	res, err := ShortestPath(context.Background(), adj, "S", "T", SearchOptions{MaxDepth: 4})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "A", "T"}, res.Path)
	assert.Len(t, res.Relationships, 2)
	assert.Equal(t, 2.0, res.Cost)
	assert.Equal(t, "10", Bottleneck(res.Relationships).String())
}

func TestShortestPath_VolumeWeighted(t *testing.T) {
	adj := NewAdjacency(newDiamondStore(), Volume{})

	res, err := ShortestPath(context.Background(), adj, "S", "T", SearchOptions{MaxDepth: 4, Cost: volumeCost})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "B", "C", "T"}, res.Path)
}

func TestShortestPath_HopBoundBeatsCost(t *testing.T) {
	adj := NewAdjacency(newDiamondStore(), Volume{})

	// The fat route needs three hops; with two allowed the thin one is the answer
	res, err := ShortestPath(context.Background(), adj, "S", "T", SearchOptions{MaxDepth: 2, Cost: volumeCost})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "A", "T"}, res.Path)
}

func TestShortestPath_NotFound(t *testing.T) {
	adj := NewAdjacency(newDiamondStore(), Volume{})
	ctx := context.Background()

	res, err := ShortestPath(ctx, adj, "T", "S", SearchOptions{MaxDepth: 6})
	require.NoError(t, err)
	assert.False(t, res.Found)
	assert.Empty(t, res.Path)

	res, err = ShortestPath(ctx, adj, "S", "T", SearchOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestShortestPath_CycleBackToSource(t *testing.T) {
	adj := NewAdjacency(newTriangleStore(), Volume{})

	// Source equals target: a closed walk is not a path
	res, err := ShortestPath(context.Background(), adj, "A", "A", SearchOptions{MaxDepth: 3})
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestShortestPath_RiskLoadsAccounts(t *testing.T) {
	s := NewMemoryStore()
	s.PutAccount(Account{Address: "Risky", RiskScore: 100})
	s.PutAccount(Account{Address: "Safe1", RiskScore: 0})
	s.PutAccount(Account{Address: "Safe2", RiskScore: 0})
	s.PutRelationship(rel("S", "Risky", "1", 1))
	s.PutRelationship(rel("Risky", "T", "1", 1))
	s.PutRelationship(rel("S", "Safe1", "1", 1))
	s.PutRelationship(rel("Safe1", "Safe2", "1", 1))
	s.PutRelationship(rel("Safe2", "T", "1", 1))

	riskCost := func(_ Relationship, to Account) float64 { return 0.001 + to.RiskScore/100 }
	adj := NewAdjacency(s, Volume{})

	res, err := ShortestPath(context.Background(), adj, "S", "T", SearchOptions{MaxDepth: 4, Cost: riskCost, NeedAccounts: true})
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, []string{"S", "Safe1", "Safe2", "T"}, res.Path)
}

func TestShortestPath_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ShortestPath(ctx, NewAdjacency(newDiamondStore(), Volume{}), "S", "T", SearchOptions{MaxDepth: 4})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBottleneck_Empty(t *testing.T) {
	assert.True(t, Bottleneck(nil).IsZero())
}
