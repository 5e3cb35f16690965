package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeScore(t *testing.T) {
	all100 := RelationshipScore{VolumeScore: 100, FrequencyScore: 100, TemporalScore: 100, NetworkScore: 100}
	assert.InDelta(t, 100.0, CompositeScore(all100), 1e-9)

	// Full risk halves the score
	all100.RiskScore = 100
	assert.InDelta(t, 50.0, CompositeScore(all100), 1e-9)

	assert.Equal(t, 0.0, CompositeScore(RelationshipScore{}))
}

func TestInterpretScore(t *testing.T) {
	tests := map[float64]string{
		95: "very strong",
		80: "very strong",
		60: "strong",
		45: "moderate",
		20: "weak",
		3:  "very weak",
	}
	for score, want := range tests {
		assert.Equal(t, want, InterpretScore(score), "score %v", score)
	}
}

func TestNormalizeScore(t *testing.T) {
	assert.Nil(t, normalizeScore(nil))

	s := normalizeScore(&RelationshipScore{VolumeScore: 140, RiskScore: -3, TemporalScore: math.NaN(), TotalScore: 12})
	assert.Equal(t, 100.0, s.VolumeScore)
	assert.Equal(t, 0.0, s.RiskScore)
	assert.Equal(t, 0.0, s.TemporalScore)
	assert.Equal(t, 12.0, s.TotalScore)
}
