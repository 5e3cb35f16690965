package graph

import "math"

// Component weights of the composite relationship score. Risk is applied as a
// penalty of at most 50% rather than as a weighted component.
const (
	WeightVolume    = 0.25
	WeightFrequency = 0.25
	WeightTemporal  = 0.20
	WeightNetwork   = 0.30
)

// CompositeScore recomputes total_score from the component scores
func CompositeScore(s RelationshipScore) float64 {
	base := s.VolumeScore*WeightVolume +
		s.FrequencyScore*WeightFrequency +
		s.TemporalScore*WeightTemporal +
		s.NetworkScore*WeightNetwork
	multiplier := 1 - clampScore(s.RiskScore)/200
	return math.Round(base*multiplier*100) / 100
}

// InterpretScore labels a 0-100 relationship score
func InterpretScore(score float64) string {
	switch {
	case score >= 80:
		return "very strong"
	case score >= 60:
		return "strong"
	case score >= 40:
		return "moderate"
	case score >= 20:
		return "weak"
	default:
		return "very weak"
	}
}

// normalizeScore fills a missing total and clamps every component
func normalizeScore(s *RelationshipScore) *RelationshipScore {
	if s == nil {
		return nil
	}
	out := RelationshipScore{
		VolumeScore:    clampScore(s.VolumeScore),
		FrequencyScore: clampScore(s.FrequencyScore),
		TemporalScore:  clampScore(s.TemporalScore),
		NetworkScore:   clampScore(s.NetworkScore),
		RiskScore:      clampScore(s.RiskScore),
		TotalScore:     clampScore(s.TotalScore),
	}
	if out.TotalScore == 0 {
		out.TotalScore = CompositeScore(out)
	}
	return &out
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
