package graph

import (
	"fmt"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// ============================================================================
// Record Decoding
// ============================================================================

func accountFromRecord(record *neo4j.Record) (Account, error) {
	balance, err := getVolumeFromRecord(record, "balance")
	if err != nil {
		return Account{}, err
	}
	volIn, err := getVolumeFromRecord(record, "total_volume_in")
	if err != nil {
		return Account{}, err
	}
	volOut, err := getVolumeFromRecord(record, "total_volume_out")
	if err != nil {
		return Account{}, err
	}

	return Account{
		Address:         getStringFromRecord(record, "address"),
		Balance:         balance,
		IdentityDisplay: getStringFromRecord(record, "identity_display"),
		RiskScore:       clampScore(getFloat64FromRecord(record, "risk_score")),
		NodeType:        ParseNodeType(getStringFromRecord(record, "node_type")),
		Degree:          getIntFromRecord(record, "degree"),
		InDegree:        getIntFromRecord(record, "in_degree"),
		OutDegree:       getIntFromRecord(record, "out_degree"),
		TotalVolumeIn:   volIn,
		TotalVolumeOut:  volOut,
	}, nil
}

func relationshipFromRecord(record *neo4j.Record) (Relationship, error) {
	volume, err := getVolumeFromRecord(record, "total_volume")
	if err != nil {
		return Relationship{}, err
	}

	rel := Relationship{
		FromAddress:       getStringFromRecord(record, "from_address"),
		ToAddress:         getStringFromRecord(record, "to_address"),
		TotalVolume:       volume,
		TransferCount:     getIntFromRecord(record, "transfer_count"),
		FirstTransferTime: getTimeFromRecord(record, "first_transfer_time"),
		LastTransferTime:  getTimeFromRecord(record, "last_transfer_time"),
	}
	if rel.TransferCount < 1 {
		rel.TransferCount = 1
	}

	// Score columns are absent until the scoring job has visited the edge
	if val, ok := record.Get("total_score"); ok && val != nil {
		rel.Score = normalizeScore(&RelationshipScore{
			VolumeScore:    getFloat64FromRecord(record, "volume_score"),
			FrequencyScore: getFloat64FromRecord(record, "frequency_score"),
			TemporalScore:  getFloat64FromRecord(record, "temporal_score"),
			NetworkScore:   getFloat64FromRecord(record, "network_score"),
			RiskScore:      getFloat64FromRecord(record, "score_risk"),
			TotalScore:     getFloat64FromRecord(record, "total_score"),
		})
	}
	return rel, nil
}

// ============================================================================
// Helper Functions
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return int(i)
	}
	if i, ok := val.(int); ok {
		return i
	}
	if f, ok := val.(float64); ok {
		return int(f)
	}
	return 0
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

// getVolumeFromRecord accepts decimal strings (the canonical form) and integers
func getVolumeFromRecord(record *neo4j.Record, key string) (Volume, error) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return Volume{}, nil
	}
	switch v := val.(type) {
	case string:
		parsed, err := ParseVolume(v)
		if err != nil {
			return Volume{}, fmt.Errorf("column %s: %w", key, err)
		}
		return parsed, nil
	case int64:
		return VolumeFromInt64(v), nil
	default:
		return Volume{}, fmt.Errorf("column %s: unsupported volume type %T", key, val)
	}
}

// getTimeFromRecord handles native temporal values as well as ISO 8601 strings
// and unix seconds, which older ingestion runs wrote.
func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return time.Time{}
	}
	switch t := val.(type) {
	case time.Time:
		return t.UTC()
	case dbtype.LocalDateTime:
		return t.Time().UTC()
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.UTC()
		}
		if secs, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	case int64:
		return time.Unix(t, 0).UTC()
	}
	return time.Time{}
}
