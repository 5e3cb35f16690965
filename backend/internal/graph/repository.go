package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"chain-graph/backend/pkg/logger"
	apperrors "chain-graph/backend/pkg/errors"
)

// Repository reads accounts and relationships from Neo4j.
//
// Schema (owned by the ingestion pipeline):
//
//	(:Account {address, balance, identity_display, risk_score, node_type,
//	           degree, in_degree, out_degree, total_volume_in, total_volume_out})
//	(:Account)-[:TRANSFERRED {total_volume, transfer_count, first_transfer_time,
//	           last_transfer_time, volume_score, frequency_score, temporal_score,
//	           network_score, risk_score, total_score}]->(:Account)
//
// Volumes and balances are stored as decimal strings, so volume thresholds are
// applied after the rows are decoded rather than inside Cypher.
type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewRepository creates a new graph repository
func NewRepository(driver neo4j.DriverWithContext, database string) *Repository {
	return &Repository{
		driver:   driver,
		database: database,
		logger:   logger.Named("graph.repository"),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

const accountColumns = `
	a.address AS address,
	a.balance AS balance,
	a.identity_display AS identity_display,
	a.risk_score AS risk_score,
	a.node_type AS node_type,
	a.degree AS degree,
	a.in_degree AS in_degree,
	a.out_degree AS out_degree,
	a.total_volume_in AS total_volume_in,
	a.total_volume_out AS total_volume_out`

const relationshipColumns = `
	a.address AS from_address,
	b.address AS to_address,
	r.total_volume AS total_volume,
	r.transfer_count AS transfer_count,
	r.first_transfer_time AS first_transfer_time,
	r.last_transfer_time AS last_transfer_time,
	r.volume_score AS volume_score,
	r.frequency_score AS frequency_score,
	r.temporal_score AS temporal_score,
	r.network_score AS network_score,
	r.risk_score AS score_risk,
	r.total_score AS total_score`

// Accounts looks up accounts by address
func (r *Repository) Accounts(ctx context.Context, addresses []string) (map[string]Account, error) {
	out := make(map[string]Account, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	query := `
		MATCH (a:Account)
		WHERE a.address IN $addresses
		RETURN ` + accountColumns

	records, err := r.read(ctx, "accounts", query, map[string]interface{}{
		"addresses": addresses,
	})
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		account, err := accountFromRecord(record)
		if err != nil {
			return nil, apperrors.NewStorage("accounts", err)
		}
		out[account.Address] = account
	}
	return out, nil
}

// Relationships reads relationships touching the address set
func (r *Repository) Relationships(ctx context.Context, filter RelationshipFilter) ([]Relationship, error) {
	if len(filter.Addresses) == 0 {
		return []Relationship{}, nil
	}

	var where string
	switch filter.Scan {
	case ScanOutgoing:
		where = "a.address IN $addresses"
	case ScanIncoming:
		where = "b.address IN $addresses"
	default:
		where = "a.address IN $addresses OR b.address IN $addresses"
	}

	query := `
		MATCH (a:Account)-[r:TRANSFERRED]->(b:Account)
		WHERE ` + where + `
		RETURN ` + relationshipColumns

	rels, err := r.readRelationships(ctx, "relationships", query, map[string]interface{}{
		"addresses": filter.Addresses,
	})
	if err != nil {
		return nil, err
	}

	kept := rels[:0]
	for _, rel := range rels {
		if rel.TotalVolume.Cmp(filter.MinVolume) >= 0 {
			kept = append(kept, rel)
		}
	}
	return kept, nil
}

// RelationshipsAmong reads relationships with both endpoints in the address set
func (r *Repository) RelationshipsAmong(ctx context.Context, addresses []string) ([]Relationship, error) {
	if len(addresses) == 0 {
		return []Relationship{}, nil
	}

	query := `
		MATCH (a:Account)-[r:TRANSFERRED]->(b:Account)
		WHERE a.address IN $addresses AND b.address IN $addresses
		RETURN ` + relationshipColumns

	return r.readRelationships(ctx, "relationships_among", query, map[string]interface{}{
		"addresses": addresses,
	})
}

// TopAccounts returns the highest-degree accounts
func (r *Repository) TopAccounts(ctx context.Context, limit int) ([]Account, error) {
	if limit < 1 {
		limit = 10
	}

	query := `
		MATCH (a:Account)
		RETURN ` + accountColumns + `
		ORDER BY coalesce(a.degree, 0) DESC, a.address ASC
		LIMIT $limit`

	records, err := r.read(ctx, "top_accounts", query, map[string]interface{}{
		"limit": int64(limit),
	})
	if err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(records))
	for _, record := range records {
		account, err := accountFromRecord(record)
		if err != nil {
			return nil, apperrors.NewStorage("top_accounts", err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// TopRelationships returns relationships ordered by total score
func (r *Repository) TopRelationships(ctx context.Context, limit int) ([]Relationship, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		MATCH (a:Account)-[r:TRANSFERRED]->(b:Account)
		WHERE r.total_score IS NOT NULL
		RETURN ` + relationshipColumns + `
		ORDER BY r.total_score DESC, a.address ASC, b.address ASC
		LIMIT $limit`

	return r.readRelationships(ctx, "top_relationships", query, map[string]interface{}{
		"limit": int64(limit),
	})
}

// SuspiciousRelationships returns high-volume, high-risk relationships
func (r *Repository) SuspiciousRelationships(ctx context.Context, minVolumeScore, minRiskScore float64) ([]Relationship, error) {
	query := `
		MATCH (a:Account)-[r:TRANSFERRED]->(b:Account)
		WHERE r.volume_score > $minVolumeScore AND r.risk_score > $minRiskScore
		RETURN ` + relationshipColumns + `
		ORDER BY r.risk_score DESC, a.address ASC, b.address ASC`

	return r.readRelationships(ctx, "suspicious_relationships", query, map[string]interface{}{
		"minVolumeScore": minVolumeScore,
		"minRiskScore":   minRiskScore,
	})
}

// read runs a read-only query and collects every record
func (r *Repository) read(ctx context.Context, op, query string, params map[string]interface{}) ([]*neo4j.Record, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.database,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		r.logger.Warn("Graph query failed", zap.String("op", op), zap.Error(err))
		return nil, apperrors.NewStorage(op, fmt.Errorf("failed to execute query: %w", err))
	}

	records, err := result.Collect(ctx)
	if err != nil {
		r.logger.Warn("Graph query failed", zap.String("op", op), zap.Error(err))
		return nil, apperrors.NewStorage(op, fmt.Errorf("failed to fetch records: %w", err))
	}

	r.logger.Debug("Graph query",
		zap.String("op", op),
		zap.Int("records", len(records)),
	)
	return records, nil
}

func (r *Repository) readRelationships(ctx context.Context, op, query string, params map[string]interface{}) ([]Relationship, error) {
	records, err := r.read(ctx, op, query, params)
	if err != nil {
		return nil, err
	}

	rels := make([]Relationship, 0, len(records))
	for _, record := range records {
		rel, err := relationshipFromRecord(record)
		if err != nil {
			return nil, apperrors.NewStorage(op, err)
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
