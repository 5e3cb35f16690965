package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TestRepository requires a running Neo4j instance
// Set NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD environment variables
func TestRepository_ReadsSeededGraph(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	driver, err := createTestDriver()
	if err != nil {
		t.Skipf("Neo4j not reachable: %v", err)
	}
	defer driver.Close(ctx)

	prefix := "test-" + time.Now().Format("20060102150405") + "-"
	a, b, c := prefix+"A", prefix+"B", prefix+"C"

	// Clean up
	defer func() {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		_, _ = session.Run(ctx, "MATCH (a:Account) WHERE a.address STARTS WITH $prefix DETACH DELETE a", map[string]interface{}{"prefix": prefix})
	}()

	seed := func(query string, params map[string]interface{}) {
		session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
		defer session.Close(ctx)
		if _, err := session.Run(ctx, query, params); err != nil {
			t.Fatalf("Seeding failed: %v", err)
		}
	}
	seed(`
		UNWIND $accounts AS acc
		CREATE (:Account {address: acc.address, balance: acc.balance, risk_score: acc.risk,
			node_type: acc.type, degree: 2, in_degree: 1, out_degree: 1})`,
		map[string]interface{}{
			"accounts": []interface{}{
				map[string]interface{}{"address": a, "balance": "123456789012345678901", "risk": 10.0, "type": "regular"},
				map[string]interface{}{"address": b, "balance": "0", "risk": 85.0, "type": "exchange"},
				map[string]interface{}{"address": c, "balance": "7", "risk": 0.0, "type": "bogus"},
			},
		})
	seed(`
		MATCH (a:Account {address: $a}), (b:Account {address: $b}), (c:Account {address: $c})
		CREATE (a)-[:TRANSFERRED {total_volume: "1000000000000", transfer_count: 5,
			first_transfer_time: "2024-01-01T00:00:00Z", last_transfer_time: 1717200000,
			volume_score: 90.0, risk_score: 40.0, total_score: 55.0}]->(b)
		CREATE (b)-[:TRANSFERRED {total_volume: "900000000000", transfer_count: 2}]->(c)
		CREATE (c)-[:TRANSFERRED {total_volume: "800000000000", transfer_count: 1}]->(a)`,
		map[string]interface{}{"a": a, "b": b, "c": c})

	repo := NewRepository(driver, "")

	accounts, err := repo.Accounts(ctx, []string{a, b, c, prefix + "missing"})
	if err != nil {
		t.Fatalf("Accounts failed: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("Expected 3 accounts, got %d", len(accounts))
	}
	if accounts[a].Balance.String() != "123456789012345678901" {
		t.Errorf("Balance lost precision: %s", accounts[a].Balance)
	}
	if accounts[c].NodeType != NodeTypeRegular {
		t.Errorf("Expected unknown node type to map to regular, got %s", accounts[c].NodeType)
	}

	rels, err := repo.Relationships(ctx, RelationshipFilter{
		Addresses: []string{a},
		Scan:      ScanBoth,
		MinVolume: MustVolume("900000000000"),
	})
	if err != nil {
		t.Fatalf("Relationships failed: %v", err)
	}
	if len(rels) != 1 || rels[0].ToAddress != b {
		t.Fatalf("Expected only %s->%s above the threshold, got %+v", a, b, rels)
	}
	if rels[0].Score == nil || rels[0].Score.RiskScore != 40 {
		t.Errorf("Expected score to travel with the edge, got %+v", rels[0].Score)
	}
	if rels[0].FirstTransferTime.IsZero() || rels[0].LastTransferTime.IsZero() {
		t.Errorf("Expected transfer times to decode, got %v / %v", rels[0].FirstTransferTime, rels[0].LastTransferTime)
	}

	among, err := repo.RelationshipsAmong(ctx, []string{a, b})
	if err != nil {
		t.Fatalf("RelationshipsAmong failed: %v", err)
	}
	if len(among) != 1 {
		t.Errorf("Expected 1 relationship among {A,B}, got %d", len(among))
	}
}

func TestRepository_EmptyInputsSkipQueries(t *testing.T) {
	// A nil driver proves no session is opened
	repo := &Repository{}
	ctx := context.Background()

	accounts, err := repo.Accounts(ctx, nil)
	if err != nil || len(accounts) != 0 {
		t.Errorf("Expected empty result without error, got %v, %v", accounts, err)
	}
	rels, err := repo.Relationships(ctx, RelationshipFilter{})
	if err != nil || len(rels) != 0 {
		t.Errorf("Expected empty result without error, got %v, %v", rels, err)
	}
	rels, err = repo.RelationshipsAmong(ctx, []string{})
	if err != nil || len(rels) != 0 {
		t.Errorf("Expected empty result without error, got %v, %v", rels, err)
	}
}

func createTestDriver() (neo4j.DriverWithContext, error) {
	uri := getTestEnv("NEO4J_URI", "bolt://localhost:7687")
	user := getTestEnv("NEO4J_USER", "neo4j")
	password := getTestEnv("NEO4J_PASSWORD", "password")

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, err
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(context.Background())
		return nil, err
	}

	return driver, nil
}

func getTestEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
