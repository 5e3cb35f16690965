package graph

import (
	"context"
)

// Scan selects which side of a relationship must match the address set
type Scan int

const (
	// ScanOutgoing matches relationships whose from_address is in the set
	ScanOutgoing Scan = iota + 1
	// ScanIncoming matches relationships whose to_address is in the set
	ScanIncoming
	// ScanBoth matches either side
	ScanBoth
)

// RelationshipFilter narrows a relationship read
type RelationshipFilter struct {
	Addresses []string
	Scan      Scan
	// MinVolume drops relationships whose total_volume is below it
	MinVolume Volume
}

// Store is the read contract the engine needs from the persistence layer.
// Implementations return *errors.ErrStorage for every failure; an unknown
// address is never an error.
type Store interface {
	// Accounts looks up accounts by address; unknown addresses are absent from the map
	Accounts(ctx context.Context, addresses []string) (map[string]Account, error)
	// Relationships reads relationships touching the address set
	Relationships(ctx context.Context, filter RelationshipFilter) ([]Relationship, error)
	// RelationshipsAmong reads relationships with both endpoints in the address set
	RelationshipsAmong(ctx context.Context, addresses []string) ([]Relationship, error)
	// TopAccounts returns accounts ordered by degree desc, address asc
	TopAccounts(ctx context.Context, limit int) ([]Account, error)
	// TopRelationships returns scored relationships ordered by total score desc
	TopRelationships(ctx context.Context, limit int) ([]Relationship, error)
	// SuspiciousRelationships returns relationships whose volume and risk scores
	// both exceed the thresholds, ordered by risk score desc
	SuspiciousRelationships(ctx context.Context, minVolumeScore, minRiskScore float64) ([]Relationship, error)
}

// LookupAccount fetches a single account; found is false for unknown addresses
func LookupAccount(ctx context.Context, s Store, address string) (Account, bool, error) {
	accounts, err := s.Accounts(ctx, []string{address})
	if err != nil {
		return Account{}, false, err
	}
	a, ok := accounts[address]
	return a, ok, nil
}

// addressSet builds a lookup set
func addressSet(addresses []string) map[string]struct{} {
	set := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		set[a] = struct{}{}
	}
	return set
}
