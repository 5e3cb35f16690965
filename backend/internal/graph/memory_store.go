package graph

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an embedded Store holding the whole graph in maps. It backs
// the "memory" store backend and the package tests. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account
	rels     map[EdgeKey]Relationship
	out      map[string][]EdgeKey
	in       map[string][]EdgeKey
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]Account),
		rels:     make(map[EdgeKey]Relationship),
		out:      make(map[string][]EdgeKey),
		in:       make(map[string][]EdgeKey),
	}
}

// PutAccount inserts or replaces an account
func (m *MemoryStore) PutAccount(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.NodeType == "" {
		a.NodeType = NodeTypeRegular
	}
	m.accounts[a.Address] = a
	m.refreshDegrees(a.Address)
}

// PutRelationship upserts a relationship, creating bare accounts for unseen
// endpoints and keeping the denormalized degree figures current.
func (m *MemoryStore) PutRelationship(r Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.TransferCount < 1 {
		r.TransferCount = 1
	}
	r.Score = normalizeScore(r.Score)

	key := r.Key()
	if _, exists := m.rels[key]; !exists {
		m.out[r.FromAddress] = append(m.out[r.FromAddress], key)
		m.in[r.ToAddress] = append(m.in[r.ToAddress], key)
	}
	m.rels[key] = r

	for _, addr := range []string{r.FromAddress, r.ToAddress} {
		if _, ok := m.accounts[addr]; !ok {
			m.accounts[addr] = Account{Address: addr, NodeType: NodeTypeRegular}
		}
	}
	m.refreshDegrees(r.FromAddress)
	m.refreshDegrees(r.ToAddress)
}

func (m *MemoryStore) refreshDegrees(addr string) {
	a := m.accounts[addr]
	a.OutDegree = len(m.out[addr])
	a.InDegree = len(m.in[addr])
	a.Degree = a.InDegree + a.OutDegree
	volOut, volIn := Volume{}, Volume{}
	for _, k := range m.out[addr] {
		volOut = volOut.Add(m.rels[k].TotalVolume)
	}
	for _, k := range m.in[addr] {
		volIn = volIn.Add(m.rels[k].TotalVolume)
	}
	a.TotalVolumeOut = volOut
	a.TotalVolumeIn = volIn
	m.accounts[addr] = a
}

// Accounts implements Store
func (m *MemoryStore) Accounts(ctx context.Context, addresses []string) (map[string]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Account, len(addresses))
	for _, addr := range addresses {
		if a, ok := m.accounts[addr]; ok {
			out[addr] = a
		}
	}
	return out, nil
}

// Relationships implements Store
func (m *MemoryStore) Relationships(ctx context.Context, filter RelationshipFilter) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[EdgeKey]struct{})
	rels := []Relationship{}
	collect := func(keys []EdgeKey) {
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if r := m.rels[k]; r.TotalVolume.Cmp(filter.MinVolume) >= 0 {
				rels = append(rels, r)
			}
		}
	}
	for _, addr := range filter.Addresses {
		if filter.Scan != ScanIncoming {
			collect(m.out[addr])
		}
		if filter.Scan != ScanOutgoing {
			collect(m.in[addr])
		}
	}
	return rels, nil
}

// RelationshipsAmong implements Store
func (m *MemoryStore) RelationshipsAmong(ctx context.Context, addresses []string) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := addressSet(addresses)
	rels := []Relationship{}
	for addr := range set {
		for _, k := range m.out[addr] {
			if _, ok := set[k.To]; ok {
				rels = append(rels, m.rels[k])
			}
		}
	}
	return rels, nil
}

// TopAccounts implements Store
func (m *MemoryStore) TopAccounts(ctx context.Context, limit int) ([]Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Degree != accounts[j].Degree {
			return accounts[i].Degree > accounts[j].Degree
		}
		return accounts[i].Address < accounts[j].Address
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

// TopRelationships implements Store
func (m *MemoryStore) TopRelationships(ctx context.Context, limit int) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rels := []Relationship{}
	for _, r := range m.rels {
		if r.Score != nil {
			rels = append(rels, r)
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Score.TotalScore != rels[j].Score.TotalScore {
			return rels[i].Score.TotalScore > rels[j].Score.TotalScore
		}
		return lessEdgeKey(rels[i].Key(), rels[j].Key())
	})
	if limit > 0 && len(rels) > limit {
		rels = rels[:limit]
	}
	return rels, nil
}

// SuspiciousRelationships implements Store
func (m *MemoryStore) SuspiciousRelationships(ctx context.Context, minVolumeScore, minRiskScore float64) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rels := []Relationship{}
	for _, r := range m.rels {
		if r.Score != nil && r.Score.VolumeScore > minVolumeScore && r.Score.RiskScore > minRiskScore {
			rels = append(rels, r)
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Score.RiskScore != rels[j].Score.RiskScore {
			return rels[i].Score.RiskScore > rels[j].Score.RiskScore
		}
		return lessEdgeKey(rels[i].Key(), rels[j].Key())
	})
	return rels, nil
}

func lessEdgeKey(a, b EdgeKey) bool {
	if a.From != b.From {
		return a.From < b.From
	}
	return a.To < b.To
}
