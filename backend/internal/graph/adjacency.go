package graph

import (
	"context"
	"sort"
)

// Neighbor is an adjacent address with the relationships joining it to the
// node being expanded, in either direction.
type Neighbor struct {
	Address       string
	Direction     Direction
	Volume        Volume // summed over both directions
	TransferCount int
	Relationships []Relationship
}

// Adjacency is a per-query, in-memory view of the relationship store. Nodes
// are loaded frontier by frontier in batches, so a traversal issues one store
// read per hop instead of one per node. Not safe for concurrent use.
type Adjacency struct {
	store     Store
	minVolume Volume

	out       map[string][]Relationship
	in        map[string][]Relationship
	loadedOut map[string]bool
	loadedIn  map[string]bool

	accounts       map[string]Account
	loadedAccounts map[string]bool
}

// NewAdjacency creates an empty view that only admits relationships whose
// total volume is at least minVolume.
func NewAdjacency(store Store, minVolume Volume) *Adjacency {
	return &Adjacency{
		store:          store,
		minVolume:      minVolume,
		out:            make(map[string][]Relationship),
		in:             make(map[string][]Relationship),
		loadedOut:      make(map[string]bool),
		loadedIn:       make(map[string]bool),
		accounts:       make(map[string]Account),
		loadedAccounts: make(map[string]bool),
	}
}

// Load fetches relationships for every address not yet loaded in the requested direction
func (a *Adjacency) Load(ctx context.Context, addresses []string, scan Scan) error {
	var pending []string
	for _, addr := range addresses {
		needOut := scan != ScanIncoming && !a.loadedOut[addr]
		needIn := scan != ScanOutgoing && !a.loadedIn[addr]
		if needOut || needIn {
			pending = append(pending, addr)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	rels, err := a.store.Relationships(ctx, RelationshipFilter{
		Addresses: pending,
		Scan:      scan,
		MinVolume: a.minVolume,
	})
	if err != nil {
		return err
	}

	set := addressSet(pending)
	for _, r := range rels {
		if r.FromAddress == r.ToAddress {
			continue
		}
		if _, ok := set[r.FromAddress]; ok && scan != ScanIncoming && !a.loadedOut[r.FromAddress] {
			a.out[r.FromAddress] = append(a.out[r.FromAddress], r)
		}
		if _, ok := set[r.ToAddress]; ok && scan != ScanOutgoing && !a.loadedIn[r.ToAddress] {
			a.in[r.ToAddress] = append(a.in[r.ToAddress], r)
		}
	}
	for _, addr := range pending {
		if scan != ScanIncoming && !a.loadedOut[addr] {
			a.loadedOut[addr] = true
			sortRelationships(a.out[addr], addr)
		}
		if scan != ScanOutgoing && !a.loadedIn[addr] {
			a.loadedIn[addr] = true
			sortRelationships(a.in[addr], addr)
		}
	}
	return nil
}

// LoadAccounts fetches account attributes for addresses not yet seen
func (a *Adjacency) LoadAccounts(ctx context.Context, addresses []string) error {
	var pending []string
	for _, addr := range addresses {
		if !a.loadedAccounts[addr] {
			pending = append(pending, addr)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	accounts, err := a.store.Accounts(ctx, pending)
	if err != nil {
		return err
	}
	for _, addr := range pending {
		a.loadedAccounts[addr] = true
		if acc, ok := accounts[addr]; ok {
			a.accounts[addr] = acc
		}
	}
	return nil
}

// Account returns a loaded account; unknown addresses get a bare regular account
func (a *Adjacency) Account(address string) (Account, bool) {
	acc, ok := a.accounts[address]
	if !ok {
		return Account{Address: address, NodeType: NodeTypeRegular}, false
	}
	return acc, true
}

// Out returns loaded outgoing relationships, highest volume first
func (a *Adjacency) Out(address string) []Relationship {
	return a.out[address]
}

// In returns loaded incoming relationships, highest volume first
func (a *Adjacency) In(address string) []Relationship {
	return a.in[address]
}

// Neighbors merges loaded relationships in both directions per adjacent
// address, ordered by summed volume desc, transfer count desc, address asc.
// limit <= 0 returns every neighbor.
func (a *Adjacency) Neighbors(address string, limit int) []Neighbor {
	index := make(map[string]int)
	var neighbors []Neighbor

	add := func(r Relationship, dir Direction) {
		other := r.Other(address)
		i, ok := index[other]
		if !ok {
			index[other] = len(neighbors)
			neighbors = append(neighbors, Neighbor{Address: other, Direction: dir})
			i = len(neighbors) - 1
		} else if neighbors[i].Direction != dir {
			neighbors[i].Direction = DirectionBoth
		}
		n := &neighbors[i]
		n.Volume = n.Volume.Add(r.TotalVolume)
		n.TransferCount += r.TransferCount
		n.Relationships = append(n.Relationships, r)
	}
	for _, r := range a.out[address] {
		add(r, DirectionOutgoing)
	}
	for _, r := range a.in[address] {
		add(r, DirectionIncoming)
	}

	sort.Slice(neighbors, func(i, j int) bool {
		if c := neighbors[i].Volume.Cmp(neighbors[j].Volume); c != 0 {
			return c > 0
		}
		if neighbors[i].TransferCount != neighbors[j].TransferCount {
			return neighbors[i].TransferCount > neighbors[j].TransferCount
		}
		return neighbors[i].Address < neighbors[j].Address
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors
}

// sortRelationships orders by volume desc, transfer count desc, counterpart asc
func sortRelationships(rels []Relationship, address string) {
	sort.Slice(rels, func(i, j int) bool {
		if c := rels[i].TotalVolume.Cmp(rels[j].TotalVolume); c != 0 {
			return c > 0
		}
		if rels[i].TransferCount != rels[j].TransferCount {
			return rels[i].TransferCount > rels[j].TransferCount
		}
		return rels[i].Other(address) < rels[j].Other(address)
	})
}
