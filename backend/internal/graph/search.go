package graph

import (
	"container/heap"
	"context"
)

// CostFunc prices the traversal of r into its destination account. It must
// return a strictly positive value; that keeps every optimal path simple.
type CostFunc func(r Relationship, to Account) float64

// UnitCost counts hops
func UnitCost(Relationship, Account) float64 { return 1 }

// SearchOptions configures ShortestPath
type SearchOptions struct {
	MaxDepth int
	Cost     CostFunc
	// NeedAccounts loads destination accounts before pricing (risk weighting)
	NeedAccounts bool
}

// SearchResult is the outcome of a path search
type SearchResult struct {
	Found         bool
	Path          []string
	Relationships []Relationship
	Cost          float64
	// Expanded counts settled search states, for logging
	Expanded int
}

// label is one search state: reaching node after hops edges at cost
type label struct {
	node   string
	hops   int
	cost   float64
	parent int // arena index, -1 for the source
	rel    Relationship
	seq    int
}

type labelHeap struct {
	arena []label
	items []int
}

func (h *labelHeap) Len() int { return len(h.items) }
func (h *labelHeap) Less(i, j int) bool {
	a, b := h.arena[h.items[i]], h.arena[h.items[j]]
	if a.cost != b.cost {
		return a.cost < b.cost
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	if a.node != b.node {
		return a.node < b.node
	}
	return a.seq < b.seq
}
func (h *labelHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *labelHeap) Push(x any)   { h.items = append(h.items, x.(int)) }
func (h *labelHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

// ShortestPath runs a hop-bounded Dijkstra over outgoing relationships from
// `from` to `to`. States are (node, hops) pairs kept in an arena; a state is
// discarded when another state at the same node already reached it with no
// more hops and no more cost. With UnitCost the search order is plain BFS.
func ShortestPath(ctx context.Context, adj *Adjacency, from, to string, opts SearchOptions) (SearchResult, error) {
	cost := opts.Cost
	if cost == nil {
		cost = UnitCost
	}

	h := &labelHeap{}
	push := func(l label) {
		l.seq = len(h.arena)
		h.arena = append(h.arena, l)
		heap.Push(h, l.seq)
	}
	push(label{node: from, parent: -1})

	type settled struct {
		hops int
		cost float64
	}
	done := make(map[string][]settled)
	result := SearchResult{}

	for h.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		idx := heap.Pop(h).(int)
		cur := h.arena[idx]

		dominated := false
		for _, s := range done[cur.node] {
			if s.hops <= cur.hops && s.cost <= cur.cost {
				dominated = true
				break
			}
		}
		if dominated {
			continue
		}
		done[cur.node] = append(done[cur.node], settled{hops: cur.hops, cost: cur.cost})
		result.Expanded++

		if cur.node == to && cur.hops > 0 {
			result.Found = true
			result.Cost = cur.cost
			result.Path, result.Relationships = unwind(h.arena, idx)
			return result, nil
		}
		if cur.hops >= opts.MaxDepth {
			continue
		}

		if err := adj.Load(ctx, []string{cur.node}, ScanOutgoing); err != nil {
			return result, err
		}
		rels := adj.Out(cur.node)
		if opts.NeedAccounts {
			targets := make([]string, 0, len(rels))
			for _, r := range rels {
				targets = append(targets, r.ToAddress)
			}
			if err := adj.LoadAccounts(ctx, targets); err != nil {
				return result, err
			}
		}

		for _, r := range rels {
			next := r.ToAddress
			if onPath(h.arena, idx, next) {
				continue
			}
			acc, _ := adj.Account(next)
			push(label{
				node:   next,
				hops:   cur.hops + 1,
				cost:   cur.cost + cost(r, acc),
				parent: idx,
				rel:    r,
			})
		}
	}
	return result, nil
}

// onPath walks the parent chain of idx looking for node
func onPath(arena []label, idx int, node string) bool {
	for i := idx; i >= 0; i = arena[i].parent {
		if arena[i].node == node {
			return true
		}
	}
	return false
}

func unwind(arena []label, idx int) ([]string, []Relationship) {
	var path []string
	var rels []Relationship
	for i := idx; i >= 0; i = arena[i].parent {
		path = append(path, arena[i].node)
		if arena[i].parent >= 0 {
			rels = append(rels, arena[i].rel)
		}
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	for l, r := 0, len(rels)-1; l < r; l, r = l+1, r-1 {
		rels[l], rels[r] = rels[r], rels[l]
	}
	return path, rels
}

// Bottleneck returns the minimum total volume across rels (zero for none)
func Bottleneck(rels []Relationship) Volume {
	if len(rels) == 0 {
		return Volume{}
	}
	min := rels[0].TotalVolume
	for _, r := range rels[1:] {
		min = min.Min(r.TotalVolume)
	}
	return min
}
