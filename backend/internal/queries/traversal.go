package queries

import (
	"context"

	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
)

// traversal is the outcome of a bounded breadth-first expansion around a center
type traversal struct {
	center    graph.Account
	found     bool
	hop       map[string]int
	direction map[string]graph.Direction
	// order lists discovered addresses, center excluded, in discovery order
	order []string
	// expanded holds the fan-out-limited neighbors of every expanded node
	expanded map[string][]graph.Neighbor
}

// expand walks up to depth hops from center in both directions, one store
// read per hop. Each node contributes at most limit neighbors.
func expand(ctx context.Context, adj *graph.Adjacency, center string, depth, limit int) (*traversal, error) {
	if err := adj.LoadAccounts(ctx, []string{center}); err != nil {
		return nil, err
	}
	acc, found := adj.Account(center)
	t := &traversal{
		center:    acc,
		found:     found,
		hop:       map[string]int{center: 0},
		direction: make(map[string]graph.Direction),
		expanded:  make(map[string][]graph.Neighbor),
	}
	if !found {
		return t, nil
	}

	frontier := []string{center}
	for level := 1; level <= depth && len(frontier) > 0; level++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := adj.Load(ctx, frontier, graph.ScanBoth); err != nil {
			return nil, err
		}

		var next []string
		for _, addr := range frontier {
			neighbors := adj.Neighbors(addr, limit)
			t.expanded[addr] = neighbors
			for _, n := range neighbors {
				if _, seen := t.hop[n.Address]; seen {
					continue
				}
				t.hop[n.Address] = level
				t.direction[n.Address] = n.Direction
				t.order = append(t.order, n.Address)
				next = append(next, n.Address)
			}
		}
		frontier = next
	}

	if err := adj.LoadAccounts(ctx, t.order); err != nil {
		return nil, err
	}
	return t, nil
}

// pathWalk holds simple-path statistics over the expanded neighborhood
type pathWalk struct {
	counts    map[string]int
	paths     [][]string
	truncated bool
}

// walkPaths enumerates simple paths of length 1..depth from the center along
// expanded neighbors, counting paths per end node. Enumeration stops after
// MaxPathExpansions steps; counts are then lower bounds.
func (t *traversal) walkPaths(depth int, collect bool) pathWalk {
	w := pathWalk{counts: make(map[string]int)}
	budget := constants.MaxPathExpansions

	center := t.center.Address
	path := []string{center}
	onPath := map[string]bool{center: true}

	var visit func(addr string)
	visit = func(addr string) {
		if len(path)-1 >= depth {
			return
		}
		for _, n := range t.expanded[addr] {
			if budget == 0 {
				w.truncated = true
				return
			}
			budget--
			if onPath[n.Address] {
				continue
			}
			path = append(path, n.Address)
			onPath[n.Address] = true

			w.counts[n.Address]++
			if collect && len(w.paths) < constants.MaxReturnedPaths {
				w.paths = append(w.paths, append([]string(nil), path...))
			}
			visit(n.Address)

			onPath[n.Address] = false
			path = path[:len(path)-1]
		}
	}
	visit(center)
	return w
}

// nodes shapes every discovered account as a result node
func (t *traversal) nodes(adj *graph.Adjacency) []graph.Node {
	out := make([]graph.Node, 0, len(t.order)+1)
	out = append(out, centerNode(t.center))
	for _, addr := range t.order {
		acc, _ := adj.Account(addr)
		n := graph.NodeFromAccount(acc)
		n.HopLevel = t.hop[addr]
		n.Direction = t.direction[addr]
		out = append(out, n)
	}
	return out
}

// addresses returns the center followed by every discovered address
func (t *traversal) addresses() []string {
	return append([]string{t.center.Address}, t.order...)
}
