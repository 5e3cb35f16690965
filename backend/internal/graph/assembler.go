package graph

import "sort"

// Assembler collects nodes and edges for a result graph, deduplicating nodes
// by address and edges by (from, to). Build derives per-node degrees and the
// graph summary from the assembled edge set only, so every query reports
// metrics the same way regardless of what the store holds beyond the result.
type Assembler struct {
	center string
	nodes  map[string]*Node
	order  []string
	edges  map[EdgeKey]Edge
}

// NewAssembler starts a graph around center (may be empty for path results)
func NewAssembler(center string) *Assembler {
	return &Assembler{
		center: center,
		nodes:  make(map[string]*Node),
		edges:  make(map[EdgeKey]Edge),
	}
}

// AddNode inserts n or merges it into the existing node: the lower hop level
// wins, path counts accumulate only when set, and a direction seen from both
// sides becomes DirectionBoth.
func (a *Assembler) AddNode(n Node) {
	existing, ok := a.nodes[n.Address]
	if !ok {
		node := n
		a.nodes[n.Address] = &node
		a.order = append(a.order, n.Address)
		return
	}
	if n.HopLevel < existing.HopLevel {
		existing.HopLevel = n.HopLevel
	}
	if n.PathCount > existing.PathCount {
		existing.PathCount = n.PathCount
	}
	switch {
	case existing.Direction == "":
		existing.Direction = n.Direction
	case n.Direction != "" && n.Direction != existing.Direction:
		existing.Direction = DirectionBoth
	}
}

// HasNode reports whether address was added
func (a *Assembler) HasNode(address string) bool {
	_, ok := a.nodes[address]
	return ok
}

// RemoveNode drops a node and every edge touching it
func (a *Assembler) RemoveNode(address string) {
	if _, ok := a.nodes[address]; !ok {
		return
	}
	delete(a.nodes, address)
	for k := range a.edges {
		if k.From == address || k.To == address {
			delete(a.edges, k)
		}
	}
}

// AddEdge inserts a relationship once per (from, to)
func (a *Assembler) AddEdge(r Relationship) {
	if r.FromAddress == r.ToAddress {
		return
	}
	if _, ok := a.edges[r.Key()]; ok {
		return
	}
	a.edges[r.Key()] = EdgeFromRelationship(r)
}

// Nodes returns the current nodes in insertion order
func (a *Assembler) Nodes() []*Node {
	out := make([]*Node, 0, len(a.nodes))
	for _, addr := range a.order {
		if n, ok := a.nodes[addr]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Build produces the graph. Edges whose endpoints were not both added are
// dropped. Nodes are ordered center first, then by hop level and address;
// edges by volume desc, then (from, to).
func (a *Assembler) Build() *Graph {
	g := EmptyGraph(a.center)

	degrees := make(map[string][2]int, len(a.nodes))
	total := Volume{}
	for k, e := range a.edges {
		_, fromOK := a.nodes[k.From]
		_, toOK := a.nodes[k.To]
		if !fromOK || !toOK {
			continue
		}
		g.Edges = append(g.Edges, e)
		total = total.Add(e.TotalVolume)
		d := degrees[k.From]
		d[1]++
		degrees[k.From] = d
		d = degrees[k.To]
		d[0]++
		degrees[k.To] = d
	}

	for _, n := range a.Nodes() {
		node := *n
		d := degrees[node.Address]
		node.InDegree, node.OutDegree = d[0], d[1]
		node.Degree = d[0] + d[1]
		g.Nodes = append(g.Nodes, node)
	}

	sort.SliceStable(g.Nodes, func(i, j int) bool {
		ni, nj := g.Nodes[i], g.Nodes[j]
		if (ni.Address == a.center) != (nj.Address == a.center) {
			return ni.Address == a.center
		}
		if ni.HopLevel != nj.HopLevel {
			return ni.HopLevel < nj.HopLevel
		}
		return ni.Address < nj.Address
	})
	sort.Slice(g.Edges, func(i, j int) bool {
		if c := g.Edges[i].TotalVolume.Cmp(g.Edges[j].TotalVolume); c != 0 {
			return c > 0
		}
		return lessEdgeKey(EdgeKey{g.Edges[i].From, g.Edges[i].To}, EdgeKey{g.Edges[j].From, g.Edges[j].To})
	})

	g.Summary = Summary{
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
		TotalVolume: total,
	}
	if len(g.Nodes) > 0 {
		g.Summary.AvgDegree = float64(2*len(g.Edges)) / float64(len(g.Nodes))
	}
	return g
}
