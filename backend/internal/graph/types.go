package graph

import "time"

// ============================================================================
// Stored Types
// ============================================================================

// NodeType classifies an account
type NodeType string

const (
	NodeTypeRegular   NodeType = "regular"
	NodeTypeExchange  NodeType = "exchange"
	NodeTypeValidator NodeType = "validator"
	NodeTypeCenter    NodeType = "center"
)

// ParseNodeType maps stored labels onto the known node types, defaulting to regular
func ParseNodeType(s string) NodeType {
	switch NodeType(s) {
	case NodeTypeExchange, NodeTypeValidator, NodeTypeCenter:
		return NodeType(s)
	default:
		return NodeTypeRegular
	}
}

// Account is a chain address as persisted by the ingestion pipeline
type Account struct {
	Address         string   `json:"address"`
	Balance         Volume   `json:"balance"`
	IdentityDisplay string   `json:"identity_display,omitempty"`
	RiskScore       float64  `json:"risk_score"`
	NodeType        NodeType `json:"node_type"`

	// Denormalized by the ingestion pipeline
	Degree         int    `json:"degree"`
	InDegree       int    `json:"in_degree"`
	OutDegree      int    `json:"out_degree"`
	TotalVolumeIn  Volume `json:"total_volume_in"`
	TotalVolumeOut Volume `json:"total_volume_out"`
}

// RelationshipScore is the per-edge score tuple written by the scoring job
type RelationshipScore struct {
	VolumeScore    float64 `json:"volume_score"`
	FrequencyScore float64 `json:"frequency_score"`
	TemporalScore  float64 `json:"temporal_score"`
	NetworkScore   float64 `json:"network_score"`
	RiskScore      float64 `json:"risk_score"`
	TotalScore     float64 `json:"total_score"`
}

// Relationship aggregates every transfer from one address to another
type Relationship struct {
	FromAddress       string             `json:"from_address"`
	ToAddress         string             `json:"to_address"`
	TotalVolume       Volume             `json:"total_volume"`
	TransferCount     int                `json:"transfer_count"`
	FirstTransferTime time.Time          `json:"first_transfer_time"`
	LastTransferTime  time.Time          `json:"last_transfer_time"`
	Score             *RelationshipScore `json:"score,omitempty"`
}

// Key returns the (from, to) identity of the relationship
func (r Relationship) Key() EdgeKey {
	return EdgeKey{From: r.FromAddress, To: r.ToAddress}
}

// Other returns the endpoint opposite to address
func (r Relationship) Other(address string) string {
	if r.FromAddress == address {
		return r.ToAddress
	}
	return r.FromAddress
}

// EdgeKey identifies a directed relationship
type EdgeKey struct {
	From string
	To   string
}

// ============================================================================
// Result Types
// ============================================================================

// Direction of a neighbor relative to the queried center
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionBoth     Direction = "both"
)

// Node is an account shaped for a graph result
type Node struct {
	Address         string    `json:"address"`
	Balance         Volume    `json:"balance"`
	IdentityDisplay string    `json:"identity_display,omitempty"`
	RiskScore       float64   `json:"risk_score"`
	NodeType        NodeType  `json:"node_type"`
	Direction       Direction `json:"direction,omitempty"`
	HopLevel        int       `json:"hop_level"`
	PathCount       int       `json:"path_count,omitempty"`

	// Computed from the assembled edge set
	Degree    int `json:"degree"`
	InDegree  int `json:"in_degree"`
	OutDegree int `json:"out_degree"`

	TotalVolumeIn  Volume `json:"total_volume_in"`
	TotalVolumeOut Volume `json:"total_volume_out"`
}

// NodeFromAccount copies stored attributes into a result node
func NodeFromAccount(a Account) Node {
	return Node{
		Address:         a.Address,
		Balance:         a.Balance,
		IdentityDisplay: a.IdentityDisplay,
		RiskScore:       a.RiskScore,
		NodeType:        a.NodeType,
		TotalVolumeIn:   a.TotalVolumeIn,
		TotalVolumeOut:  a.TotalVolumeOut,
	}
}

// Edge is a relationship shaped for a graph result
type Edge struct {
	From              string             `json:"from"`
	To                string             `json:"to"`
	TotalVolume       Volume             `json:"total_volume"`
	TransferCount     int                `json:"transfer_count"`
	FirstTransferTime time.Time          `json:"first_transfer_time"`
	LastTransferTime  time.Time          `json:"last_transfer_time"`
	Score             *RelationshipScore `json:"score,omitempty"`
}

// EdgeFromRelationship converts a stored relationship
func EdgeFromRelationship(r Relationship) Edge {
	return Edge{
		From:              r.FromAddress,
		To:                r.ToAddress,
		TotalVolume:       r.TotalVolume,
		TransferCount:     r.TransferCount,
		FirstTransferTime: r.FirstTransferTime,
		LastTransferTime:  r.LastTransferTime,
		Score:             r.Score,
	}
}

// Summary holds graph-level figures computed during assembly
type Summary struct {
	NodeCount   int     `json:"node_count"`
	EdgeCount   int     `json:"edge_count"`
	AvgDegree   float64 `json:"avg_degree"`
	TotalVolume Volume  `json:"total_volume"`
}

// Graph is the node/edge shape every traversal returns
type Graph struct {
	Center  string  `json:"center,omitempty"`
	Depth   int     `json:"depth,omitempty"`
	Nodes   []Node  `json:"nodes"`
	Edges   []Edge  `json:"edges"`
	Summary Summary `json:"summary"`

	// Paths lists the simple paths explored by a multi-hop query when requested
	Paths [][]string `json:"paths,omitempty"`
}

// NodeCount is used by the cache to choose a tier
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EmptyGraph returns a graph with non-nil, empty collections
func EmptyGraph(center string) *Graph {
	return &Graph{Center: center, Nodes: []Node{}, Edges: []Edge{}}
}
