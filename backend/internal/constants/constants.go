package constants

import "time"

// Traversal bounds
const (
	// MinDepth and MaxDepth bound every neighborhood traversal
	MinDepth = 1
	MaxDepth = 3
	// DefaultDepth applies when an HTTP caller leaves depth out
	DefaultDepth = 2

	// DefaultPathDepth is the hop budget for path searches when none is given
	DefaultPathDepth = 4
	// MaxPathDepth is the largest hop budget a path search accepts
	MaxPathDepth = 6

	// DefaultNeighborLimit caps neighbors per node when the caller gives no limit
	DefaultNeighborLimit = 50
	// MaxNeighborLimit is the hard fan-out ceiling
	MaxNeighborLimit = 1000
)

// Path search bounds
const (
	DefaultMaxPathResults = 100
	MaxPathResults        = 1000

	// MaxPathExpansions stops a path enumeration after this many DFS steps
	MaxPathExpansions = 200000

	// MaxReturnedPaths caps the path list attached to multi-hop results
	MaxReturnedPaths = 1000

	// DefaultRiskThreshold flags a hop as high risk above this score
	DefaultRiskThreshold = 70.0
)

// Metric computation bounds
const (
	// DampingFactor is the PageRank probability of following an edge
	DampingFactor = 0.85

	DefaultPageRankIterations = 20
	MaxPageRankIterations     = 100

	DefaultBetweennessSamples = 50
	MaxBetweennessSamples     = 1000

	DefaultLabelPropagationIterations = 20

	// MaxMetricNodes caps node sets handed to the set-based metrics
	MaxMetricNodes = 10000

	DefaultHubCount = 10
	MaxHubCount     = 500

	// HubCandidateFactor widens the store candidate pool for hub ranking
	HubCandidateFactor = 4
)

// Relationship score queries
const (
	DefaultTopRelationships = 10
	MaxTopRelationships     = 1000

	// Suspicious relationships need both scores above these
	DefaultSuspiciousVolumeScore = 70.0
	DefaultSuspiciousRiskScore   = 30.0
)

// Cache defaults
const (
	DefaultMaxMemoryItems       = 1000
	DefaultMemoryNodeThreshold  = 1000
	DefaultPromoteNodeThreshold = 5000

	TTLQuery   = 300 * time.Second
	TTLGraph   = 900 * time.Second
	TTLMetrics = 1800 * time.Second
	TTLScores  = 3600 * time.Second

	// WarmConcurrency bounds parallel loads during cache warming
	WarmConcurrency = 4
)
