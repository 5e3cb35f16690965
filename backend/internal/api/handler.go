// Package api exposes the query, path, metric and cache operations over HTTP.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/constants"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/metrics"
	"chain-graph/backend/internal/pathfinder"
	"chain-graph/backend/internal/queries"
	"chain-graph/backend/pkg/logger"
	apperrors "chain-graph/backend/pkg/errors"
)

// Handler serves the JSON routes. cache may be nil when caching is disabled.
type Handler struct {
	queries *queries.GraphQueries
	paths   *pathfinder.PathFinder
	metrics *metrics.GraphMetrics
	cache   *cache.Cache
	logger  *zap.Logger
}

// NewHandler wires the services behind the routes
func NewHandler(q *queries.GraphQueries, p *pathfinder.PathFinder, m *metrics.GraphMetrics, c *cache.Cache) *Handler {
	return &Handler{
		queries: q,
		paths:   p,
		metrics: m,
		cache:   c,
		logger:  logger.Named("api"),
	}
}

// Register mounts every route on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	{
		accounts := v1.Group("/accounts/:address")
		accounts.GET("/connections", h.directConnections)
		accounts.GET("/neighborhood", h.multiHopConnections)
		accounts.POST("/subgraph", h.subgraph)
		accounts.GET("/circular-flows", h.circularFlows)
		accounts.GET("/degree", h.degreeCentrality)
		accounts.GET("/clustering", h.clusteringCoefficient)

		paths := v1.Group("/paths")
		paths.GET("/shortest", h.shortestPath)
		paths.GET("/all", h.allPaths)
		paths.GET("/high-value", h.highValuePaths)
		paths.POST("/risk", h.pathRisk)

		m := v1.Group("/metrics")
		m.POST("/pagerank", h.pageRank)
		m.POST("/betweenness", h.betweenness)
		m.POST("/communities", h.communities)
		m.POST("/density", h.density)
		m.GET("/hubs", h.hubs)

		rels := v1.Group("/relationships")
		rels.GET("/top", h.topRelationships)
		rels.GET("/suspicious", h.suspiciousRelationships)

		c := v1.Group("/cache")
		c.GET("/stats", h.cacheStats)
		c.DELETE("/accounts/:address", h.invalidateAddress)
		c.POST("/warm", h.warmCache)
		c.POST("/clean", h.cleanCache)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "cache_enabled": h.cache != nil})
}

// ============================================================================
// Neighborhoods
// ============================================================================

func (h *Handler) neighborhoodOptions(c *gin.Context) (queries.Options, error) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return queries.Options{}, err
	}
	minVolume, err := queryVolume(c, "min_volume")
	if err != nil {
		return queries.Options{}, err
	}
	includePaths, err := queryBool(c, "include_paths")
	if err != nil {
		return queries.Options{}, err
	}
	return queries.Options{MinVolume: minVolume, Limit: limit, IncludePaths: includePaths}, nil
}

func (h *Handler) directConnections(c *gin.Context) {
	opts, err := h.neighborhoodOptions(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	g, err := h.queries.GetDirectConnections(c.Request.Context(), c.Param("address"), opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) multiHopConnections(c *gin.Context) {
	opts, err := h.neighborhoodOptions(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	depth := constants.DefaultDepth
	if c.Query("depth") != "" {
		if depth, err = queryInt(c, "depth"); err != nil {
			h.respondError(c, err)
			return
		}
	}
	g, err := h.queries.GetMultiHopConnections(c.Request.Context(), c.Param("address"), depth, opts)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type subgraphRequest struct {
	Depth          int                `json:"depth"`
	NodeTypes      []graph.NodeType   `json:"node_types"`
	RiskScoreRange *queries.RiskRange `json:"risk_score_range"`
	MinVolume      graph.Volume       `json:"min_volume"`
	Limit          int                `json:"limit"`
}

func (h *Handler) subgraph(c *gin.Context) {
	var req subgraphRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	if req.Depth == 0 {
		req.Depth = constants.DefaultDepth
	}
	g, err := h.queries.ExtractSubgraph(c.Request.Context(), c.Param("address"), req.Depth, queries.SubgraphOptions{
		NodeTypes:      req.NodeTypes,
		RiskScoreRange: req.RiskScoreRange,
		MinVolume:      req.MinVolume,
		Limit:          req.Limit,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) circularFlows(c *gin.Context) {
	maxDepth, err := queryInt(c, "max_depth")
	if err != nil {
		h.respondError(c, err)
		return
	}
	minVolume, err := queryVolume(c, "min_volume")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.queries.DetectCircularFlows(c.Request.Context(), c.Param("address"), maxDepth, minVolume)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ============================================================================
// Paths
// ============================================================================

func (h *Handler) shortestPath(c *gin.Context) {
	maxDepth, err := queryInt(c, "max_depth")
	if err != nil {
		h.respondError(c, err)
		return
	}
	weight, err := pathfinder.ParseWeightType(c.Query("weight_type"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.paths.FindShortestPath(c.Request.Context(), c.Query("from"), c.Query("to"), weight, maxDepth)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) allPaths(c *gin.Context) {
	maxDepth, err := queryInt(c, "max_depth")
	if err != nil {
		h.respondError(c, err)
		return
	}
	maxResults, err := queryInt(c, "max_results")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.paths.FindAllPaths(c.Request.Context(), c.Query("from"), c.Query("to"), maxDepth, maxResults)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) highValuePaths(c *gin.Context) {
	maxDepth, err := queryInt(c, "max_depth")
	if err != nil {
		h.respondError(c, err)
		return
	}
	minVolume, err := queryVolume(c, "min_volume")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.paths.FindHighValuePaths(c.Request.Context(), c.Query("from"), c.Query("to"), minVolume, maxDepth)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) pathRisk(c *gin.Context) {
	var req struct {
		Path []string `json:"path"`
	}
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.paths.AnalyzePathRisk(c.Request.Context(), req.Path)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ============================================================================
// Metrics
// ============================================================================

func (h *Handler) degreeCentrality(c *gin.Context) {
	res, err := h.metrics.CalculateDegreeCentrality(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) clusteringCoefficient(c *gin.Context) {
	res, err := h.metrics.CalculateClusteringCoefficient(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type nodeSetRequest struct {
	Nodes      []string `json:"nodes"`
	Iterations int      `json:"iterations"`
	SampleSize int      `json:"sample_size"`
	Method     string   `json:"method"`
}

func (h *Handler) pageRank(c *gin.Context) {
	var req nodeSetRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.CalculatePageRank(c.Request.Context(), req.Nodes, req.Iterations)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) betweenness(c *gin.Context) {
	var req nodeSetRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.CalculateBetweennessCentrality(c.Request.Context(), req.Nodes, req.SampleSize)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) communities(c *gin.Context) {
	var req nodeSetRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.DetectCommunities(c.Request.Context(), req.Nodes, req.Method)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) density(c *gin.Context) {
	var req nodeSetRequest
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.CalculateGraphDensity(c.Request.Context(), req.Nodes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) hubs(c *gin.Context) {
	topN, err := queryInt(c, "top_n")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.IdentifyHubs(c.Request.Context(), topN)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hubs": res, "count": len(res)})
}

func (h *Handler) topRelationships(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.TopRelationships(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": res, "count": len(res)})
}

func (h *Handler) suspiciousRelationships(c *gin.Context) {
	minVolume, err := queryFloat(c, "min_volume_score", constants.DefaultSuspiciousVolumeScore)
	if err != nil {
		h.respondError(c, err)
		return
	}
	minRisk, err := queryFloat(c, "min_risk_score", constants.DefaultSuspiciousRiskScore)
	if err != nil {
		h.respondError(c, err)
		return
	}
	res, err := h.metrics.SuspiciousRelationships(c.Request.Context(), minVolume, minRisk)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": res, "count": len(res)})
}

// ============================================================================
// Cache
// ============================================================================

// requireCache answers 503 when caching is switched off
func (h *Handler) requireCache(c *gin.Context) bool {
	if h.cache == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Cache is disabled", "request_id": requestID(c)})
		return false
	}
	return true
}

func (h *Handler) cacheStats(c *gin.Context) {
	if !h.requireCache(c) {
		return
	}
	c.JSON(http.StatusOK, h.cache.GetCacheStats())
}

func (h *Handler) invalidateAddress(c *gin.Context) {
	if !h.requireCache(c) {
		return
	}
	address := c.Param("address")
	removed := h.cache.InvalidateAddress(address)
	h.logger.Info("Invalidated cached address",
		zap.String("address", address),
		zap.Int("removed", removed),
		zap.String("request_id", requestID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"address": address, "removed": removed})
}

func (h *Handler) warmCache(c *gin.Context) {
	if !h.requireCache(c) {
		return
	}
	var req struct {
		Addresses []string `json:"addresses"`
	}
	if err := bindJSON(c, &req); err != nil {
		h.respondError(c, err)
		return
	}
	for _, addr := range req.Addresses {
		if addr == "" {
			h.respondError(c, apperrors.NewValidation("addresses", "Addresses must not be empty"))
			return
		}
	}
	h.cache.AddWarmAddresses(req.Addresses...)

	loaded, err := h.cache.WarmCache(c.Request.Context(), h.queries)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": loaded, "warm_addresses": h.cache.WarmAddresses()})
}

func (h *Handler) cleanCache(c *gin.Context) {
	if !h.requireCache(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": h.cache.CleanExpiredEntries()})
}
