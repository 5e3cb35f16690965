package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chain-graph/backend/internal/api"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/metrics"
	"chain-graph/backend/internal/pathfinder"
	"chain-graph/backend/internal/queries"
	"chain-graph/backend/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:                       "test",
		StoreBackend:              "memory",
		CacheEnabled:              true,
		CacheMaxMemoryItems:       100,
		CacheMemoryNodeThreshold:  1000,
		CachePromoteNodeThreshold: 5000,
		TTLQuery:                  time.Minute,
		TTLGraph:                  time.Minute,
		TTLMetrics:                time.Minute,
		TTLScores:                 time.Minute,
		RiskThreshold:             70,
		QueryTimeout:              time.Second,
		MetricsTimeout:            time.Second,
	}
}

func TestOpenStore_Memory(t *testing.T) {
	store, closeStore, err := openStore(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	defer closeStore()
	_, ok := store.(*graph.MemoryStore)
	assert.True(t, ok)
}

func TestOpenCache(t *testing.T) {
	cfg := testConfig()
	cfg.CacheEnabled = false
	c, err := openCache(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	cfg.CacheEnabled = true
	cfg.CacheWarmAddresses = []string{"A"}
	c, err = openCache(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close()
	assert.Equal(t, []string{"A"}, c.WarmAddresses())
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig()

	store := graph.NewMemoryStore()
	store.PutRelationship(graph.Relationship{
		FromAddress:   "A",
		ToAddress:     "B",
		TotalVolume:   graph.MustVolume("1000"),
		TransferCount: 1,
	})
	c, err := openCache(cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	q := queries.New(store, c, cfg.QueryTimeout)
	h := api.NewHandler(q, pathfinder.New(store, q, c, cfg.RiskThreshold, cfg.QueryTimeout), metrics.New(store, c, cfg.MetricsTimeout), c)
	router := newRouter(cfg, h, zap.NewNop())

	t.Run("health", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "ok", response["status"])
		assert.Equal(t, true, response["cache_enabled"])
		assert.NotEmpty(t, w.Header().Get(api.RequestIDHeader))
	})

	t.Run("connections", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/v1/accounts/A/connections", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var g graph.Graph
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
		assert.Len(t, g.Nodes, 2)
		assert.Len(t, g.Edges, 1)
	})

	t.Run("prometheus", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/metrics", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
	})

	t.Run("cors preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("OPTIONS", "/api/v1/metrics/pagerank", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
