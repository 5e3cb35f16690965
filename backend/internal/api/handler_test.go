package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/metrics"
	"chain-graph/backend/internal/pathfinder"
	"chain-graph/backend/internal/queries"
	apperrors "chain-graph/backend/pkg/errors"
)

func rel(from, to, volume string) graph.Relationship {
	return graph.Relationship{
		FromAddress:   from,
		ToAddress:     to,
		TotalVolume:   graph.MustVolume(volume),
		TransferCount: 1,
	}
}

func newTestStore() *graph.MemoryStore {
	s := graph.NewMemoryStore()
	s.PutAccount(graph.Account{Address: "A", RiskScore: 20})
	s.PutRelationship(rel("A", "B", "1000000000000"))
	s.PutRelationship(rel("B", "C", "900000000000"))
	s.PutRelationship(rel("C", "A", "800000000000"))
	return s
}

type failingStore struct {
	graph.Store
}

func (failingStore) Accounts(ctx context.Context, addresses []string) (map[string]graph.Account, error) {
	return nil, apperrors.NewStorage("accounts", errors.New("connection refused"))
}

func (failingStore) Relationships(ctx context.Context, filter graph.RelationshipFilter) ([]graph.Relationship, error) {
	return nil, apperrors.NewStorage("relationships", errors.New("connection refused"))
}

type blockingStore struct {
	graph.Store
}

func (blockingStore) Accounts(ctx context.Context, addresses []string) (map[string]graph.Account, error) {
	<-ctx.Done()
	return nil, apperrors.NewStorage("accounts", ctx.Err())
}

func (blockingStore) Relationships(ctx context.Context, filter graph.RelationshipFilter) ([]graph.Relationship, error) {
	<-ctx.Done()
	return nil, apperrors.NewStorage("relationships", ctx.Err())
}

func newRouter(t *testing.T, store graph.Store, c *cache.Cache, timeout time.Duration) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	q := queries.New(store, c, timeout)
	h := NewHandler(q, pathfinder.New(store, q, c, 0, timeout), metrics.New(store, c, timeout), c)

	router := gin.New()
	router.Use(RequestID())
	h.Register(router)
	return router
}

func do(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoint(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := do(router, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["cache_enabled"])
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Propagated(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "trace-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(RequestIDHeader))
}

func TestDirectConnections(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := do(router, "GET", "/api/v1/accounts/A/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var g graph.Graph
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &g))
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)

	// Unknown addresses are an empty graph, not an error
	w = do(router, "GET", "/api/v1/accounts/nobody/connections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{}, body["nodes"])
	assert.Equal(t, []interface{}{}, body["edges"])
}

func TestValidationErrors(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		field  string
	}{
		{"depth out of range", "GET", "/api/v1/accounts/A/neighborhood?depth=5", nil, "depth"},
		{"non-integer limit", "GET", "/api/v1/accounts/A/connections?limit=ten", nil, "limit"},
		{"negative volume", "GET", "/api/v1/accounts/A/circular-flows?min_volume=-1", nil, "min_volume"},
		{"unknown weight", "GET", "/api/v1/paths/shortest?from=A&to=B&weight_type=cheapest", nil, "weight_type"},
		{"empty node set", "POST", "/api/v1/metrics/pagerank", map[string]interface{}{"nodes": []string{}}, "node_set"},
		{"unknown method", "POST", "/api/v1/metrics/communities", map[string]interface{}{"nodes": []string{"A"}, "method": "louvain"}, "method"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.field, body["field"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestMalformedBody(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/v1/paths/risk", bytes.NewBufferString(`{"path":`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStorageAndTimeoutStatuses(t *testing.T) {
	w := do(newRouter(t, failingStore{}, nil, time.Second), "GET", "/api/v1/accounts/A/connections", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, true, decode(t, w)["retryable"])

	w = do(newRouter(t, blockingStore{}, nil, 20*time.Millisecond), "GET", "/api/v1/accounts/A/connections", nil)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, false, decode(t, w)["retryable"])
}

func TestPathRoutes(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := do(router, "GET", "/api/v1/paths/shortest?from=A&to=B", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, float64(1), body["hops"])

	w = do(router, "GET", "/api/v1/paths/shortest?from=B&to=nobody&weight_type=volume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["found"])

	w = do(router, "GET", "/api/v1/accounts/A/circular-flows?max_depth=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var flows queries.CircularFlowResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &flows))
	require.Len(t, flows.Flows, 1)
	assert.Equal(t, "800000000000", flows.Flows[0].MinVolumeInPath.String())

	w = do(router, "POST", "/api/v1/paths/risk", map[string]interface{}{"path": []string{"C", "A", "B"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "low", decode(t, w)["risk_level"])
}

func TestMetricRoutes(t *testing.T) {
	router := newRouter(t, newTestStore(), nil, time.Second)

	w := do(router, "POST", "/api/v1/metrics/pagerank", map[string]interface{}{"nodes": []string{"A", "B", "C"}})
	require.Equal(t, http.StatusOK, w.Code)
	var pr metrics.PageRankResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	total := 0.0
	for _, s := range pr.Scores {
		total += s
	}
	assert.InDelta(t, 1.0, total, 1e-6)

	w = do(router, "GET", "/api/v1/accounts/A/degree", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total_degree"])

	w = do(router, "GET", "/api/v1/metrics/hubs?top_n=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = do(router, "GET", "/api/v1/relationships/suspicious", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestCacheRoutes(t *testing.T) {
	disabled := newRouter(t, newTestStore(), nil, time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, do(disabled, "GET", "/api/v1/cache/stats", nil).Code)

	c, err := cache.New(cache.Options{}, nil)
	require.NoError(t, err)
	defer c.Close()
	router := newRouter(t, newTestStore(), c, time.Second)

	require.Equal(t, http.StatusOK, do(router, "GET", "/api/v1/accounts/A/connections", nil).Code)
	require.Equal(t, http.StatusOK, do(router, "GET", "/api/v1/accounts/A/connections", nil).Code)

	w := do(router, "GET", "/api/v1/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 1, stats.MemoryEntries)

	w = do(router, "DELETE", "/api/v1/cache/accounts/A", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["removed"])

	w = do(router, "POST", "/api/v1/cache/warm", map[string]interface{}{"addresses": []string{"B"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["loaded"])
	assert.Equal(t, []interface{}{"B"}, body["warm_addresses"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(apperrors.NewValidation("x", "bad")))
	assert.Equal(t, http.StatusBadGateway, statusFor(apperrors.NewStorage("read", errors.New("down"))))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(apperrors.NewContextTimeout("read", time.Second)))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(apperrors.NewContextCancelled("read", context.Canceled)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
