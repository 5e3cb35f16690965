package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chain-graph/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 1000, cfg.CacheMemoryNodeThreshold)
	assert.Equal(t, 5000, cfg.CachePromoteNodeThreshold)
	assert.Equal(t, 900*time.Second, cfg.TTLGraph)
	assert.Equal(t, 70.0, cfg.RiskThreshold)
	assert.Nil(t, cfg.CacheWarmAddresses)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_TTL_QUERY", "90")
	t.Setenv("CACHE_TTL_METRICS", "2m")
	t.Setenv("CACHE_WARM_ADDRESSES", " 0xabc, ,0xdef ")
	t.Setenv("RISK_THRESHOLD", "55.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, 90*time.Second, cfg.TTLQuery)
	assert.Equal(t, 2*time.Minute, cfg.TTLMetrics)
	assert.Equal(t, []string{"0xabc", "0xdef"}, cfg.CacheWarmAddresses)
	assert.Equal(t, 55.5, cfg.RiskThreshold)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("CACHE_ENABLED", "sometimes")
	t.Setenv("CACHE_MAX_MEMORY_ITEMS", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.CacheEnabled)
	assert.Equal(t, 1000, cfg.CacheMaxMemoryItems)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.StoreBackend = "sqlite" }},
		{"missing neo4j uri", func(c *Config) { c.StoreBackend = "neo4j"; c.Neo4jURI = "" }},
		{"promote below memory threshold", func(c *Config) { c.CachePromoteNodeThreshold = 10 }},
		{"risk threshold out of range", func(c *Config) { c.RiskThreshold = 101 }},
		{"zero timeout", func(c *Config) { c.QueryTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
		})
	}
}
