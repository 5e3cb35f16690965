package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "chain-graph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Store
	StoreBackend  string // neo4j, memory
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// Cache
	CacheEnabled              bool
	CachePath                 string // Badger directory; empty keeps the persistent tier in memory
	CacheMaxMemoryItems       int
	CacheMemoryNodeThreshold  int
	CachePromoteNodeThreshold int
	CacheCleanInterval        time.Duration
	CacheWarmAddresses        []string
	TTLQuery                  time.Duration
	TTLGraph                  time.Duration
	TTLMetrics                time.Duration
	TTLScores                 time.Duration

	// Engine
	RiskThreshold  float64
	QueryTimeout   time.Duration
	MetricsTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                      getEnv("PORT", "8080"),
		Env:                       getEnv("ENV", "development"),
		LogLevel:                  getEnv("LOG_LEVEL", ""),
		StoreBackend:              getEnv("STORE_BACKEND", "neo4j"),
		Neo4jURI:                  getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:                 getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:             getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:             getEnv("NEO4J_DATABASE", ""),
		CacheEnabled:              getEnvBool("CACHE_ENABLED", true),
		CachePath:                 getEnv("CACHE_PATH", ""),
		CacheMaxMemoryItems:       getEnvInt("CACHE_MAX_MEMORY_ITEMS", 1000),
		CacheMemoryNodeThreshold:  getEnvInt("CACHE_MEMORY_NODE_THRESHOLD", 1000),
		CachePromoteNodeThreshold: getEnvInt("CACHE_PROMOTE_NODE_THRESHOLD", 5000),
		CacheCleanInterval:        getEnvDuration("CACHE_CLEAN_INTERVAL", 10*time.Minute),
		CacheWarmAddresses:        getEnvList("CACHE_WARM_ADDRESSES"),
		TTLQuery:                  getEnvDuration("CACHE_TTL_QUERY", 300*time.Second),
		TTLGraph:                  getEnvDuration("CACHE_TTL_GRAPH", 900*time.Second),
		TTLMetrics:                getEnvDuration("CACHE_TTL_METRICS", 1800*time.Second),
		TTLScores:                 getEnvDuration("CACHE_TTL_SCORES", 3600*time.Second),
		RiskThreshold:             getEnvFloat("RISK_THRESHOLD", 70),
		QueryTimeout:              getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		MetricsTimeout:            getEnvDuration("METRICS_TIMEOUT", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "neo4j":
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	case "memory":
	default:
		return apperrors.NewConfigValidationFailed("STORE_BACKEND", fmt.Sprintf("unknown backend %q", c.StoreBackend))
	}
	if c.CacheMaxMemoryItems < 1 {
		return apperrors.NewConfigValidationFailed("CACHE_MAX_MEMORY_ITEMS", "must be at least 1")
	}
	if c.CacheMemoryNodeThreshold < 1 {
		return apperrors.NewConfigValidationFailed("CACHE_MEMORY_NODE_THRESHOLD", "must be at least 1")
	}
	if c.CachePromoteNodeThreshold < c.CacheMemoryNodeThreshold {
		return apperrors.NewConfigValidationFailed("CACHE_PROMOTE_NODE_THRESHOLD", "must not be below CACHE_MEMORY_NODE_THRESHOLD")
	}
	if c.RiskThreshold < 0 || c.RiskThreshold > 100 {
		return apperrors.NewConfigValidationFailed("RISK_THRESHOLD", "must be within 0-100")
	}
	if c.MetricsTimeout <= 0 || c.QueryTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("TIMEOUT", "timeouts must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
