package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chain-graph/backend/internal/api"
	"chain-graph/backend/internal/cache"
	"chain-graph/backend/internal/graph"
	"chain-graph/backend/internal/metrics"
	"chain-graph/backend/internal/pathfinder"
	"chain-graph/backend/internal/queries"
	"chain-graph/backend/pkg/config"
	"chain-graph/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting graph API server...",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreBackend),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore()

	c, err := openCache(cfg, log)
	if err != nil {
		log.Fatal("Failed to open cache", zap.Error(err))
	}
	if c != nil {
		defer c.Close()
		c.StartJanitor(ctx, cfg.CacheCleanInterval)
	}

	// Initialize services
	q := queries.New(store, c, cfg.QueryTimeout)
	paths := pathfinder.New(store, q, c, cfg.RiskThreshold, cfg.QueryTimeout)
	m := metrics.New(store, c, cfg.MetricsTimeout).WithScoresTTL(cfg.TTLScores)

	if c != nil && len(c.WarmAddresses()) > 0 {
		go func() {
			loaded, err := c.WarmCache(ctx, q)
			if err != nil {
				log.Warn("Cache warming failed", zap.Error(err))
				return
			}
			log.Info("Cache warmed", zap.Int("loaded", loaded))
		}()
	}

	router := newRouter(cfg, api.NewHandler(q, paths, m, c), log)

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// openStore connects the configured relationship store
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (graph.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("Using the in-memory store; data is not persisted")
		return graph.NewMemoryStore(), func() {}, nil
	}

	driver, err := neo4j.NewDriverWithContext(
		cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	// Verify Neo4j connection
	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(context.Background())
		return nil, nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}

	repo := graph.NewRepository(driver, cfg.Neo4jDatabase)
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.Warn("Failed to close Neo4j driver", zap.Error(err))
		}
	}, nil
}

// openCache builds the two-tier cache; nil when caching is disabled
func openCache(cfg *config.Config, log *zap.Logger) (*cache.Cache, error) {
	if !cfg.CacheEnabled {
		log.Info("Result cache disabled")
		return nil, nil
	}
	return cache.New(cache.Options{
		Path:                 cfg.CachePath,
		MaxMemoryItems:       cfg.CacheMaxMemoryItems,
		MemoryNodeThreshold:  cfg.CacheMemoryNodeThreshold,
		PromoteNodeThreshold: cfg.CachePromoteNodeThreshold,
		TTLGraph:             cfg.TTLGraph,
		TTLMetrics:           cfg.TTLMetrics,
		TTLQuery:             cfg.TTLQuery,
		WarmAddresses:        cfg.CacheWarmAddresses,
	}, logger.Named("cache"))
}

// newRouter sets up middleware, the JSON routes and the Prometheus endpoint
func newRouter(cfg *config.Config, h *api.Handler, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(api.RequestID())
	router.Use(api.Logger(log))
	router.Use(gin.Recovery())
	router.Use(api.CORS())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(router)
	return router
}
