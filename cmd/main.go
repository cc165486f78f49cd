// Package main is the entry point for the geofenced notification authoring service.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/geonotify/backend/internal/apiclient"
	"github.com/geonotify/backend/internal/authoring"
	"github.com/geonotify/backend/internal/cache"
	"github.com/geonotify/backend/internal/config"
	"github.com/geonotify/backend/internal/gateway"
	"github.com/geonotify/backend/internal/handler"
	"github.com/geonotify/backend/internal/metrics"
)

func main() {
	role := flag.String("role", "", "Service role: gateway or handler (overrides SERVICE_ROLE env var)")
	port := flag.String("port", "", "Server port (overrides SERVER_PORT env var)")
	flag.Parse()

	// Local overrides are optional
	_ = godotenv.Load(".env.local")

	if *role != "" {
		os.Setenv("SERVICE_ROLE", *role)
	}
	if *port != "" {
		os.Setenv("SERVER_PORT", *port)
	}

	app := fx.New(
		fx.Provide(
			config.New,
			newLogger,
			newGinEngine,
		),
		fx.Invoke(startServer),
	)

	app.Run()
}

// newLogger creates a new zap logger based on the environment.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newGinEngine creates and configures a new Gin engine.
func newGinEngine(cfg *config.Config) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	// CORS middleware
	engine.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	return engine
}

// startServer starts the HTTP server based on the configured role.
func startServer(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, engine *gin.Engine) error {
	logger.Info("Starting service",
		zap.String("role", cfg.Role),
		zap.String("port", cfg.ServerPort),
	)

	apiV1 := engine.Group("/api/v1")

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"role":    cfg.Role,
			"service": "geonotify",
		})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	var (
		registry    *authoring.Registry
		cacheClient cache.Cache
		stopSweep   context.CancelFunc
	)

	if cfg.IsHandler() {
		client, err := apiclient.NewHTTPClient(cfg, logger)
		if err != nil {
			logger.Error("Invalid upstream API configuration", zap.Error(err))
			return err
		}

		cacheClient = cache.NopCache{}
		if cfg.HasRedis() {
			redisCache, err := cache.NewRedisCache(cfg, logger)
			if err != nil {
				logger.Warn("Redis unavailable, serving lists uncached", zap.Error(err))
			} else {
				cacheClient = redisCache
			}
		}

		registry = authoring.NewRegistry(cfg, logger)

		h := handler.NewHandler(registry, client, cacheClient, logger)
		h.RegisterRoutes(apiV1)

		logger.Info("Handler routes registered", zap.String("api_base_url", cfg.APIBaseURL))
	} else {
		gw, err := gateway.NewGateway(cfg, logger)
		if err != nil {
			logger.Error("Invalid handler URL", zap.Error(err))
			return err
		}
		gw.RegisterRoutes(apiV1)

		logger.Info("Gateway routes registered",
			zap.String("handler_url", cfg.HandlerURL),
		)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if registry != nil && cfg.SweepInterval > 0 {
				var sweepCtx context.Context
				sweepCtx, stopSweep = context.WithCancel(context.Background())
				go registry.Run(sweepCtx, cfg.SweepInterval)
			}

			go func() {
				logger.Info("Server starting", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Server shutting down")

			err := server.Shutdown(ctx)

			if stopSweep != nil {
				stopSweep()
			}
			if registry != nil {
				registry.CloseAll()
			}
			if cacheClient != nil {
				_ = cacheClient.Close()
			}

			_ = logger.Sync()
			return err
		},
	})

	return nil
}
