package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"achievehub/internal/badges"
	"achievehub/internal/cache"
	"achievehub/internal/config"
	"achievehub/internal/database"
	"achievehub/internal/events"
	"achievehub/internal/middleware"
	"achievehub/internal/notifications"
	"achievehub/internal/repositories"
	"achievehub/internal/repositories/memory"
	"achievehub/internal/response"
	"achievehub/internal/router"
	"achievehub/internal/services"

	"go.uber.org/zap"
)

func main() {
	logger, level, err := initLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	logger.Info("Starting achievehub")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		logger.Warn("Ignoring invalid LOG_LEVEL", zap.String("level", cfg.Logging.Level))
	}

	ctx := context.Background()

	// Storage
	repos, closeStorage, err := initStorage(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeStorage()

	// Badge catalog
	migrations, err := badges.DefaultMigrations()
	if err != nil {
		logger.Fatal("Failed to read badge catalog seed", zap.Error(err))
	}
	registry := badges.NewRegistry(repos.Badges, migrations, logger.Named("catalog"))
	applied, err := registry.Migrate(ctx)
	if err != nil {
		logger.Fatal("Failed to migrate badge catalog", zap.Error(err))
	}
	catalog, err := registry.Load(ctx)
	if err != nil {
		logger.Fatal("Failed to load badge catalog", zap.Error(err))
	}
	logger.Info("Badge catalog ready",
		zap.Int("migrations_applied", applied),
		zap.Int("version", catalog.Version()),
		zap.Int("active_badges", catalog.ActiveCount()),
	)

	// Event bus
	bus := events.NewEventBus(events.DefaultEventBusConfig(), logger.Named("events"))
	if err := bus.Start(ctx); err != nil {
		logger.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Cache
	cacheConfig := cache.DefaultConfig()
	cacheConfig.Provider = cfg.Cache.Provider
	cacheConfig.RedisURL = cfg.Cache.RedisURL
	cacheConfig.TTL = cfg.Cache.TTL
	cacheConfig.MaxKeys = cfg.Cache.MaxKeys
	appCache, err := cache.NewCache(cacheConfig, logger.Named("cache"))
	if err != nil {
		logger.Fatal("Failed to create cache", zap.Error(err))
	}

	// Websocket notifications
	hub := notifications.NewHub(cfg.Server.AllowedOrigins, logger.Named("notifications"))
	if err := hub.Subscribe(bus); err != nil {
		logger.Fatal("Failed to subscribe notification hub", zap.Error(err))
	}

	serviceCollection, err := services.NewServiceCollection(services.Infrastructure{
		Repositories: repos,
		Registry:     registry,
		Cache:        appCache,
		EventBus:     bus,
	}, &cfg.Engine, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// HTTP
	responseConfig := response.DefaultConfig()
	responseConfig.MaskInternalErrors = cfg.Server.IsProduction()
	responseConfig.PrettyJSON = !cfg.Server.IsProduction()

	var rateLimiter *middleware.RateLimiter
	if cfg.Server.RateLimitPerMinute > 0 {
		rateLimiter = middleware.NewRateLimiter(appCache, &middleware.RateLimiterConfig{
			Enabled:     true,
			Limit:       cfg.Server.RateLimitPerMinute,
			Window:      time.Minute,
			FailureMode: "allow",
		}, logger.Named("ratelimit"))
	}

	handler := router.SetupRouter(router.Options{
		Services:        serviceCollection,
		Hub:             hub,
		Auth:            middleware.NewAuthMiddleware(&middleware.AuthConfig{JWTSecret: cfg.Auth.JWTSecret, JWTIssuer: cfg.Auth.JWTIssuer, Leeway: cfg.Auth.Leeway}, logger.Named("auth")),
		RateLimiter:     rateLimiter,
		ResponseBuilder: response.NewBuilder(responseConfig, logger.Named("response")),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown setup
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", server.Addr),
			zap.String("environment", cfg.Server.Environment),
			zap.String("storage_driver", cfg.Engine.StorageDriver),
			zap.String("cache_provider", cfg.Cache.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	sig := <-quit
	logger.Info("Shutting down server", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	// hijacked websocket connections are not tracked by Shutdown
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := serviceCollection.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown incomplete", zap.Error(err))
	}

	logger.Info("Server exited")
}

// initStorage builds the repository collection for the configured driver.
// The returned func releases whatever was opened.
func initStorage(cfg *config.Config, logger *zap.Logger) (*repositories.Collection, func(), error) {
	if cfg.Engine.StorageDriver == "memory" {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewCollection(), func() {}, nil
	}

	dbManager, err := database.NewManager(&cfg.Database, logger.Named("database"))
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		stats := dbManager.Stats()
		logger.Info("Database query totals",
			zap.Int64("queries", stats.QueryCount),
			zap.Int64("errors", stats.ErrorCount),
			zap.Int64("slow_queries", stats.SlowQueryCount),
			zap.Int("open_connections", stats.DBStats.OpenConnections),
		)
		if err := dbManager.Close(); err != nil {
			logger.Error("Failed to close database connections", zap.Error(err))
		}
	}

	if cfg.Database.AutoMigrate {
		if err := dbManager.Migrate(cfg.Database.MigrationsPath); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("database migration failed: %w", err)
		}
	}

	repos, err := repositories.NewCollection(dbManager, logger.Named("repositories"))
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return repos, closeDB, nil
}

// initLogger picks the zap preset for GO_ENV. The returned level is
// adjusted once LOG_LEVEL has been read.
func initLogger() (*zap.Logger, zap.AtomicLevel, error) {
	env := os.Getenv("GO_ENV")
	var config zap.Config

	switch env {
	case "production":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "staging":
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	default:
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := config.Build()
	if err != nil {
		return nil, config.Level, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, config.Level, nil
}
