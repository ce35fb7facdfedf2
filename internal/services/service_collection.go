package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"achievehub/internal/badges"
	"achievehub/internal/cache"
	"achievehub/internal/config"
	"achievehub/internal/criteria"
	"achievehub/internal/events"
	"achievehub/internal/ledger"
	"achievehub/internal/repositories"
	"achievehub/internal/stats"
	"achievehub/internal/streak"

	"go.uber.org/zap"
)

// ServiceCollection wires the engine components together
type ServiceCollection struct {
	AwardEngine     AwardEngine
	ActivityService ActivityService
	BadgeService    BadgeService

	Ledger       *ledger.Ledger
	Streaks      *streak.Calculator
	Aggregator   *stats.Aggregator
	Registry     *badges.Registry
	Repositories *repositories.Collection
	Cache        cache.Cache
	EventBus     events.EventBus
	Logger       *zap.Logger

	startTime time.Time
}

// Infrastructure is what the collection is built on. Cache and EventBus
// may be nil.
type Infrastructure struct {
	Repositories *repositories.Collection
	Registry     *badges.Registry
	Cache        cache.Cache
	EventBus     events.EventBus
	Clock        func() time.Time
}

// NewServiceCollection builds every service from the engine configuration
func NewServiceCollection(infra Infrastructure, cfg *config.EngineConfig, logger *zap.Logger) (*ServiceCollection, error) {
	if infra.Repositories == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if err := infra.Repositories.Validate(); err != nil {
		return nil, err
	}
	if infra.Registry == nil {
		return nil, fmt.Errorf("badge registry is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("engine configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if infra.Clock == nil {
		infra.Clock = time.Now
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repos := infra.Repositories
	l := ledger.New(repos.Activity, loc, logger.Named("ledger"), ledger.WithClock(infra.Clock))
	streaks := streak.NewCalculator(l)
	aggregator := stats.NewAggregator(
		repos.Achievements,
		repos.Quizzes,
		repos.Forum,
		streaks,
		l.Today,
		stats.Config{Timeout: cfg.StatsTimeout, Concurrency: cfg.StatsConcurrency},
		logger.Named("stats"),
	)

	engine, err := NewAwardEngine(AwardEngineDeps{
		Stats:        aggregator,
		Evaluator:    criteria.NewEvaluator(logger.Named("criteria")),
		Catalog:      infra.Registry,
		Achievements: repos.Achievements,
		Cache:        infra.Cache,
		EventBus:     infra.EventBus,
		HistoryLimit: cfg.AchievementHistoryLimit,
		Clock:        infra.Clock,
	}, logger.Named("award_engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize award engine: %w", err)
	}

	activity, err := NewActivityService(ActivityServiceDeps{
		Ledger:   l,
		Recorder: repos.Recorder,
		Engine:   engine,
		EventBus: infra.EventBus,
		Cache:    infra.Cache,
		Clock:    infra.Clock,
	}, logger.Named("activity"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize activity service: %w", err)
	}

	badgeSvc := NewBadgeService(
		infra.Registry,
		repos.Achievements,
		l,
		streaks,
		infra.Cache,
		BadgeServiceConfig{
			CacheTTL:            cfg.HeldBadgesCacheTTL,
			CalendarDefaultDays: cfg.CalendarDefaultDays,
			CalendarMaxDays:     cfg.CalendarMaxDays,
		},
		logger.Named("badges"),
	)

	logger.Info("Service collection initialized",
		zap.String("time_zone", loc.String()),
		zap.Int("catalog_version", infra.Registry.Snapshot().Version()),
	)

	return &ServiceCollection{
		AwardEngine:     engine,
		ActivityService: activity,
		BadgeService:    badgeSvc,
		Ledger:          l,
		Streaks:         streaks,
		Aggregator:      aggregator,
		Registry:        infra.Registry,
		Repositories:    repos,
		Cache:           infra.Cache,
		EventBus:        infra.EventBus,
		Logger:          logger,
		startTime:       infra.Clock(),
	}, nil
}

// HealthCheck checks storage, cache and event bus
func (sc *ServiceCollection) HealthCheck(ctx context.Context) *ServiceHealth {
	catalog := sc.Registry.Snapshot()
	health := &ServiceHealth{
		Status:       "healthy",
		Timestamp:    time.Now().UTC(),
		Dependencies: make(map[string]ServiceStatus),
		Uptime:       time.Since(sc.startTime),
		Catalog: CatalogStatus{
			Version:      catalog.Version(),
			ActiveBadges: catalog.ActiveCount(),
		},
	}

	check := func(name string, fn func(context.Context) error) {
		start := time.Now()
		status := ServiceStatus{Name: name, Status: "healthy", LastCheck: start}
		if err := fn(ctx); err != nil {
			status.Status = "unhealthy"
			status.Error = err.Error()
			health.Status = "unhealthy"
			health.Issues = append(health.Issues, fmt.Sprintf("%s: %s", name, err))
		}
		status.ResponseTime = time.Since(start)
		health.Dependencies[name] = status
	}

	check("storage", sc.Repositories.HealthCheck)
	if sc.Cache != nil {
		check("cache", sc.Cache.Health)
	}
	if sc.EventBus != nil {
		check("event_bus", func(context.Context) error { return sc.EventBus.Health() })
	}
	if catalog.ActiveCount() == 0 {
		health.Status = "unhealthy"
		health.Issues = append(health.Issues, "catalog: no active badges loaded")
	}

	sc.Logger.Debug("Health check completed",
		zap.String("status", health.Status),
		zap.Int("issues", len(health.Issues)),
	)
	return health
}

// Shutdown stops the event bus and closes the cache
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	sc.Logger.Info("Shutting down service collection")

	var errs []error
	if sc.EventBus != nil {
		if err := sc.EventBus.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("event bus stop: %w", err))
		}
	}
	if sc.Cache != nil {
		if err := sc.Cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache close: %w", err))
		}
	}

	if len(errs) > 0 {
		sc.Logger.Error("Errors occurred during shutdown", zap.Int("error_count", len(errs)))
		return errors.Join(errs...)
	}
	sc.Logger.Info("Service collection shutdown completed")
	return nil
}
