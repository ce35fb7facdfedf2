package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"achievehub/internal/badges"
	"achievehub/internal/cache"
	"achievehub/internal/criteria"
	"achievehub/internal/events"
	"achievehub/internal/models"
	"achievehub/internal/repositories"

	"go.uber.org/zap"
)

// StatsProvider builds the snapshot a check cycle evaluates
type StatsProvider interface {
	Aggregate(ctx context.Context, userID int64) *models.StatsSnapshot
}

// CatalogProvider serves the current badge catalog
type CatalogProvider interface {
	Snapshot() *badges.Catalog
}

// Check cycle states, logged at debug level
const (
	stateStart              = "start"
	stateStatsAggregated    = "stats_aggregated"
	stateCandidatesFiltered = "candidates_filtered"
	stateEvaluated          = "evaluated"
	stateCommitted          = "committed"
)

// awardEngine implements AwardEngine
type awardEngine struct {
	stats        StatsProvider
	evaluator    *criteria.Evaluator
	catalog      CatalogProvider
	achievements repositories.AchievementRepository
	cache        cache.Cache
	bus          events.EventBus
	locks        *userLocks
	historyLimit int
	now          func() time.Time
	logger       *zap.Logger
}

// AwardEngineDeps groups the collaborators of the award engine. Cache and
// EventBus are optional.
type AwardEngineDeps struct {
	Stats        StatsProvider
	Evaluator    *criteria.Evaluator
	Catalog      CatalogProvider
	Achievements repositories.AchievementRepository
	Cache        cache.Cache
	EventBus     events.EventBus
	HistoryLimit int
	Clock        func() time.Time
}

// NewAwardEngine creates the award engine
func NewAwardEngine(deps AwardEngineDeps, logger *zap.Logger) (AwardEngine, error) {
	if deps.Stats == nil || deps.Catalog == nil || deps.Achievements == nil {
		return nil, fmt.Errorf("award engine requires stats, catalog and achievements")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Evaluator == nil {
		deps.Evaluator = criteria.NewEvaluator(logger)
	}
	if deps.HistoryLimit <= 0 {
		deps.HistoryLimit = models.DefaultAchievementHistoryLimit
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}

	return &awardEngine{
		stats:        deps.Stats,
		evaluator:    deps.Evaluator,
		catalog:      deps.Catalog,
		achievements: deps.Achievements,
		cache:        deps.Cache,
		bus:          deps.EventBus,
		locks:        newUserLocks(),
		historyLimit: deps.HistoryLimit,
		now:          deps.Clock,
		logger:       logger,
	}, nil
}

// CheckAndAward runs one check cycle for the user
func (e *awardEngine) CheckAndAward(ctx context.Context, userID int64, activityType models.ActivityType, payload models.ActivityPayload) (awarded []models.AwardedBadge) {
	awarded = []models.AwardedBadge{}

	logger := e.logger.With(
		zap.Int64("user_id", userID),
		zap.String("activity_type", string(activityType)),
	)

	if !activityType.IsValid() {
		logger.Warn("Check cycle rejected: unknown activity type")
		return awarded
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Check cycle panicked", zap.Any("panic", r))
			awarded = []models.AwardedBadge{}
		}
	}()

	unlock := e.locks.Lock(userID)
	defer unlock()

	logger.Debug("Check cycle state", zap.String("state", stateStart))

	snapshot := e.stats.Aggregate(ctx, userID)
	logger.Debug("Check cycle state",
		zap.String("state", stateStatsAggregated),
		zap.Bool("partial", snapshot.Partial),
		zap.Strings("failed_sources", snapshot.FailedSources),
	)

	catalog := e.catalog.Snapshot()
	held, err := e.achievements.GetHeldBadges(ctx, userID)
	if err != nil {
		logger.Error("Check cycle abandoned: failed to load held badges", zap.Error(err))
		return awarded
	}
	heldSet := make(map[string]bool, len(held))
	for _, h := range held {
		heldSet[h.BadgeID] = true
	}
	candidates := catalog.Candidates(heldSet)
	logger.Debug("Check cycle state",
		zap.String("state", stateCandidatesFiltered),
		zap.Int("catalog_version", catalog.Version()),
		zap.Int("held", len(heldSet)),
		zap.Int("candidates", len(candidates)),
	)

	event := models.ActivityEvent{Type: activityType, Payload: payload, OccurredAt: e.now()}
	var grants []repositories.AwardGrant
	for _, def := range candidates {
		if e.evaluator.Satisfies(def, snapshot, event) {
			grants = append(grants, repositories.AwardGrant{
				BadgeID:     def.BadgeID,
				Title:       def.Name,
				Description: def.Description,
			})
		}
	}
	logger.Debug("Check cycle state",
		zap.String("state", stateEvaluated),
		zap.Int("passed", len(grants)),
	)

	if len(grants) == 0 {
		logger.Debug("Check cycle state", zap.String("state", stateCommitted), zap.Int("awarded", 0))
		return awarded
	}

	committed, err := e.achievements.CommitAwards(ctx, userID, grants, e.now().UTC(), e.historyLimit)
	if err != nil {
		logger.Error("Check cycle abandoned: failed to commit awards", zap.Error(err))
		return awarded
	}

	for _, row := range committed {
		def, ok := catalog.Lookup(row.BadgeID)
		if !ok {
			logger.Debug("Committed badge missing from catalog", zap.String("badge_id", row.BadgeID))
			continue
		}
		awarded = append(awarded, models.AwardedBadge{Badge: def.View(), AwardedAt: row.AwardedAt})
	}

	logger.Debug("Check cycle state", zap.String("state", stateCommitted), zap.Int("awarded", len(awarded)))
	if len(awarded) == 0 {
		return awarded
	}

	logger.Info("Badges awarded", zap.Int("count", len(awarded)))
	e.afterCommit(ctx, userID, activityType, awarded)
	return awarded
}

// afterCommit drops cached listings and announces the award. Failures are
// logged only.
func (e *awardEngine) afterCommit(ctx context.Context, userID int64, activityType models.ActivityType, awarded []models.AwardedBadge) {
	if e.cache != nil {
		if err := e.cache.DeletePattern(ctx, cache.UserPattern(userID)); err != nil {
			e.logger.Warn("Failed to invalidate badge cache", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	if e.bus != nil {
		event := events.NewBadgeAwardedEvent(userID, activityType, awarded)
		if err := e.bus.PublishAsync(ctx, event); err != nil {
			e.logger.Warn("Failed to publish badge award", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
}

// ===============================
// PER-USER LOCKS
// ===============================

// userLocks serializes check cycles per user. Entries are reference
// counted and removed once no cycle holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

// Lock blocks until the user's lock is held and returns its release func
func (l *userLocks) Lock(userID int64) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &userLock{}
		l.locks[userID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
