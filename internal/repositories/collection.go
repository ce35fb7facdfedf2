package repositories

import (
	"context"
	"fmt"

	"achievehub/internal/database"

	"go.uber.org/zap"
)

// Collection holds all repository instances for dependency injection
type Collection struct {
	Activity     ActivityRepository
	Achievements AchievementRepository
	Badges       BadgeRepository
	Quizzes      QuizRepository
	Forum        ForumRepository

	// Recorder writes one activity event's records atomically
	Recorder Recorder

	// nil for the in-memory store
	db     *database.Manager
	logger *zap.Logger
}

// NewCollection creates the postgres-backed repository collection
func NewCollection(db *database.Manager, logger *zap.Logger) (*Collection, error) {
	if db == nil {
		return nil, fmt.Errorf("database manager is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	collection := &Collection{
		Activity:     NewActivityRepository(db, logger),
		Achievements: NewAchievementRepository(db, logger),
		Badges:       NewBadgeRepository(db, logger),
		Quizzes:      NewQuizRepository(db, logger),
		Forum:        NewForumRepository(db, logger),
		Recorder:     NewRecorder(db, logger),
		db:           db,
		logger:       logger,
	}

	logger.Info("Repository collection initialized", zap.String("driver", "postgres"))
	return collection, nil
}

// ===============================
// HEALTH AND MONITORING
// ===============================

// HealthCheck reports database connectivity. The in-memory store is always healthy.
func (c *Collection) HealthCheck(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	return c.db.Health(ctx)
}

// Validate ensures every repository is set
func (c *Collection) Validate() error {
	switch {
	case c.Activity == nil:
		return fmt.Errorf("activity repository is nil")
	case c.Achievements == nil:
		return fmt.Errorf("achievement repository is nil")
	case c.Badges == nil:
		return fmt.Errorf("badge repository is nil")
	case c.Quizzes == nil:
		return fmt.Errorf("quiz repository is nil")
	case c.Forum == nil:
		return fmt.Errorf("forum repository is nil")
	case c.Recorder == nil:
		return fmt.Errorf("recorder is nil")
	}
	return nil
}
