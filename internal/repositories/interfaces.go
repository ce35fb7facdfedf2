package repositories

import (
	"context"
	"time"

	"achievehub/internal/models"
)

// ===============================
// LEDGER
// ===============================

// ActivityRepository stores the per-user, per-day activity ledger
type ActivityRepository interface {
	// Increment adds delta to the (user, day) record, creating it when absent.
	// Concurrent increments for the same key never lose an update.
	Increment(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta, at time.Time) (*models.ActivityDay, error)

	// GetDay returns nil, nil when the user has no record for day
	GetDay(ctx context.Context, userID int64, day models.Day) (*models.ActivityDay, error)

	// ListRange returns at most limit records in [from, to], ordered by day ascending
	ListRange(ctx context.Context, userID int64, from, to models.Day, limit int) ([]models.ActivityDay, error)

	// OldestDay returns the day of the user's first record; ok is false when there is none
	OldestDay(ctx context.Context, userID int64) (day models.Day, ok bool, err error)
}

// ===============================
// ACHIEVEMENT STATE
// ===============================

// AwardGrant is a badge the award engine wants to commit
type AwardGrant struct {
	BadgeID     string
	Title       string
	Description string
}

// AchievementRepository stores lifetime counters, held badges and achievement history
type AchievementRepository interface {
	// GetState returns the stored state or a zero state for unknown users
	GetState(ctx context.Context, userID int64) (*models.UserAchievementState, error)

	// UpdateState loads the user's state under a row lock, applies fn and saves
	// the result. The state row is created with zero counters when absent.
	UpdateState(ctx context.Context, userID int64, fn func(*models.UserAchievementState) error) (*models.UserAchievementState, error)

	// RecordGame folds one game session into the per game type aggregate
	RecordGame(ctx context.Context, userID int64, gameType string, score float64, at time.Time) (*models.GameTypeStat, error)
	GetGameTypeStats(ctx context.Context, userID int64) ([]models.GameTypeStat, error)

	GetHeldBadges(ctx context.Context, userID int64) ([]models.HeldBadge, error)

	// ListAchievements returns the newest limit achievements, newest first
	ListAchievements(ctx context.Context, userID int64, limit int) ([]models.Achievement, error)

	// CommitAwards inserts each grant into the held set if absent, appends an
	// achievement for every insert that took effect and trims the history to
	// historyLimit entries. It returns only the rows that were inserted.
	CommitAwards(ctx context.Context, userID int64, grants []AwardGrant, at time.Time, historyLimit int) ([]models.HeldBadge, error)
}

// ===============================
// CATALOG
// ===============================

// BadgeRepository stores catalog definitions and applied catalog versions
type BadgeRepository interface {
	ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error)

	// CatalogVersion returns the highest applied catalog version, 0 when none
	CatalogVersion(ctx context.Context) (int, error)

	// ApplyCatalogVersion inserts definitions that do not exist yet and records
	// version as applied. Existing definitions are never updated.
	ApplyCatalogVersion(ctx context.Context, version int, defs []models.BadgeDefinition) (inserted int, err error)

	// SetDeprecated flags a definition; found is false for unknown ids
	SetDeprecated(ctx context.Context, badgeID string, deprecated bool) (found bool, err error)
}

// ===============================
// ACTIVITY SOURCES
// ===============================

// QuizRepository stores graded quiz outcomes and their topic tallies
type QuizRepository interface {
	RecordOutcome(ctx context.Context, outcome *models.QuizOutcome) error

	// TopicTallies sums correct and total answers per topic for a user
	TopicTallies(ctx context.Context, userID int64) ([]models.TopicTally, error)
}

// ForumRepository stores the engine's view of forum posts
type ForumRepository interface {
	// RecordPost stores a post. Recording the same post twice is a no-op and
	// reports inserted false.
	RecordPost(ctx context.Context, post *models.ForumPost) (inserted bool, err error)

	// RecordComment raises the post's comment count to reported, or adds one
	// when reported is nil. Counts never decrease. found is false for unknown posts.
	RecordComment(ctx context.Context, postID string, reported *int64) (found bool, err error)

	Counts(ctx context.Context, userID int64) (models.ForumCounts, error)
}

// ===============================
// RECORDING
// ===============================

// Stores is the set of repositories an activity recording writes through
type Stores struct {
	Activity     ActivityRepository
	Achievements AchievementRepository
	Quizzes      QuizRepository
	Forum        ForumRepository
}

// Recorder runs fn with stores whose writes commit together. When fn
// returns an error none of its writes remain.
type Recorder interface {
	InTx(ctx context.Context, fn func(Stores) error) error
}
