package services

import (
	"context"

	"achievehub/internal/models"
)

// ===============================
// SERVICE INTERFACES
// ===============================

// AwardEngine runs check cycles
type AwardEngine interface {
	// CheckAndAward evaluates every unheld active badge for the user and
	// commits the ones that pass. It never fails: on any internal error the
	// cycle is abandoned and an empty list is returned.
	CheckAndAward(ctx context.Context, userID int64, activityType models.ActivityType, payload models.ActivityPayload) []models.AwardedBadge
}

// ActivityService records activity reported by collaborator subsystems
type ActivityService interface {
	// Track records the activity and runs a check cycle
	Track(ctx context.Context, userID int64, req *TrackActivityRequest) (*models.CheckResult, error)

	// Check runs a check cycle without recording anything
	Check(ctx context.Context, userID int64, req *CheckRequest) (*models.CheckResult, error)
}

// BadgeService answers badge and activity queries for learners
type BadgeService interface {
	GetHeldBadges(ctx context.Context, userID int64) (*models.HeldBadges, error)
	GetBadgeStats(ctx context.Context, userID int64) (*models.BadgeStats, error)
	GetActivityCalendar(ctx context.Context, userID int64, days int) (*models.ActivityCalendar, error)
	ListCatalog(ctx context.Context) ([]models.Badge, error)
}

// HealthChecker is implemented by components that report their health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	ServiceName() string
}
