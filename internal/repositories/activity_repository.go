package repositories

import (
	"context"
	"fmt"
	"time"

	"achievehub/internal/database"
	"achievehub/internal/models"

	"go.uber.org/zap"
)

// activityRepository implements ActivityRepository on postgres
type activityRepository struct {
	*BaseRepository
}

// NewActivityRepository creates a new instance of ActivityRepository
func NewActivityRepository(db *database.Manager, logger *zap.Logger) ActivityRepository {
	return &activityRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const activityDayColumns = `user_id, day, quizzes_completed, games_played, forum_posts, minutes_spent, last_active_at`

// Increment is a single upsert, so concurrent increments never race
func (r *activityRepository) Increment(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta, at time.Time) (*models.ActivityDay, error) {
	query := `
		INSERT INTO activity_days (
			user_id, day, quizzes_completed, games_played, forum_posts, minutes_spent, last_active_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, day) DO UPDATE SET
			quizzes_completed = activity_days.quizzes_completed + EXCLUDED.quizzes_completed,
			games_played      = activity_days.games_played + EXCLUDED.games_played,
			forum_posts       = activity_days.forum_posts + EXCLUDED.forum_posts,
			minutes_spent     = activity_days.minutes_spent + EXCLUDED.minutes_spent,
			last_active_at    = GREATEST(activity_days.last_active_at, EXCLUDED.last_active_at)
		RETURNING ` + activityDayColumns

	var rec models.ActivityDay
	err := r.QueryRowContext(ctx, query,
		userID, day,
		delta.QuizzesCompleted, delta.GamesPlayed, delta.ForumPosts, delta.MinutesSpent,
		at,
	).Scan(
		&rec.UserID, &rec.Day,
		&rec.QuizzesCompleted, &rec.GamesPlayed, &rec.ForumPosts, &rec.MinutesSpent,
		&rec.LastActiveAt,
	)
	if err != nil {
		r.GetLogger().Error("Failed to increment activity day",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Stringer("day", day),
		)
		return nil, fmt.Errorf("failed to increment activity day: %w", err)
	}

	return &rec, nil
}

// GetDay returns the record for (user, day) or nil
func (r *activityRepository) GetDay(ctx context.Context, userID int64, day models.Day) (*models.ActivityDay, error) {
	query := `SELECT ` + activityDayColumns + ` FROM activity_days WHERE user_id = $1 AND day = $2`

	var rec models.ActivityDay
	err := r.QueryRowContext(ctx, query, userID, day).Scan(
		&rec.UserID, &rec.Day,
		&rec.QuizzesCompleted, &rec.GamesPlayed, &rec.ForumPosts, &rec.MinutesSpent,
		&rec.LastActiveAt,
	)
	if r.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity day: %w", err)
	}
	return &rec, nil
}

// ListRange returns records in [from, to], oldest first
func (r *activityRepository) ListRange(ctx context.Context, userID int64, from, to models.Day, limit int) ([]models.ActivityDay, error) {
	query := `
		SELECT ` + activityDayColumns + `
		FROM activity_days
		WHERE user_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day ASC
		LIMIT $4`

	rows, err := r.QueryContext(ctx, query, userID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity days: %w", err)
	}
	defer rows.Close()

	days := make([]models.ActivityDay, 0)
	for rows.Next() {
		var rec models.ActivityDay
		if err := rows.Scan(
			&rec.UserID, &rec.Day,
			&rec.QuizzesCompleted, &rec.GamesPlayed, &rec.ForumPosts, &rec.MinutesSpent,
			&rec.LastActiveAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity day: %w", err)
		}
		days = append(days, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity days: %w", err)
	}
	return days, nil
}

// OldestDay returns the first day the user was recorded on
func (r *activityRepository) OldestDay(ctx context.Context, userID int64) (models.Day, bool, error) {
	var day models.Day
	err := r.QueryRowContext(ctx,
		`SELECT day FROM activity_days WHERE user_id = $1 ORDER BY day ASC LIMIT 1`,
		userID,
	).Scan(&day)
	if r.IsNotFound(err) {
		return models.Day{}, false, nil
	}
	if err != nil {
		return models.Day{}, false, fmt.Errorf("failed to get oldest activity day: %w", err)
	}
	return day, true, nil
}
