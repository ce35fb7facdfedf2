package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"achievehub/internal/database"
	"achievehub/internal/models"

	"go.uber.org/zap"
)

// achievementRepository implements AchievementRepository on postgres
type achievementRepository struct {
	*BaseRepository
}

// NewAchievementRepository creates a new instance of AchievementRepository
func NewAchievementRepository(db *database.Manager, logger *zap.Logger) AchievementRepository {
	return &achievementRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

const stateColumns = `
	user_id, total_quizzes, average_score, best_score, total_time_spent_minutes,
	total_games, total_game_score, best_game_score, current_streak, longest_streak,
	created_at, updated_at`

func scanState(row interface{ Scan(...interface{}) error }) (*models.UserAchievementState, error) {
	var s models.UserAchievementState
	err := row.Scan(
		&s.UserID, &s.TotalQuizzes, &s.AverageScore, &s.BestScore, &s.TotalTimeSpentMinutes,
		&s.TotalGames, &s.TotalGameScore, &s.BestGameScore, &s.CurrentStreak, &s.LongestStreak,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ===============================
// LIFETIME COUNTERS
// ===============================

// GetState returns the user's counters, zero-valued when no row exists
func (r *achievementRepository) GetState(ctx context.Context, userID int64) (*models.UserAchievementState, error) {
	query := `SELECT ` + stateColumns + ` FROM user_achievement_state WHERE user_id = $1`

	state, err := scanState(r.QueryRowContext(ctx, query, userID))
	if r.IsNotFound(err) {
		return &models.UserAchievementState{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get achievement state: %w", err)
	}
	return state, nil
}

// UpdateState runs fn against the locked state row
func (r *achievementRepository) UpdateState(ctx context.Context, userID int64, fn func(*models.UserAchievementState) error) (*models.UserAchievementState, error) {
	var result *models.UserAchievementState

	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_achievement_state (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
			userID,
		); err != nil {
			return fmt.Errorf("failed to create achievement state: %w", err)
		}

		state, err := scanState(tx.QueryRowContext(ctx,
			`SELECT `+stateColumns+` FROM user_achievement_state WHERE user_id = $1 FOR UPDATE`,
			userID,
		))
		if err != nil {
			return fmt.Errorf("failed to lock achievement state: %w", err)
		}

		if err := fn(state); err != nil {
			return err
		}

		err = tx.QueryRowContext(ctx, `
			UPDATE user_achievement_state SET
				total_quizzes = $2,
				average_score = $3,
				best_score = $4,
				total_time_spent_minutes = $5,
				total_games = $6,
				total_game_score = $7,
				best_game_score = $8,
				current_streak = $9,
				longest_streak = GREATEST(longest_streak, $10),
				updated_at = NOW()
			WHERE user_id = $1
			RETURNING longest_streak, updated_at`,
			userID,
			state.TotalQuizzes, state.AverageScore, state.BestScore, state.TotalTimeSpentMinutes,
			state.TotalGames, state.TotalGameScore, state.BestGameScore,
			state.CurrentStreak, state.LongestStreak,
		).Scan(&state.LongestStreak, &state.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to save achievement state: %w", err)
		}

		result = state
		return nil
	})
	if err != nil {
		r.GetLogger().Error("Failed to update achievement state",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		return nil, err
	}

	return result, nil
}

// ===============================
// GAME TYPE STATS
// ===============================

// RecordGame upserts the per game type aggregate in one statement
func (r *achievementRepository) RecordGame(ctx context.Context, userID int64, gameType string, score float64, at time.Time) (*models.GameTypeStat, error) {
	query := `
		INSERT INTO game_type_stats (user_id, game_type, games_played, total_score, best_score, updated_at)
		VALUES ($1, $2, 1, $3, $3, $4)
		ON CONFLICT (user_id, game_type) DO UPDATE SET
			games_played = game_type_stats.games_played + 1,
			total_score  = game_type_stats.total_score + EXCLUDED.total_score,
			best_score   = GREATEST(game_type_stats.best_score, EXCLUDED.best_score),
			updated_at   = EXCLUDED.updated_at
		RETURNING user_id, game_type, games_played, total_score, best_score, updated_at`

	var stat models.GameTypeStat
	err := r.QueryRowContext(ctx, query, userID, gameType, score, at).Scan(
		&stat.UserID, &stat.GameType, &stat.GamesPlayed, &stat.TotalScore, &stat.BestScore, &stat.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record game: %w", err)
	}
	return &stat, nil
}

// GetGameTypeStats lists the user's per game type aggregates
func (r *achievementRepository) GetGameTypeStats(ctx context.Context, userID int64) ([]models.GameTypeStat, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT user_id, game_type, games_played, total_score, best_score, updated_at
		FROM game_type_stats
		WHERE user_id = $1
		ORDER BY game_type`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get game type stats: %w", err)
	}
	defer rows.Close()

	stats := make([]models.GameTypeStat, 0)
	for rows.Next() {
		var stat models.GameTypeStat
		if err := rows.Scan(&stat.UserID, &stat.GameType, &stat.GamesPlayed, &stat.TotalScore, &stat.BestScore, &stat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game type stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// ===============================
// HELD BADGES AND HISTORY
// ===============================

// GetHeldBadges lists the user's held badges in award order
func (r *achievementRepository) GetHeldBadges(ctx context.Context, userID int64) ([]models.HeldBadge, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT user_id, badge_id, awarded_at
		FROM held_badges
		WHERE user_id = $1
		ORDER BY awarded_at ASC, badge_id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get held badges: %w", err)
	}
	defer rows.Close()

	held := make([]models.HeldBadge, 0)
	for rows.Next() {
		var h models.HeldBadge
		if err := rows.Scan(&h.UserID, &h.BadgeID, &h.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan held badge: %w", err)
		}
		held = append(held, h)
	}
	return held, rows.Err()
}

// ListAchievements returns the newest achievements first
func (r *achievementRepository) ListAchievements(ctx context.Context, userID int64, limit int) ([]models.Achievement, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT id, user_id, badge_id, title, description, awarded_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY awarded_at DESC, id DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	achievements := make([]models.Achievement, 0)
	for rows.Next() {
		var a models.Achievement
		if err := rows.Scan(&a.ID, &a.UserID, &a.BadgeID, &a.Title, &a.Description, &a.AwardedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	return achievements, rows.Err()
}

// CommitAwards serializes on a per-user advisory lock so concurrent check
// cycles in other processes cannot interleave their history trims.
func (r *achievementRepository) CommitAwards(ctx context.Context, userID int64, grants []AwardGrant, at time.Time, historyLimit int) ([]models.HeldBadge, error) {
	if len(grants) == 0 {
		return nil, nil
	}

	committed := make([]models.HeldBadge, 0, len(grants))

	err := r.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, userID); err != nil {
			return fmt.Errorf("failed to acquire user lock: %w", err)
		}

		for _, g := range grants {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO held_badges (user_id, badge_id, awarded_at)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, badge_id) DO NOTHING`,
				userID, g.BadgeID, at,
			)
			if err != nil {
				return fmt.Errorf("failed to insert held badge %s: %w", g.BadgeID, err)
			}

			inserted, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read insert result: %w", err)
			}
			if inserted == 0 {
				continue
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO achievements (user_id, badge_id, title, description, awarded_at)
				VALUES ($1, $2, $3, $4, $5)`,
				userID, g.BadgeID, g.Title, g.Description, at,
			); err != nil {
				return fmt.Errorf("failed to append achievement %s: %w", g.BadgeID, err)
			}

			committed = append(committed, models.HeldBadge{UserID: userID, BadgeID: g.BadgeID, AwardedAt: at})
		}

		if len(committed) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
			DELETE FROM achievements
			WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM achievements
				WHERE user_id = $1
				ORDER BY awarded_at DESC, id DESC
				LIMIT $2
			)`,
			userID, historyLimit,
		); err != nil {
			return fmt.Errorf("failed to trim achievement history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return committed, nil
}
