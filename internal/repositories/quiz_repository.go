package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"achievehub/internal/database"
	"achievehub/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// quizRepository implements QuizRepository on postgres
type quizRepository struct {
	*BaseRepository
}

// NewQuizRepository creates a new instance of QuizRepository
func NewQuizRepository(db *database.Manager, logger *zap.Logger) QuizRepository {
	return &quizRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// RecordOutcome stores the outcome and its topic results in one transaction
func (r *quizRepository) RecordOutcome(ctx context.Context, outcome *models.QuizOutcome) error {
	return r.WithTransaction(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO quiz_outcomes (user_id, quiz_type, score, completed_at)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			outcome.UserID, outcome.QuizType, outcome.Score, outcome.CompletedAt,
		).Scan(&outcome.ID)
		if err != nil {
			return fmt.Errorf("failed to insert quiz outcome: %w", err)
		}

		if len(outcome.TopicResults) == 0 {
			return nil
		}

		topics := make([]string, len(outcome.TopicResults))
		correct := make([]int64, len(outcome.TopicResults))
		total := make([]int64, len(outcome.TopicResults))
		for i, tr := range outcome.TopicResults {
			topics[i] = tr.Topic
			correct[i] = tr.Correct
			total[i] = tr.Total
		}

		// duplicate topics within one quiz are merged
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO quiz_topic_results (quiz_id, user_id, topic, correct, total)
			SELECT $1, $2, t.topic, SUM(t.correct), SUM(t.total)
			FROM unnest($3::text[], $4::bigint[], $5::bigint[]) AS t(topic, correct, total)
			GROUP BY t.topic`,
			outcome.ID, outcome.UserID, pq.Array(topics), pq.Array(correct), pq.Array(total),
		); err != nil {
			return fmt.Errorf("failed to insert topic results: %w", err)
		}
		return nil
	})
}

// TopicTallies sums answers per topic across every recorded quiz
func (r *quizRepository) TopicTallies(ctx context.Context, userID int64) ([]models.TopicTally, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT topic, SUM(correct), SUM(total)
		FROM quiz_topic_results
		WHERE user_id = $1
		GROUP BY topic
		ORDER BY topic`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get topic tallies: %w", err)
	}
	defer rows.Close()

	tallies := make([]models.TopicTally, 0)
	for rows.Next() {
		var t models.TopicTally
		if err := rows.Scan(&t.Topic, &t.Correct, &t.Total); err != nil {
			return nil, fmt.Errorf("failed to scan topic tally: %w", err)
		}
		tallies = append(tallies, t)
	}
	return tallies, rows.Err()
}
