package repositories

import (
	"context"
	"database/sql"

	"achievehub/internal/database"

	"go.uber.org/zap"
)

// recorder implements Recorder with one postgres transaction per call
type recorder struct {
	*BaseRepository
}

// NewRecorder creates a new instance of Recorder
func NewRecorder(db *database.Manager, logger *zap.Logger) Recorder {
	return &recorder{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// InTx binds every store to one transaction. Nested transactions of the
// stores (UpdateState, RecordOutcome) join it instead of committing early.
func (r *recorder) InTx(ctx context.Context, fn func(Stores) error) error {
	return r.WithTransaction(ctx, func(tx *sql.Tx) error {
		base := r.bind(tx)
		return fn(Stores{
			Activity:     &activityRepository{BaseRepository: base},
			Achievements: &achievementRepository{BaseRepository: base},
			Quizzes:      &quizRepository{BaseRepository: base},
			Forum:        &forumRepository{BaseRepository: base},
		})
	})
}
