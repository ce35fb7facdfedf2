// Package ledger maintains the per-user, per-day activity ledger.
//
// Days are calendar dates in one canonical time zone chosen at construction;
// the ledger never interprets timestamps in a user's local zone.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
	"achievehub/internal/validation"

	"go.uber.org/zap"
)

// ErrInvalidDelta is returned for deltas with negative counts
var ErrInvalidDelta = errors.New("invalid activity delta")

const defaultPageSize = 64

// Ledger records and reads activity days
type Ledger struct {
	repo     repositories.ActivityRepository
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
	pageSize int
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithPageSize sets how many days Range fetches per query
func WithPageSize(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// New creates a ledger over repo. A nil loc means server-local time.
func New(repo repositories.ActivityRepository, loc *time.Location, logger *zap.Logger, opts ...Option) *Ledger {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		repo:     repo,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
		pageSize: defaultPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind returns a ledger with the same zone and clock that reads and
// writes through repo
func (l *Ledger) Bind(repo repositories.ActivityRepository) *Ledger {
	bound := *l
	bound.repo = repo
	return &bound
}

// Location is the canonical ledger time zone
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// DayOf maps an instant to its ledger day
func (l *Ledger) DayOf(t time.Time) models.Day {
	return models.DayOf(t, l.loc)
}

// Today is the ledger day of the current instant
func (l *Ledger) Today() models.Day {
	return l.DayOf(l.now())
}

// RecordActivity adds delta to the user's record for day
func (l *Ledger) RecordActivity(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta) (models.ActivityDay, error) {
	return l.record(ctx, userID, day, delta, l.now())
}

// RecordAt adds delta to the day that contains at
func (l *Ledger) RecordAt(ctx context.Context, userID int64, at time.Time, delta models.ActivityDelta) (models.ActivityDay, error) {
	return l.record(ctx, userID, l.DayOf(at), delta, at)
}

func (l *Ledger) record(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta, at time.Time) (models.ActivityDay, error) {
	if err := validation.ValidateStruct(delta); err != nil {
		return models.ActivityDay{}, fmt.Errorf("%w: %v", ErrInvalidDelta, err)
	}
	if day.IsZero() {
		return models.ActivityDay{}, fmt.Errorf("%w: day is required", ErrInvalidDelta)
	}

	// zero deltas never create a record
	if delta.IsZero() {
		return l.GetDay(ctx, userID, day)
	}

	rec, err := l.repo.Increment(ctx, userID, day, delta, at)
	if err != nil {
		return models.ActivityDay{}, err
	}

	l.logger.Debug("Activity recorded",
		zap.Int64("user_id", userID),
		zap.Stringer("day", day),
		zap.Int64("quizzes", rec.QuizzesCompleted),
		zap.Int64("games", rec.GamesPlayed),
		zap.Int64("posts", rec.ForumPosts),
		zap.Int64("minutes", rec.MinutesSpent),
	)
	return *rec, nil
}

// GetDay returns the record for day, or an empty record when there is none
func (l *Ledger) GetDay(ctx context.Context, userID int64, day models.Day) (models.ActivityDay, error) {
	rec, err := l.repo.GetDay(ctx, userID, day)
	if err != nil {
		return models.ActivityDay{}, err
	}
	if rec == nil {
		return models.ActivityDay{UserID: userID, Day: day}, nil
	}
	return *rec, nil
}

// Range yields the user's recorded days in [from, to], oldest first.
// Days are fetched page by page as iteration advances and each new
// iteration starts over from the store.
func (l *Ledger) Range(ctx context.Context, userID int64, from, to models.Day) iter.Seq2[models.ActivityDay, error] {
	return func(yield func(models.ActivityDay, error) bool) {
		cursor := from
		for !cursor.After(to) {
			page, err := l.repo.ListRange(ctx, userID, cursor, to, l.pageSize)
			if err != nil {
				yield(models.ActivityDay{}, err)
				return
			}
			for _, rec := range page {
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			cursor = page[len(page)-1].Day.AddDays(1)
		}
	}
}

// OldestDay returns the first day the user has a record for
func (l *Ledger) OldestDay(ctx context.Context, userID int64) (models.Day, bool, error) {
	return l.repo.OldestDay(ctx, userID)
}
