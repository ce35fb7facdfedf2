package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

type dayKey struct {
	userID int64
	day    models.Day
}

// ActivityStore is an in-memory ActivityRepository
type ActivityStore struct {
	mu   sync.RWMutex
	days map[dayKey]models.ActivityDay
}

var _ repositories.ActivityRepository = (*ActivityStore)(nil)

// NewActivityStore creates an empty ledger
func NewActivityStore() *ActivityStore {
	return &ActivityStore{days: make(map[dayKey]models.ActivityDay)}
}

func (s *ActivityStore) Increment(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta, at time.Time) (*models.ActivityDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey{userID, day}
	rec, ok := s.days[key]
	if !ok {
		rec = models.ActivityDay{UserID: userID, Day: day}
	}
	rec.Apply(delta, at)
	s.days[key] = rec

	return &rec, nil
}

func (s *ActivityStore) GetDay(ctx context.Context, userID int64, day models.Day) (*models.ActivityDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.days[dayKey{userID, day}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *ActivityStore) ListRange(ctx context.Context, userID int64, from, to models.Day, limit int) ([]models.ActivityDay, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.ActivityDay, 0)
	for key, rec := range s.days {
		if key.userID != userID || key.day.Before(from) || key.day.After(to) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ActivityStore) OldestDay(ctx context.Context, userID int64) (models.Day, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Day{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		oldest models.Day
		found  bool
	)
	for key := range s.days {
		if key.userID != userID {
			continue
		}
		if !found || key.day.Before(oldest) {
			oldest = key.day
			found = true
		}
	}
	return oldest, found, nil
}
