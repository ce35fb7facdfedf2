package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

type gameKey struct {
	userID   int64
	gameType string
}

// AchievementStore is an in-memory AchievementRepository
type AchievementStore struct {
	mu           sync.RWMutex
	states       map[int64]models.UserAchievementState
	games        map[gameKey]models.GameTypeStat
	held         map[int64]map[string]models.HeldBadge
	achievements map[int64][]models.Achievement
	nextID       int64
}

var _ repositories.AchievementRepository = (*AchievementStore)(nil)

// NewAchievementStore creates an empty store
func NewAchievementStore() *AchievementStore {
	return &AchievementStore{
		states:       make(map[int64]models.UserAchievementState),
		games:        make(map[gameKey]models.GameTypeStat),
		held:         make(map[int64]map[string]models.HeldBadge),
		achievements: make(map[int64][]models.Achievement),
	}
}

func (s *AchievementStore) GetState(ctx context.Context, userID int64) (*models.UserAchievementState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[userID]
	if !ok {
		return &models.UserAchievementState{UserID: userID}, nil
	}
	return &state, nil
}

func (s *AchievementStore) UpdateState(ctx context.Context, userID int64, fn func(*models.UserAchievementState) error) (*models.UserAchievementState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	state, ok := s.states[userID]
	if !ok {
		state = models.UserAchievementState{UserID: userID, CreatedAt: now}
	}
	previousLongest := state.LongestStreak

	// fn works on a copy so a failed update leaves the stored state untouched
	working := state
	if err := fn(&working); err != nil {
		return nil, err
	}
	if working.LongestStreak < previousLongest {
		working.LongestStreak = previousLongest
	}
	working.UserID = userID
	working.UpdatedAt = now
	s.states[userID] = working

	return &working, nil
}

func (s *AchievementStore) RecordGame(ctx context.Context, userID int64, gameType string, score float64, at time.Time) (*models.GameTypeStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := gameKey{userID, gameType}
	stat, ok := s.games[key]
	if !ok {
		stat = models.GameTypeStat{UserID: userID, GameType: gameType}
	}
	stat.Record(score)
	stat.UpdatedAt = at
	s.games[key] = stat

	return &stat, nil
}

func (s *AchievementStore) GetGameTypeStats(ctx context.Context, userID int64) ([]models.GameTypeStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.GameTypeStat, 0)
	for key, stat := range s.games {
		if key.userID == userID {
			out = append(out, stat)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].GameType < out[j].GameType })
	return out, nil
}

func (s *AchievementStore) GetHeldBadges(ctx context.Context, userID int64) ([]models.HeldBadge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]models.HeldBadge, 0, len(s.held[userID]))
	for _, h := range s.held[userID] {
		out = append(out, h)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].AwardedAt.Equal(out[j].AwardedAt) {
			return out[i].AwardedAt.Before(out[j].AwardedAt)
		}
		return out[i].BadgeID < out[j].BadgeID
	})
	return out, nil
}

func (s *AchievementStore) ListAchievements(ctx context.Context, userID int64, limit int) ([]models.Achievement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.achievements[userID]
	out := make([]models.Achievement, 0, len(history))
	// history is stored oldest first
	for i := len(history) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, history[i])
	}
	return out, nil
}

func (s *AchievementStore) CommitAwards(ctx context.Context, userID int64, grants []repositories.AwardGrant, at time.Time, historyLimit int) ([]models.HeldBadge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	held, ok := s.held[userID]
	if !ok {
		held = make(map[string]models.HeldBadge)
		s.held[userID] = held
	}

	committed := make([]models.HeldBadge, 0, len(grants))
	for _, g := range grants {
		if _, exists := held[g.BadgeID]; exists {
			continue
		}
		h := models.HeldBadge{UserID: userID, BadgeID: g.BadgeID, AwardedAt: at}
		held[g.BadgeID] = h

		s.nextID++
		s.achievements[userID] = append(s.achievements[userID], models.Achievement{
			ID:          s.nextID,
			UserID:      userID,
			BadgeID:     g.BadgeID,
			Title:       g.Title,
			Description: g.Description,
			AwardedAt:   at,
		})
		committed = append(committed, h)
	}

	if history := s.achievements[userID]; historyLimit > 0 && len(history) > historyLimit {
		trimmed := make([]models.Achievement, historyLimit)
		copy(trimmed, history[len(history)-historyLimit:])
		s.achievements[userID] = trimmed
	}

	return committed, nil
}
