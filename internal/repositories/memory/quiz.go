package memory

import (
	"context"
	"sort"
	"sync"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

// QuizStore is an in-memory QuizRepository
type QuizStore struct {
	mu       sync.RWMutex
	outcomes []models.QuizOutcome
	nextID   int64
}

var _ repositories.QuizRepository = (*QuizStore)(nil)

// NewQuizStore creates an empty store
func NewQuizStore() *QuizStore {
	return &QuizStore{}
}

func (s *QuizStore) RecordOutcome(ctx context.Context, outcome *models.QuizOutcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	outcome.ID = s.nextID

	stored := *outcome
	stored.TopicResults = append([]models.TopicResult(nil), outcome.TopicResults...)
	s.outcomes = append(s.outcomes, stored)
	return nil
}

func (s *QuizStore) TopicTallies(ctx context.Context, userID int64) ([]models.TopicTally, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	byTopic := make(map[string]models.TopicTally)
	for _, o := range s.outcomes {
		if o.UserID != userID {
			continue
		}
		for _, tr := range o.TopicResults {
			t := byTopic[tr.Topic]
			t.Topic = tr.Topic
			t.Correct += tr.Correct
			t.Total += tr.Total
			byTopic[tr.Topic] = t
		}
	}
	s.mu.RUnlock()

	out := make([]models.TopicTally, 0, len(byTopic))
	for _, t := range byTopic {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}
