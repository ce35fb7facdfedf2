package memory

import (
	"context"
	"sync"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

// Recorder runs one recording at a time over the stores and undoes the
// writes of a recording that fails.
type Recorder struct {
	mu           sync.Mutex
	activity     *ActivityStore
	achievements *AchievementStore
	quizzes      *QuizStore
	forum        *ForumStore
}

var _ repositories.Recorder = (*Recorder)(nil)

// NewRecorder creates a recorder over the given stores
func NewRecorder(activity *ActivityStore, achievements *AchievementStore, quizzes *QuizStore, forum *ForumStore) *Recorder {
	return &Recorder{
		activity:     activity,
		achievements: achievements,
		quizzes:      quizzes,
		forum:        forum,
	}
}

// undoLog collects the inverse of every write, newest last
type undoLog []func()

func (u *undoLog) add(fn func()) { *u = append(*u, fn) }

func (u undoLog) rollback() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

func (r *Recorder) InTx(ctx context.Context, fn func(repositories.Stores) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var undo undoLog
	done := false
	defer func() {
		if !done {
			undo.rollback()
		}
	}()

	err := fn(repositories.Stores{
		Activity:     &txActivity{ActivityStore: r.activity, undo: &undo},
		Achievements: &txAchievements{AchievementStore: r.achievements, undo: &undo},
		Quizzes:      &txQuizzes{QuizStore: r.quizzes, undo: &undo},
		Forum:        &txForum{ForumStore: r.forum, undo: &undo},
	})
	if err != nil {
		return err
	}
	done = true
	return nil
}

type txActivity struct {
	*ActivityStore
	undo *undoLog
}

func (t *txActivity) Increment(ctx context.Context, userID int64, day models.Day, delta models.ActivityDelta, at time.Time) (*models.ActivityDay, error) {
	key := dayKey{userID, day}
	t.mu.RLock()
	prev, existed := t.days[key]
	t.mu.RUnlock()

	rec, err := t.ActivityStore.Increment(ctx, userID, day, delta, at)
	if err != nil {
		return nil, err
	}
	t.undo.add(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.days[key] = prev
		} else {
			delete(t.days, key)
		}
	})
	return rec, nil
}

type txAchievements struct {
	*AchievementStore
	undo *undoLog
}

func (t *txAchievements) UpdateState(ctx context.Context, userID int64, fn func(*models.UserAchievementState) error) (*models.UserAchievementState, error) {
	t.mu.RLock()
	prev, existed := t.states[userID]
	t.mu.RUnlock()

	state, err := t.AchievementStore.UpdateState(ctx, userID, fn)
	if err != nil {
		return nil, err
	}
	t.undo.add(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.states[userID] = prev
		} else {
			delete(t.states, userID)
		}
	})
	return state, nil
}

func (t *txAchievements) RecordGame(ctx context.Context, userID int64, gameType string, score float64, at time.Time) (*models.GameTypeStat, error) {
	key := gameKey{userID, gameType}
	t.mu.RLock()
	prev, existed := t.games[key]
	t.mu.RUnlock()

	stat, err := t.AchievementStore.RecordGame(ctx, userID, gameType, score, at)
	if err != nil {
		return nil, err
	}
	t.undo.add(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if existed {
			t.games[key] = prev
		} else {
			delete(t.games, key)
		}
	})
	return stat, nil
}

type txQuizzes struct {
	*QuizStore
	undo *undoLog
}

func (t *txQuizzes) RecordOutcome(ctx context.Context, outcome *models.QuizOutcome) error {
	if err := t.QuizStore.RecordOutcome(ctx, outcome); err != nil {
		return err
	}
	id := outcome.ID
	t.undo.add(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, o := range t.outcomes {
			if o.ID == id {
				t.outcomes = append(t.outcomes[:i], t.outcomes[i+1:]...)
				return
			}
		}
	})
	return nil
}

type txForum struct {
	*ForumStore
	undo *undoLog
}

func (t *txForum) RecordPost(ctx context.Context, post *models.ForumPost) (bool, error) {
	inserted, err := t.ForumStore.RecordPost(ctx, post)
	if err != nil || !inserted {
		return inserted, err
	}
	postID := post.PostID
	t.undo.add(func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.posts, postID)
	})
	return true, nil
}

func (t *txForum) RecordComment(ctx context.Context, postID string, reported *int64) (bool, error) {
	t.mu.RLock()
	prev, existed := t.posts[postID]
	t.mu.RUnlock()

	found, err := t.ForumStore.RecordComment(ctx, postID, reported)
	if err != nil || !found {
		return found, err
	}
	if existed {
		t.undo.add(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			t.posts[postID] = prev
		})
	}
	return true, nil
}
