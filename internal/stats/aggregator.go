// Package stats builds the statistics snapshot a check cycle evaluates.
package stats

import (
	"context"
	"sort"
	"sync"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source names reported in StatsSnapshot.FailedSources
const (
	SourceLifetime = "lifetime"
	SourceTopics   = "topics"
	SourceForum    = "forum"
	SourceStreak   = "streak"
	SourceGames    = "games"
)

// StreakCounter computes the current streak of a user
type StreakCounter interface {
	Current(ctx context.Context, userID int64, today models.Day) (int64, error)
}

// Config tunes the aggregator
type Config struct {
	Timeout     time.Duration
	Concurrency int
}

// Aggregator reads every statistics source for one user. It never writes.
type Aggregator struct {
	achievements repositories.AchievementRepository
	quizzes      repositories.QuizRepository
	forum        repositories.ForumRepository
	streaks      StreakCounter
	today        func() models.Day
	config       Config
	logger       *zap.Logger
}

// NewAggregator creates an aggregator. today supplies the ledger day the
// streak is counted back from.
func NewAggregator(
	achievements repositories.AchievementRepository,
	quizzes repositories.QuizRepository,
	forum repositories.ForumRepository,
	streaks StreakCounter,
	today func() models.Day,
	config Config,
	logger *zap.Logger,
) *Aggregator {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		achievements: achievements,
		quizzes:      quizzes,
		forum:        forum,
		streaks:      streaks,
		today:        today,
		config:       config,
		logger:       logger,
	}
}

// Aggregate fetches all sources concurrently. A source that fails is logged
// and left at its zero value, and the snapshot is marked partial; the
// snapshot itself is always returned.
func (a *Aggregator) Aggregate(ctx context.Context, userID int64) *models.StatsSnapshot {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	snap := models.NewStatsSnapshot(userID)

	var (
		mu       sync.Mutex
		failures []string

		state     *models.UserAchievementState
		tallies   []models.TopicTally
		forum     models.ForumCounts
		current   int64
		streakOK  bool
		gameStats []models.GameTypeStat
	)

	fail := func(source string, err error) {
		a.logger.Warn("Statistics source unavailable",
			zap.Int64("user_id", userID),
			zap.String("source", source),
			zap.Error(err),
		)
		mu.Lock()
		failures = append(failures, source)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.config.Concurrency)

	// every task returns nil so one failure never cancels the others
	g.Go(func() error {
		s, err := a.achievements.GetState(ctx, userID)
		if err != nil {
			fail(SourceLifetime, err)
			return nil
		}
		state = s
		return nil
	})

	g.Go(func() error {
		t, err := a.quizzes.TopicTallies(ctx, userID)
		if err != nil {
			fail(SourceTopics, err)
			return nil
		}
		tallies = t
		return nil
	})

	g.Go(func() error {
		f, err := a.forum.Counts(ctx, userID)
		if err != nil {
			fail(SourceForum, err)
			return nil
		}
		forum = f
		return nil
	})

	g.Go(func() error {
		n, err := a.streaks.Current(ctx, userID, a.today())
		if err != nil {
			fail(SourceStreak, err)
			return nil
		}
		current, streakOK = n, true
		return nil
	})

	g.Go(func() error {
		gs, err := a.achievements.GetGameTypeStats(ctx, userID)
		if err != nil {
			fail(SourceGames, err)
			return nil
		}
		gameStats = gs
		return nil
	})

	_ = g.Wait()

	if state != nil {
		snap.TotalQuizzes = state.TotalQuizzes
		snap.AverageScore = state.AverageScore
		snap.BestScore = state.BestScore
		snap.TotalTimeSpentMinutes = state.TotalTimeSpentMinutes
		snap.TotalGames = state.TotalGames
		snap.BestGameScore = state.BestGameScore
		snap.LongestStreak = state.LongestStreak
	}

	for _, t := range tallies {
		snap.TopicTallies[t.Topic] = t
		if t.Total > 0 {
			snap.TopicMastery[t.Topic] = float64(t.Correct) / float64(t.Total) * 100
		}
	}

	snap.ForumPosts = forum.Posts
	snap.ForumComments = forum.Comments

	if streakOK {
		snap.CurrentStreak = current
		if current > snap.LongestStreak {
			snap.LongestStreak = current
		}
	}

	for _, gs := range gameStats {
		snap.GameTypes[gs.GameType] = gs
	}

	if len(failures) > 0 {
		sort.Strings(failures)
		snap.Partial = true
		snap.FailedSources = failures
	}
	snap.ComputedAt = time.Now()

	return snap
}
