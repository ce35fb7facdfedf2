package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"achievehub/internal/badges"
	"achievehub/internal/cache"
	"achievehub/internal/config"
	"achievehub/internal/events"
	"achievehub/internal/models"
	"achievehub/internal/repositories"
	"achievehub/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type harness struct {
	*ServiceCollection
	repos *repositories.Collection
	clock *testClock
}

func newHarness(t *testing.T, mutate ...func(*repositories.Collection)) *harness {
	t.Helper()
	ctx := context.Background()

	repos := memory.NewCollection()
	for _, m := range mutate {
		m(repos)
	}

	migrations, err := badges.DefaultMigrations()
	require.NoError(t, err)
	registry := badges.NewRegistry(repos.Badges, migrations, zap.NewNop())
	_, err = registry.Migrate(ctx)
	require.NoError(t, err)
	_, err = registry.Load(ctx)
	require.NoError(t, err)

	bus := events.NewEventBus(nil, zap.NewNop())
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Stop(stopCtx)
	})

	clock := &testClock{t: time.Date(2024, time.September, 20, 10, 0, 0, 0, time.UTC)}
	cfg := &config.EngineConfig{
		StorageDriver:           "memory",
		TimeZone:                "UTC",
		AchievementHistoryLimit: 50,
		CalendarDefaultDays:     30,
		CalendarMaxDays:         366,
		StatsTimeout:            time.Second,
		StatsConcurrency:        4,
		HeldBadgesCacheTTL:      time.Minute,
	}

	sc, err := NewServiceCollection(Infrastructure{
		Repositories: repos,
		Registry:     registry,
		Cache:        cache.NewMemoryCache(&cache.Config{MaxKeys: 100, TTL: time.Minute}, zap.NewNop()),
		EventBus:     bus,
		Clock:        clock.Now,
	}, cfg, zap.NewNop())
	require.NoError(t, err)

	return &harness{ServiceCollection: sc, repos: repos, clock: clock}
}

func score(f float64) *float64 { return &f }

func quiz(s float64, quizType string) *TrackActivityRequest {
	return &TrackActivityRequest{
		ActivityType: models.ActivityQuizCompleted,
		Payload: models.ActivityPayload{
			Score:            score(s),
			QuizType:         quizType,
			TimeSpentSeconds: 300,
		},
	}
}

func ids(awarded []models.AwardedBadge) []string {
	out := make([]string, 0, len(awarded))
	for _, a := range awarded {
		out = append(out, a.BadgeID)
	}
	return out
}

func countOf(list []string, id string) int {
	n := 0
	for _, v := range list {
		if v == id {
			n++
		}
	}
	return n
}

func TestTrack_FirstPerfectModelPaper(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	result, err := h.ActivityService.Track(ctx, 1, quiz(100, models.QuizTypeModelPaper))
	require.NoError(t, err)

	got := ids(result.NewlyAwarded)
	assert.Equal(t, len(got), result.Count)
	for _, id := range []string{"first_quiz", "model_paper_80", "model_paper_90", "perfect_score"} {
		assert.Equal(t, 1, countOf(got, id), id)
	}
	assert.NotContains(t, got, "quiz_master_10")

	// nothing new happened, so nothing is awarded twice
	again, err := h.ActivityService.Check(ctx, 1, &CheckRequest{ActivityType: models.ActivityManual})
	require.NoError(t, err)
	assert.Empty(t, again.NewlyAwarded)
	assert.Zero(t, again.Count)
}

func TestTrack_EleventhQuizDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var tenth *models.CheckResult
	for i := 0; i < 10; i++ {
		res, err := h.ActivityService.Track(ctx, 5, quiz(50, "practice"))
		require.NoError(t, err)
		tenth = res
	}
	assert.Contains(t, ids(tenth.NewlyAwarded), "quiz_master_10")

	eleventh, err := h.ActivityService.Track(ctx, 5, quiz(50, "practice"))
	require.NoError(t, err)
	assert.NotContains(t, ids(eleventh.NewlyAwarded), "quiz_master_10")
	assert.NotContains(t, ids(eleventh.NewlyAwarded), "quiz_master_50")

	held, err := h.repos.Achievements.GetHeldBadges(ctx, 5)
	require.NoError(t, err)
	heldIDs := make([]string, 0, len(held))
	for _, b := range held {
		heldIDs = append(heldIDs, b.BadgeID)
	}
	assert.Equal(t, 1, countOf(heldIDs, "quiz_master_10"))
	assert.NotContains(t, heldIDs, "quiz_master_50")

	state, err := h.repos.Achievements.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), state.TotalQuizzes)
	assert.InDelta(t, 50.0, state.AverageScore, 1e-9)
	assert.Equal(t, int64(55), state.TotalTimeSpentMinutes)
}

func TestCheckAndAward_ConcurrentCyclesAwardOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.repos.Achievements.UpdateState(ctx, 9, func(s *models.UserAchievementState) error {
		s.RecordQuiz(10, 0)
		return nil
	})
	require.NoError(t, err)

	const cycles = 16
	results := make([][]models.AwardedBadge, cycles)
	var wg sync.WaitGroup
	for i := 0; i < cycles; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.AwardEngine.CheckAndAward(ctx, 9, models.ActivityDashboardView, models.ActivityPayload{})
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += countOf(ids(r), "first_quiz")
	}
	assert.Equal(t, 1, total)

	engine := h.AwardEngine.(*awardEngine)
	assert.Zero(t, engine.locks.size())
}

func TestCheckAndAward_HeldBadgesAreMonotonic(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var before int
	for i := 0; i < 5; i++ {
		_, err := h.ActivityService.Track(ctx, 3, quiz(float64(40+i*15), "practice"))
		require.NoError(t, err)

		held, err := h.repos.Achievements.GetHeldBadges(ctx, 3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(held), before)
		before = len(held)
	}
}

func TestCheckAndAward_UnknownActivityTypeAwardsNothing(t *testing.T) {
	h := newHarness(t)
	assert.Empty(t, h.AwardEngine.CheckAndAward(context.Background(), 1, "teleported", models.ActivityPayload{}))
}

type failingHeld struct {
	repositories.AchievementRepository
}

func (failingHeld) GetHeldBadges(context.Context, int64) ([]models.HeldBadge, error) {
	return nil, errors.New("held badges unavailable")
}

func TestTrack_AwardFailureDoesNotFailTheActivity(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *repositories.Collection) {
		c.Achievements = failingHeld{c.Achievements}
	})

	result, err := h.ActivityService.Track(ctx, 2, quiz(100, models.QuizTypeModelPaper))
	require.NoError(t, err)
	assert.Empty(t, result.NewlyAwarded)

	day, err := h.Ledger.GetDay(ctx, 2, h.Ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(1), day.QuizzesCompleted)
}

type failingQuizzes struct {
	repositories.QuizRepository
}

func (failingQuizzes) RecordOutcome(context.Context, *models.QuizOutcome) error {
	return errors.New("quiz store unavailable")
}

// quizFailingRecorder hands every recording a quiz store that fails
type quizFailingRecorder struct {
	repositories.Recorder
}

func (r quizFailingRecorder) InTx(ctx context.Context, fn func(repositories.Stores) error) error {
	return r.Recorder.InTx(ctx, func(s repositories.Stores) error {
		s.Quizzes = failingQuizzes{s.Quizzes}
		return fn(s)
	})
}

func TestTrack_FailedRecordingChangesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, func(c *repositories.Collection) {
		c.Recorder = quizFailingRecorder{c.Recorder}
	})

	_, err := h.ActivityService.Track(ctx, 5, quiz(80, "adaptive"))
	require.Error(t, err)
	assert.Equal(t, 500, GetServiceError(err).GetStatusCode())

	_, ok, err := h.Ledger.OldestDay(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	state, err := h.repos.Achievements.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Zero(t, state.TotalQuizzes)
	assert.Zero(t, state.TotalTimeSpentMinutes)
	assert.Zero(t, state.CurrentStreak)

	held, err := h.repos.Achievements.GetHeldBadges(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, held)
}

func TestTrack_ReplayedForumPostCountsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	post := &TrackActivityRequest{
		ActivityType: models.ActivityForumPostCreated,
		Payload:      models.ActivityPayload{PostID: "p-7", Topic: "geometry"},
	}
	for i := 0; i < 3; i++ {
		_, err := h.ActivityService.Track(ctx, 6, post)
		require.NoError(t, err)
	}

	counts, err := h.repos.Forum.Counts(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Posts)

	day, err := h.Ledger.GetDay(ctx, 6, h.Ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, counts.Posts, day.ForumPosts)
}

func TestTrack_Validation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	tests := []struct {
		name   string
		userID int64
		req    *TrackActivityRequest
	}{
		{"quiz without score", 1, &TrackActivityRequest{ActivityType: models.ActivityQuizCompleted}},
		{"score above 100", 1, quiz(120, "")},
		{"negative score", 1, quiz(-1, "")},
		{"unknown type", 1, &TrackActivityRequest{ActivityType: "teleported"}},
		{"game without type", 1, &TrackActivityRequest{ActivityType: models.ActivityGameCompleted}},
		{"comment without post", 1, &TrackActivityRequest{ActivityType: models.ActivityForumCommentCreated}},
		{"bad user", 0, quiz(80, "")},
		{"nil request", 1, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.ActivityService.Track(ctx, tt.userID, tt.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), err.Error())
			assert.Equal(t, 400, GetServiceError(err).GetStatusCode())
		})
	}
}

func TestTrack_GamesAndForum(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	game, err := h.ActivityService.Track(ctx, 4, &TrackActivityRequest{
		ActivityType: models.ActivityGameCompleted,
		Payload:      models.ActivityPayload{GameType: "word-match", TimeSpentSeconds: 120},
	})
	require.NoError(t, err)
	assert.Contains(t, ids(game.NewlyAwarded), "game_explorer")

	stats, err := h.repos.Achievements.GetGameTypeStats(ctx, 4)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "word-match", stats[0].GameType)
	assert.Equal(t, 0.0, stats[0].BestScore)

	post, err := h.ActivityService.Track(ctx, 4, &TrackActivityRequest{
		ActivityType: models.ActivityForumPostCreated,
		Payload:      models.ActivityPayload{PostID: "p-1", Topic: "algebra"},
	})
	require.NoError(t, err)
	assert.Contains(t, ids(post.NewlyAwarded), "forum_voice")

	_, err = h.ActivityService.Track(ctx, 7, &TrackActivityRequest{
		ActivityType: models.ActivityForumCommentCreated,
		Payload:      models.ActivityPayload{PostID: "p-1"},
	})
	require.NoError(t, err)

	counts, err := h.repos.Forum.Counts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Posts)
	assert.Equal(t, int64(1), counts.Comments)

	day, err := h.Ledger.GetDay(ctx, 4, h.Ledger.Today())
	require.NoError(t, err)
	assert.Equal(t, int64(1), day.GamesPlayed)
	assert.Equal(t, int64(1), day.ForumPosts)
	assert.Equal(t, int64(2), day.MinutesSpent)
}

func TestTrack_DashboardViewRecordsNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res, err := h.ActivityService.Track(ctx, 8, &TrackActivityRequest{ActivityType: models.ActivityDashboardView})
	require.NoError(t, err)
	assert.Empty(t, res.NewlyAwarded)

	_, ok, err := h.Ledger.OldestDay(ctx, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrack_StreakAndCalendar(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	base := h.clock.Now()

	// active D-2, D-1 and D
	for offset := -2; offset <= 0; offset++ {
		h.clock.Set(base.AddDate(0, 0, offset))
		_, err := h.ActivityService.Track(ctx, 6, quiz(70, "practice"))
		require.NoError(t, err)
	}

	state, err := h.repos.Achievements.GetState(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(3), state.CurrentStreak)
	assert.Equal(t, int64(3), state.LongestStreak)

	cal, err := h.BadgeService.GetActivityCalendar(ctx, 6, 7)
	require.NoError(t, err)
	require.Len(t, cal.Days, 3)
	assert.Equal(t, h.Ledger.Today(), cal.Days[0].Date)
	assert.True(t, cal.Days[2].Date.Before(cal.Days[1].Date))
	assert.Equal(t, int64(3), cal.CurrentStreak)
	assert.Equal(t, int64(3), cal.TotalActivities)
	assert.Equal(t, 3, cal.ActiveDays)
	assert.Equal(t, 7, cal.RangeDays)

	// recording invalidates the cached calendar
	_, err = h.ActivityService.Track(ctx, 6, quiz(70, "practice"))
	require.NoError(t, err)
	cal, err = h.BadgeService.GetActivityCalendar(ctx, 6, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), cal.Days[0].Quizzes)

	// two idle days later the streak is gone but the longest is kept
	h.clock.Set(base.AddDate(0, 0, 2))
	_, err = h.ActivityService.Track(ctx, 6, &TrackActivityRequest{
		ActivityType: models.ActivityForumPostCreated,
		Payload:      models.ActivityPayload{Topic: "geometry"},
	})
	require.NoError(t, err)
	state, err = h.repos.Achievements.GetState(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.CurrentStreak)
	assert.Equal(t, int64(3), state.LongestStreak)
}

func TestGetActivityCalendar_Window(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	cal, err := h.BadgeService.GetActivityCalendar(ctx, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 30, cal.RangeDays)
	assert.Empty(t, cal.Days)
	assert.Zero(t, cal.CurrentStreak)

	_, err = h.BadgeService.GetActivityCalendar(ctx, 1, 367)
	assert.True(t, IsValidationError(err))
	_, err = h.BadgeService.GetActivityCalendar(ctx, 1, -1)
	assert.True(t, IsValidationError(err))
}

func TestGetHeldBadges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	empty, err := h.BadgeService.GetHeldBadges(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, empty.Earned)
	assert.Equal(t, 22, empty.TotalAvailable)
	assert.Zero(t, empty.ProgressPercent)

	_, err = h.ActivityService.Track(ctx, 11, &TrackActivityRequest{
		ActivityType: models.ActivityGameCompleted,
		Payload:      models.ActivityPayload{GameType: "speed", Score: score(1500)},
	})
	require.NoError(t, err)

	held, err := h.BadgeService.GetHeldBadges(ctx, 11)
	require.NoError(t, err)
	// game_explorer and high_scorer
	assert.Equal(t, 2, held.TotalEarned)
	assert.Len(t, held.Earned, 2)
	assert.Len(t, held.All, 22)
	assert.Equal(t, 9, held.ProgressPercent) // 2/22 rounds to 9

	for _, b := range held.All {
		if b.BadgeID == "high_scorer" {
			assert.True(t, b.Earned)
			require.NotNil(t, b.EarnedAt)
		}
		if b.BadgeID == "first_quiz" {
			assert.False(t, b.Earned)
			assert.Nil(t, b.EarnedAt)
		}
	}

	// deprecated badges stay earned but leave the catalog
	require.NoError(t, h.Registry.Deprecate(ctx, "high_scorer"))
	held, err = h.BadgeService.GetHeldBadges(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, 21, held.TotalAvailable)
	assert.Len(t, held.All, 21)
	assert.Equal(t, 1, held.TotalEarned)
	assert.Len(t, held.Earned, 2)
}

func TestGetHeldBadges_UnknownStoredBadge(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.repos.Achievements.CommitAwards(ctx, 12, []repositories.AwardGrant{{BadgeID: "retired_legacy", Title: "Legacy"}}, time.Now(), 50)
	require.NoError(t, err)

	held, err := h.BadgeService.GetHeldBadges(ctx, 12)
	require.NoError(t, err)
	require.Len(t, held.Earned, 1)
	assert.Equal(t, "retired_legacy", held.Earned[0].BadgeID)
	assert.Empty(t, held.Earned[0].Name)
	assert.Zero(t, held.TotalEarned)
}

func TestGetBadgeStats(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.ActivityService.Track(ctx, 13, quiz(100, models.QuizTypeModelPaper))
	require.NoError(t, err)

	stats, err := h.BadgeService.GetBadgeStats(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, 22, stats.TotalAvailable)
	// first_quiz, excellent_score, perfect_score, both model papers and the four averages
	assert.Equal(t, 9, stats.TotalEarned)
	assert.Equal(t, 41, stats.ProgressPercent)
	assert.Equal(t, 6, stats.ByCategory[models.CategoryQuiz])
	assert.Equal(t, 3, stats.EarnedByCategory[models.CategoryQuiz])
	assert.Equal(t, 6, stats.EarnedByCategory[models.CategoryAchievement])
	assert.Len(t, stats.RecentAchievements, 9)

	total := 0
	for _, n := range stats.EarnedByRarity {
		total += n
	}
	assert.Equal(t, stats.TotalEarned, total)
}

func TestListCatalog(t *testing.T) {
	h := newHarness(t)

	list, err := h.BadgeService.ListCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 22)
	for i := 1; i < len(list); i++ {
		assert.LessOrEqual(t, string(list[i-1].Category), string(list[i].Category))
	}
}

func TestTrack_PublishesBadgeAwarded(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	received := make(chan *events.BadgeAwardedEvent, 1)
	require.NoError(t, h.EventBus.Subscribe(events.TypeBadgeAwarded, events.NewTypedEventHandler("test", func(_ context.Context, e *events.BadgeAwardedEvent) error {
		received <- e
		return nil
	})))

	_, err := h.ActivityService.Track(ctx, 21, quiz(90, "practice"))
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, int64(21), e.GetUserID())
		assert.Contains(t, ids(e.Badges), "first_quiz")
	case <-time.After(2 * time.Second):
		t.Fatal("badge.awarded was not published")
	}
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	health := h.HealthCheck(context.Background())
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 2, health.Catalog.Version)
	assert.Equal(t, 22, health.Catalog.ActiveBadges)
	assert.Contains(t, health.Dependencies, "storage")
	assert.Contains(t, health.Dependencies, "cache")
}

func TestUserLocks(t *testing.T) {
	locks := newUserLocks()

	unlockA := locks.Lock(1)
	unlockB := locks.Lock(2)
	assert.Equal(t, 2, locks.size())

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock(1)
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same user must wait")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	<-acquired
	unlockB()
	assert.Eventually(t, func() bool { return locks.size() == 0 }, time.Second, 5*time.Millisecond)
}
