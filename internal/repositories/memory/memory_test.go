package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"achievehub/internal/models"
	"achievehub/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityStore_IncrementIsAdditive(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	day := models.Day{Year: 2024, Month: time.March, Date: 3}
	at := time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Increment(ctx, 1, day, models.ActivityDelta{QuizzesCompleted: 1, MinutesSpent: 2}, at)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := store.GetDay(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(50), rec.QuizzesCompleted)
	assert.Equal(t, int64(100), rec.MinutesSpent)
}

func TestActivityStore_RangeAndOldest(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := models.Day{Year: 2024, Month: time.January, Date: 10}

	for _, offset := range []int{4, 0, 2} {
		_, err := store.Increment(ctx, 7, base.AddDays(offset), models.ActivityDelta{ForumPosts: 1}, time.Now())
		require.NoError(t, err)
	}
	_, err := store.Increment(ctx, 8, base.AddDays(-5), models.ActivityDelta{ForumPosts: 1}, time.Now())
	require.NoError(t, err)

	days, err := store.ListRange(ctx, 7, base, base.AddDays(3), 0)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, base, days[0].Day)
	assert.Equal(t, base.AddDays(2), days[1].Day)

	oldest, ok, err := store.OldestDay(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, base, oldest)

	_, ok, err = store.OldestDay(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAchievementStore_CommitAwardsIsInsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewAchievementStore()
	at := time.Now()

	grants := []repositories.AwardGrant{{BadgeID: "first_quiz", Title: "First Steps"}}

	first, err := store.CommitAwards(ctx, 1, grants, at, 50)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	second, err := store.CommitAwards(ctx, 1, grants, at, 50)
	require.NoError(t, err)
	assert.Empty(t, second)

	history, err := store.ListAchievements(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAchievementStore_HistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	store := NewAchievementStore()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		grant := repositories.AwardGrant{BadgeID: fmt.Sprintf("badge_%d", i), Title: fmt.Sprintf("Badge %d", i)}
		_, err := store.CommitAwards(ctx, 1, []repositories.AwardGrant{grant}, start.Add(time.Duration(i)*time.Hour), 5)
		require.NoError(t, err)
	}

	history, err := store.ListAchievements(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 5)
	assert.Equal(t, "badge_7", history[0].BadgeID)
	assert.Equal(t, "badge_3", history[4].BadgeID)

	held, err := store.GetHeldBadges(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, held, 8, "held set is never trimmed")
}

func TestAchievementStore_UpdateStateKeepsLongestStreak(t *testing.T) {
	ctx := context.Background()
	store := NewAchievementStore()

	_, err := store.UpdateState(ctx, 3, func(s *models.UserAchievementState) error {
		s.UpdateStreak(9)
		return nil
	})
	require.NoError(t, err)

	state, err := store.UpdateState(ctx, 3, func(s *models.UserAchievementState) error {
		s.CurrentStreak = 1
		s.LongestStreak = 1
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), state.LongestStreak)

	_, err = store.UpdateState(ctx, 3, func(s *models.UserAchievementState) error {
		s.TotalQuizzes = 1000
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	state, err = store.GetState(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, state.TotalQuizzes)
}

func TestBadgeStore_ApplyCatalogVersionNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewBadgeStore()

	v1 := []models.BadgeDefinition{{BadgeID: "first_quiz", Name: "First Steps"}}
	n, err := store.ApplyCatalogVersion(ctx, 1, v1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v2 := []models.BadgeDefinition{{BadgeID: "first_quiz", Name: "Renamed"}, {BadgeID: "forum_voice", Name: "Forum Voice"}}
	n, err = store.ApplyCatalogVersion(ctx, 2, v2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = store.ApplyCatalogVersion(ctx, 2, v2)
	require.NoError(t, err)
	assert.Zero(t, n)

	version, err := store.CatalogVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	defs, err := store.ListDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "First Steps", defs[0].Name)
	assert.Equal(t, 2, defs[1].CatalogVersion)

	found, err := store.SetDeprecated(ctx, "missing", true)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestForumStore_PostsOnceAndCommentsNeverDecrease(t *testing.T) {
	ctx := context.Background()
	store := NewForumStore()

	inserted, err := store.RecordPost(ctx, &models.ForumPost{PostID: "p1", UserID: 4})
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.RecordPost(ctx, &models.ForumPost{PostID: "p1", UserID: 9})
	require.NoError(t, err)
	assert.False(t, inserted)
	_, err = store.RecordPost(ctx, &models.ForumPost{PostID: "p2", UserID: 4})
	require.NoError(t, err)

	five, two := int64(5), int64(2)
	_, err = store.RecordComment(ctx, "p1", &five)
	require.NoError(t, err)
	_, err = store.RecordComment(ctx, "p1", &two)
	require.NoError(t, err)
	_, err = store.RecordComment(ctx, "p2", nil)
	require.NoError(t, err)

	found, err := store.RecordComment(ctx, "unknown", nil)
	require.NoError(t, err)
	assert.False(t, found)

	counts, err := store.Counts(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, models.ForumCounts{Posts: 2, Comments: 6}, counts)
}

func TestQuizStore_TopicTallies(t *testing.T) {
	ctx := context.Background()
	store := NewQuizStore()

	require.NoError(t, store.RecordOutcome(ctx, &models.QuizOutcome{UserID: 1, Score: 80, TopicResults: []models.TopicResult{
		{Topic: "algebra", Correct: 4, Total: 5},
		{Topic: "geometry", Correct: 1, Total: 2},
	}}))
	require.NoError(t, store.RecordOutcome(ctx, &models.QuizOutcome{UserID: 1, Score: 60, TopicResults: []models.TopicResult{
		{Topic: "algebra", Correct: 2, Total: 5},
	}}))
	require.NoError(t, store.RecordOutcome(ctx, &models.QuizOutcome{UserID: 2, TopicResults: []models.TopicResult{
		{Topic: "algebra", Correct: 9, Total: 9},
	}}))

	tallies, err := store.TopicTallies(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []models.TopicTally{
		{Topic: "algebra", Correct: 6, Total: 10},
		{Topic: "geometry", Correct: 1, Total: 2},
	}, tallies)
}

func TestRecorder_FailedRecordingLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	repos := NewCollection()
	day := models.Day{Year: 2024, Month: time.May, Date: 20}
	at := day.Start(time.UTC)

	// a committed recording the failed one must not disturb
	require.NoError(t, repos.Recorder.InTx(ctx, func(s repositories.Stores) error {
		if _, err := s.Activity.Increment(ctx, 3, day, models.ActivityDelta{QuizzesCompleted: 1}, at); err != nil {
			return err
		}
		_, err := s.Achievements.UpdateState(ctx, 3, func(st *models.UserAchievementState) error {
			st.RecordQuiz(70, 0)
			return nil
		})
		return err
	}))

	boom := fmt.Errorf("store unavailable")
	err := repos.Recorder.InTx(ctx, func(s repositories.Stores) error {
		if _, err := s.Activity.Increment(ctx, 3, day, models.ActivityDelta{QuizzesCompleted: 1, ForumPosts: 1}, at); err != nil {
			return err
		}
		if _, err := s.Activity.Increment(ctx, 3, day.AddDays(1), models.ActivityDelta{GamesPlayed: 1}, at); err != nil {
			return err
		}
		if err := s.Quizzes.RecordOutcome(ctx, &models.QuizOutcome{UserID: 3, Score: 90, TopicResults: []models.TopicResult{
			{Topic: "algebra", Correct: 9, Total: 10},
		}}); err != nil {
			return err
		}
		if _, err := s.Achievements.RecordGame(ctx, 3, "quick-math", 500, at); err != nil {
			return err
		}
		if _, err := s.Forum.RecordPost(ctx, &models.ForumPost{PostID: "p9", UserID: 3}); err != nil {
			return err
		}
		if _, err := s.Achievements.UpdateState(ctx, 3, func(st *models.UserAchievementState) error {
			st.RecordQuiz(90, 0)
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := repos.Activity.GetDay(ctx, 3, day)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.QuizzesCompleted)
	assert.Zero(t, rec.ForumPosts)

	next, err := repos.Activity.GetDay(ctx, 3, day.AddDays(1))
	require.NoError(t, err)
	assert.Nil(t, next)

	state, err := repos.Achievements.GetState(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.TotalQuizzes)
	assert.Equal(t, 70.0, state.AverageScore)

	tallies, err := repos.Quizzes.TopicTallies(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, tallies)

	games, err := repos.Achievements.GetGameTypeStats(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, games)

	counts, err := repos.Forum.Counts(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, counts.Posts)
}
