package criteria

import (
	"testing"

	"achievehub/internal/models"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func score(f float64) *float64 { return &f }

func criterion(typ models.CriterionType, cond models.Condition, value models.CriterionValue) models.Criterion {
	return models.Criterion{Type: typ, Condition: cond, Value: value}
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	stats := models.NewStatsSnapshot(1)
	stats.TotalQuizzes = 12
	stats.AverageScore = 72
	stats.TotalTimeSpentMinutes = 640
	stats.CurrentStreak = 7
	stats.ForumPosts = 3
	stats.ForumComments = 40
	stats.TotalGames = 10
	stats.BestGameScore = 1000
	stats.TopicMastery["algebra"] = 85
	stats.TopicMastery["geometry"] = 40
	stats.TopicTallies["algebra"] = models.TopicTally{Topic: "algebra", Correct: 17, Total: 20}
	stats.TopicTallies["geometry"] = models.TopicTally{Topic: "geometry", Correct: 2, Total: 5}

	quiz := models.ActivityEvent{Type: models.ActivityQuizCompleted, Payload: models.ActivityPayload{Score: score(100)}}
	modelPaper := models.ActivityEvent{Type: models.ActivityQuizCompleted, Payload: models.ActivityPayload{Score: score(85), QuizType: models.QuizTypeModelPaper}}
	noScore := models.ActivityEvent{Type: models.ActivityDashboardView}

	n := models.NumberValue

	tests := []struct {
		name  string
		c     models.Criterion
		event models.ActivityEvent
		want  bool
	}{
		{"total quizzes", criterion(models.CriterionTotalQuizzes, models.ConditionGreaterEqual, n(10)), noScore, true},
		{"total quizzes short", criterion(models.CriterionTotalQuizzes, models.ConditionGreaterEqual, n(50)), noScore, false},
		{"time spent", criterion(models.CriterionTimeSpent, models.ConditionGreaterEqual, n(600)), noScore, true},
		{"streak", criterion(models.CriterionStreak, models.ConditionGreaterEqual, n(7)), noScore, true},
		{"perfect score uses event", criterion(models.CriterionQuizScore, models.ConditionEquals, n(100)), quiz, true},
		{"perfect score without event score uses average", criterion(models.CriterionQuizScore, models.ConditionEquals, n(100)), noScore, false},
		{"average above", criterion(models.CriterionQuizScore, models.ConditionGreaterThan, n(65)), quiz, true},
		{"average below", criterion(models.CriterionQuizScore, models.ConditionGreaterThan, n(75)), quiz, false},
		{"model paper", criterion(models.CriterionModelPaperScore, models.ConditionGreaterEqual, n(80)), modelPaper, true},
		{"model paper too low", criterion(models.CriterionModelPaperScore, models.ConditionGreaterEqual, n(90)), modelPaper, false},
		{"model paper wrong quiz type", criterion(models.CriterionModelPaperScore, models.ConditionGreaterEqual, n(80)), quiz, false},
		{"model paper no score", criterion(models.CriterionModelPaperScore, models.ConditionGreaterEqual, n(0)), models.ActivityEvent{Payload: models.ActivityPayload{QuizType: models.QuizTypeModelPaper}}, false},
		{"any topic mastery", criterion(models.CriterionTopicMastery, models.ConditionGreaterEqual, n(80)), noScore, true},
		{"specific topic mastery", models.Criterion{Type: models.CriterionTopicMastery, Condition: models.ConditionGreaterEqual, Value: n(80), Topic: "geometry"}, noScore, false},
		{"unknown topic mastery", models.Criterion{Type: models.CriterionTopicMastery, Condition: models.ConditionLessThan, Value: n(80), Topic: "calculus"}, noScore, false},
		{"forum numeric compares posts", criterion(models.CriterionForumParticipation, models.ConditionGreaterEqual, n(3)), noScore, true},
		{"forum numeric ignores comments", criterion(models.CriterionForumParticipation, models.ConditionGreaterEqual, n(10)), noScore, false},
		{"game best score", criterion(models.CriterionGameAchievement, models.ConditionBestScore, n(1000)), noScore, true},
		{"game total games", criterion(models.CriterionGameAchievement, models.ConditionTotalGames, n(10)), noScore, true},
		{"game total games short", criterion(models.CriterionGameAchievement, models.ConditionTotalGames, n(11)), noScore, false},
		{"game other condition", criterion(models.CriterionGameAchievement, models.ConditionEquals, n(10)), noScore, false},
		{"quiz completion all topic default", models.Criterion{Type: models.CriterionQuizCompletion, Condition: models.ConditionAll, Topic: "algebra"}, noScore, true},
		{"quiz completion all topic short", models.Criterion{Type: models.CriterionQuizCompletion, Condition: models.ConditionAll, Topic: "geometry"}, noScore, false},
		{"quiz completion all topic explicit", models.Criterion{Type: models.CriterionQuizCompletion, Condition: models.ConditionAll, Topic: "geometry", Value: n(5)}, noScore, true},
		{"quiz completion fallback", criterion(models.CriterionQuizCompletion, models.ConditionGreaterEqual, n(12)), noScore, true},
		{"unknown type", criterion("karma", models.ConditionGreaterEqual, n(0)), noScore, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.c, stats, tt.event))
		})
	}
}

func TestEvaluator_QuizScoreWithoutQuizzes(t *testing.T) {
	e := NewEvaluator(nil)
	stats := models.NewStatsSnapshot(1)

	c := criterion(models.CriterionQuizScore, models.ConditionLessThan, models.NumberValue(50))
	assert.False(t, e.Evaluate(c, stats, models.ActivityEvent{}))
	assert.False(t, e.Evaluate(c, nil, models.ActivityEvent{}))
}

func TestEvaluator_SatisfiesIsConjunction(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	stats := models.NewStatsSnapshot(1)
	stats.TotalQuizzes = 5
	stats.CurrentStreak = 2

	both := models.BadgeDefinition{Criteria: []models.Criterion{
		criterion(models.CriterionTotalQuizzes, models.ConditionGreaterEqual, models.NumberValue(5)),
		criterion(models.CriterionStreak, models.ConditionGreaterEqual, models.NumberValue(2)),
	}}
	assert.True(t, e.Satisfies(both, stats, models.ActivityEvent{}))

	oneFails := models.BadgeDefinition{Criteria: []models.Criterion{
		criterion(models.CriterionTotalQuizzes, models.ConditionGreaterEqual, models.NumberValue(5)),
		criterion(models.CriterionStreak, models.ConditionGreaterEqual, models.NumberValue(3)),
	}}
	assert.False(t, e.Satisfies(oneFails, stats, models.ActivityEvent{}))

	assert.False(t, e.Satisfies(models.BadgeDefinition{}, stats, models.ActivityEvent{}))
}
