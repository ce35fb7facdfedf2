// Package criteria decides whether a user's statistics satisfy badge criteria.
package criteria

import (
	"achievehub/internal/models"

	"go.uber.org/zap"
)

// defaultTopicAttempts is the threshold for quiz_completion/all when the
// criterion carries no numeric value
const defaultTopicAttempts = 10

// Evaluator evaluates criteria against a statistics snapshot and the
// event that triggered the check cycle. It holds no state.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates an evaluator
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Satisfies reports whether every criterion of def holds. Evaluation stops
// at the first failing criterion. A definition without criteria is never
// satisfied.
func (e *Evaluator) Satisfies(def models.BadgeDefinition, stats *models.StatsSnapshot, event models.ActivityEvent) bool {
	if len(def.Criteria) == 0 {
		return false
	}
	for _, c := range def.Criteria {
		if !e.Evaluate(c, stats, event) {
			return false
		}
	}
	return true
}

// Evaluate tests one criterion
func (e *Evaluator) Evaluate(c models.Criterion, stats *models.StatsSnapshot, event models.ActivityEvent) bool {
	if stats == nil {
		return false
	}

	switch c.Type {
	case models.CriterionTotalQuizzes:
		return CompareNumber(float64(stats.TotalQuizzes), c.Condition, c.Value)

	case models.CriterionTimeSpent:
		return CompareNumber(float64(stats.TotalTimeSpentMinutes), c.Condition, c.Value)

	case models.CriterionStreak:
		return CompareNumber(float64(stats.CurrentStreak), c.Condition, c.Value)

	case models.CriterionQuizScore:
		return e.quizScore(c, stats, event)

	case models.CriterionModelPaperScore:
		if event.Payload.QuizType != models.QuizTypeModelPaper || !event.Payload.HasScore() {
			return false
		}
		return CompareNumber(*event.Payload.Score, c.Condition, c.Value)

	case models.CriterionTopicMastery:
		return e.topicMastery(c, stats)

	case models.CriterionForumParticipation:
		// numeric and list values both compare the post count
		return CompareNumber(float64(stats.ForumPosts), c.Condition, c.Value)

	case models.CriterionGameAchievement:
		switch c.Condition {
		// the condition names the metric; both compare with >=
		case models.ConditionBestScore:
			return CompareNumber(stats.BestGameScore, models.ConditionGreaterEqual, c.Value)
		case models.ConditionTotalGames:
			return CompareNumber(float64(stats.TotalGames), models.ConditionGreaterEqual, c.Value)
		default:
			return false
		}

	case models.CriterionQuizCompletion:
		if c.Condition == models.ConditionAll && c.Topic != "" {
			threshold := float64(defaultTopicAttempts)
			if n, ok := c.Value.Number(); ok && n != 0 {
				threshold = n
			}
			return float64(stats.TopicTallies[c.Topic].Total) >= threshold
		}
		return CompareNumber(float64(stats.TotalQuizzes), c.Condition, c.Value)

	default:
		e.logger.Warn("Unknown criterion type", zap.String("type", string(c.Type)))
		return false
	}
}

// quizScore compares the triggering event's score for "scored exactly 100
// just now" rules and the lifetime average otherwise
func (e *Evaluator) quizScore(c models.Criterion, stats *models.StatsSnapshot, event models.ActivityEvent) bool {
	if c.Condition == models.ConditionEquals && event.Payload.HasScore() {
		if n, ok := c.Value.Number(); ok && n == 100 {
			return CompareNumber(*event.Payload.Score, c.Condition, c.Value)
		}
	}
	if stats.TotalQuizzes == 0 {
		return false
	}
	return CompareNumber(stats.AverageScore, c.Condition, c.Value)
}

// topicMastery checks one topic when set, otherwise any topic
func (e *Evaluator) topicMastery(c models.Criterion, stats *models.StatsSnapshot) bool {
	if c.Topic != "" {
		mastery, ok := stats.Mastery(c.Topic)
		if !ok {
			return false
		}
		return CompareNumber(mastery, c.Condition, c.Value)
	}
	for _, mastery := range stats.TopicMastery {
		if CompareNumber(mastery, c.Condition, c.Value) {
			return true
		}
	}
	return false
}
