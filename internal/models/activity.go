package models

import "time"

// ActivityType identifies what triggered a check cycle
type ActivityType string

const (
	ActivityQuizCompleted       ActivityType = "quiz_completed"
	ActivityGameCompleted       ActivityType = "game_completed"
	ActivityForumPostCreated    ActivityType = "forum_post_created"
	ActivityForumCommentCreated ActivityType = "forum_comment_created"
	ActivityDashboardView       ActivityType = "dashboard_view"
	ActivityManual              ActivityType = "manual"
)

// ActivityTypes lists every accepted activity type
var ActivityTypes = []ActivityType{
	ActivityQuizCompleted,
	ActivityGameCompleted,
	ActivityForumPostCreated,
	ActivityForumCommentCreated,
	ActivityDashboardView,
	ActivityManual,
}

// IsValid reports whether t is a known activity type
func (t ActivityType) IsValid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RecordsActivity reports whether events of this type change the ledger
// or lifetime counters. Dashboard views and manual checks only re-check.
func (t ActivityType) RecordsActivity() bool {
	switch t {
	case ActivityQuizCompleted, ActivityGameCompleted, ActivityForumPostCreated, ActivityForumCommentCreated:
		return true
	default:
		return false
	}
}

// QuizTypeModelPaper is the quiz type that model_paper_score criteria look for
const QuizTypeModelPaper = "model-paper"

// ===============================
// ACTIVITY LEDGER
// ===============================

// ActivityDay is the per-user, per-day accumulation of activity counts
type ActivityDay struct {
	UserID           int64     `json:"user_id"`
	Day              Day       `json:"date"`
	QuizzesCompleted int64     `json:"quizzes"`
	GamesPlayed      int64     `json:"games"`
	ForumPosts       int64     `json:"posts"`
	MinutesSpent     int64     `json:"minutes_spent"`
	LastActiveAt     time.Time `json:"last_active_at"`
}

// IsActive reports whether any activity was counted on this day
func (a ActivityDay) IsActive() bool {
	return a.QuizzesCompleted > 0 || a.GamesPlayed > 0 || a.ForumPosts > 0 || a.MinutesSpent > 0
}

// TotalActivities is the number of discrete activities (time is not an activity)
func (a ActivityDay) TotalActivities() int64 {
	return a.QuizzesCompleted + a.GamesPlayed + a.ForumPosts
}

// Apply adds delta to the day's counters
func (a *ActivityDay) Apply(delta ActivityDelta, at time.Time) {
	a.QuizzesCompleted += delta.QuizzesCompleted
	a.GamesPlayed += delta.GamesPlayed
	a.ForumPosts += delta.ForumPosts
	a.MinutesSpent += delta.MinutesSpent
	if at.After(a.LastActiveAt) {
		a.LastActiveAt = at
	}
}

// ActivityDelta is a partial count vector applied additively to an ActivityDay
type ActivityDelta struct {
	QuizzesCompleted int64 `json:"quizzes_completed,omitempty" validate:"gte=0"`
	GamesPlayed      int64 `json:"games_played,omitempty" validate:"gte=0"`
	ForumPosts       int64 `json:"forum_posts,omitempty" validate:"gte=0"`
	MinutesSpent     int64 `json:"minutes_spent,omitempty" validate:"gte=0"`
}

// IsZero reports whether the delta changes nothing
func (d ActivityDelta) IsZero() bool {
	return d == ActivityDelta{}
}

// ===============================
// ACTIVITY EVENTS
// ===============================

// TopicResult is the per-topic answer tally of a completed quiz
type TopicResult struct {
	Topic   string `json:"topic" validate:"required"`
	Correct int64  `json:"correct" validate:"gte=0,ltefield=Total"`
	Total   int64  `json:"total" validate:"gte=0"`
}

// ActivityPayload carries the event-specific fields reported by collaborators.
// Pointer fields distinguish "absent" from zero.
type ActivityPayload struct {
	// quiz_completed
	Score        *float64      `json:"score,omitempty" validate:"omitempty,gte=0"`
	QuizType     string        `json:"quizType,omitempty"`
	Topic        string        `json:"topic,omitempty"`
	Topics       []string      `json:"topics,omitempty"`
	TopicResults []TopicResult `json:"topicResults,omitempty" validate:"omitempty,dive"`

	// game_completed
	GameType       string `json:"gameType,omitempty"`
	CorrectAnswers int64  `json:"correctAnswers,omitempty" validate:"gte=0"`
	TotalQuestions int64  `json:"totalQuestions,omitempty" validate:"gte=0"`

	// quiz_completed and game_completed
	TimeSpentSeconds int64 `json:"timeSpentSeconds,omitempty" validate:"gte=0"`

	// forum_post_created / forum_comment_created
	PostID       string `json:"postId,omitempty"`
	CommentCount *int64 `json:"commentCount,omitempty" validate:"omitempty,gte=0"`

	// dashboard_view
	TotalQuizzes *int64   `json:"totalQuizzes,omitempty"`
	AverageScore *float64 `json:"averageScore,omitempty"`
	Streak       *int64   `json:"streak,omitempty"`
}

// HasScore reports whether a score was supplied
func (p ActivityPayload) HasScore() bool {
	return p.Score != nil
}

// ActivityEvent is the trigger of one check cycle. It is consumed once and discarded.
type ActivityEvent struct {
	Type       ActivityType    `json:"activityType"`
	Payload    ActivityPayload `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Delta derives the ledger increment for this event
func (e ActivityEvent) Delta() ActivityDelta {
	minutes := e.Payload.TimeSpentSeconds / 60
	switch e.Type {
	case ActivityQuizCompleted:
		return ActivityDelta{QuizzesCompleted: 1, MinutesSpent: minutes}
	case ActivityGameCompleted:
		return ActivityDelta{GamesPlayed: 1, MinutesSpent: minutes}
	case ActivityForumPostCreated:
		return ActivityDelta{ForumPosts: 1}
	default:
		return ActivityDelta{}
	}
}
