package models

import "time"

// StatsSnapshot is the point-in-time view a check cycle evaluates against.
// Missing subsections are left at their zero value.
type StatsSnapshot struct {
	UserID int64 `json:"userId"`

	TotalQuizzes          int64   `json:"totalQuizzes"`
	AverageScore          float64 `json:"averageScore"`
	BestScore             float64 `json:"bestScore"`
	TotalTimeSpentMinutes int64   `json:"totalTimeSpent"`

	// TopicMastery only holds topics with at least one answered question
	TopicMastery map[string]float64    `json:"topicMastery"`
	TopicTallies map[string]TopicTally `json:"topicTallies"`

	ForumPosts    int64 `json:"forumPosts"`
	ForumComments int64 `json:"forumComments"`

	CurrentStreak int64 `json:"streak"`
	LongestStreak int64 `json:"longestStreak"`

	TotalGames    int64                   `json:"totalGames"`
	BestGameScore float64                 `json:"bestGameScore"`
	GameTypes     map[string]GameTypeStat `json:"gameTypeStats"`

	// Partial is set when at least one source could not be read
	Partial       bool      `json:"partial"`
	FailedSources []string  `json:"failedSources,omitempty"`
	ComputedAt    time.Time `json:"computedAt"`
}

// NewStatsSnapshot returns an empty snapshot with initialised maps
func NewStatsSnapshot(userID int64) *StatsSnapshot {
	return &StatsSnapshot{
		UserID:       userID,
		TopicMastery: make(map[string]float64),
		TopicTallies: make(map[string]TopicTally),
		GameTypes:    make(map[string]GameTypeStat),
	}
}

// Mastery returns the mastery percentage of a topic and whether it is defined
func (s *StatsSnapshot) Mastery(topic string) (float64, bool) {
	m, ok := s.TopicMastery[topic]
	return m, ok
}

// ===============================
// QUERY RESULTS
// ===============================

// HeldBadges is the answer to "which badges does this user hold"
type HeldBadges struct {
	Earned          []BadgeWithStatus `json:"earnedBadges"`
	All             []BadgeWithStatus `json:"allBadges"`
	TotalEarned     int               `json:"totalEarned"`
	TotalAvailable  int               `json:"totalAvailable"`
	ProgressPercent int               `json:"progress"`
}

// BadgeStats breaks badge progress down by category and rarity
type BadgeStats struct {
	TotalEarned        int                   `json:"totalEarned"`
	TotalAvailable     int                   `json:"totalAvailable"`
	ProgressPercent    int                   `json:"progress"`
	ByCategory         map[BadgeCategory]int `json:"byCategory"`
	EarnedByCategory   map[BadgeCategory]int `json:"earnedByCategory"`
	ByRarity           map[Rarity]int        `json:"byRarity"`
	EarnedByRarity     map[Rarity]int        `json:"earnedByRarity"`
	RecentAchievements []Achievement         `json:"recentAchievements"`
}

// CalendarEntry is one day of the activity calendar
type CalendarEntry struct {
	Date         Day   `json:"date"`
	Quizzes      int64 `json:"quizzes"`
	Games        int64 `json:"games"`
	Posts        int64 `json:"posts"`
	MinutesSpent int64 `json:"minutesSpent"`
	HasActivity  bool  `json:"hasActivity"`
}

// ActivityCalendar is the recent activity of a user, newest day first
type ActivityCalendar struct {
	Days            []CalendarEntry `json:"activities"`
	CurrentStreak   int64           `json:"currentStreak"`
	TotalActivities int64           `json:"totalActivities"`
	ActiveDays      int             `json:"activeDays"`
	RangeDays       int             `json:"totalDays"`
}

// CheckResult is returned to collaborators after a tracked event
type CheckResult struct {
	NewlyAwarded []AwardedBadge `json:"newlyAwarded"`
	Count        int            `json:"count"`
}
