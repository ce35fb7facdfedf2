package models

import "time"

// DefaultAchievementHistoryLimit bounds the per-user achievement history
const DefaultAchievementHistoryLimit = 50

// Achievement is one entry of the bounded achievement history
type Achievement struct {
	ID          int64     `json:"-"`
	UserID      int64     `json:"-"`
	BadgeID     string    `json:"badgeId,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AwardedAt   time.Time `json:"date"`
}

// UserAchievementState holds the lifetime counters of a user.
// Held badges and achievement history live in their own tables and are
// loaded separately.
type UserAchievementState struct {
	UserID                int64     `json:"userId"`
	TotalQuizzes          int64     `json:"totalQuizzes"`
	AverageScore          float64   `json:"averageScore"`
	BestScore             float64   `json:"bestScore"`
	TotalTimeSpentMinutes int64     `json:"totalTimeSpentMinutes"`
	TotalGames            int64     `json:"totalGames"`
	TotalGameScore        float64   `json:"totalGameScore"`
	BestGameScore         float64   `json:"bestGameScore"`
	CurrentStreak         int64     `json:"currentStreak"`
	LongestStreak         int64     `json:"longestStreak"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// RecordQuiz folds one completed quiz into the lifetime counters.
// The average is an incremental mean over all quizzes.
func (s *UserAchievementState) RecordQuiz(score float64, minutes int64) {
	s.TotalQuizzes++
	n := float64(s.TotalQuizzes)
	s.AverageScore = (s.AverageScore*(n-1) + score) / n
	if score > s.BestScore {
		s.BestScore = score
	}
	s.TotalTimeSpentMinutes += minutes
}

// RecordGame folds one completed game into the lifetime counters
func (s *UserAchievementState) RecordGame(score float64, minutes int64) {
	s.TotalGames++
	s.TotalGameScore += score
	if score > s.BestGameScore {
		s.BestGameScore = score
	}
	s.TotalTimeSpentMinutes += minutes
}

// UpdateStreak stores the current streak and raises the longest streak.
// LongestStreak never decreases.
func (s *UserAchievementState) UpdateStreak(current int64) {
	s.CurrentStreak = current
	if current > s.LongestStreak {
		s.LongestStreak = current
	}
}

// GameTypeStat is the per (user, game type) aggregate
type GameTypeStat struct {
	UserID      int64     `json:"-"`
	GameType    string    `json:"gameType"`
	GamesPlayed int64     `json:"gamesPlayed"`
	TotalScore  float64   `json:"totalScore"`
	BestScore   float64   `json:"bestScore"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// AverageScore is derived, never stored
func (g GameTypeStat) AverageScore() float64 {
	if g.GamesPlayed == 0 {
		return 0
	}
	return g.TotalScore / float64(g.GamesPlayed)
}

// Record folds one game session into the stat
func (g *GameTypeStat) Record(score float64) {
	g.GamesPlayed++
	g.TotalScore += score
	if score > g.BestScore {
		g.BestScore = score
	}
}

// QuizOutcome is the persisted result of one graded quiz
type QuizOutcome struct {
	ID           int64         `json:"id"`
	UserID       int64         `json:"userId"`
	QuizType     string        `json:"quizType"`
	Score        float64       `json:"score"`
	TopicResults []TopicResult `json:"topicResults"`
	CompletedAt  time.Time     `json:"completedAt"`
}

// TopicTally is the aggregated answer count of one topic
type TopicTally struct {
	Topic   string `json:"topic"`
	Correct int64  `json:"correct"`
	Total   int64  `json:"total"`
}

// ForumPost is the engine's record of a forum post
type ForumPost struct {
	PostID       string    `json:"postId"`
	UserID       int64     `json:"userId"`
	Topic        string    `json:"topic"`
	CommentCount int64     `json:"commentCount"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ForumCounts is the forum participation of a user
type ForumCounts struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
}
