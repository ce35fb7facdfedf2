// Package memory implements the repository interfaces in process memory.
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"achievehub/internal/repositories"
)

// NewCollection returns a repository collection whose stores share nothing
// but live for the lifetime of the process.
func NewCollection() *repositories.Collection {
	activity := NewActivityStore()
	achievements := NewAchievementStore()
	quizzes := NewQuizStore()
	forum := NewForumStore()

	return &repositories.Collection{
		Activity:     activity,
		Achievements: achievements,
		Badges:       NewBadgeStore(),
		Quizzes:      quizzes,
		Forum:        forum,
		Recorder:     NewRecorder(activity, achievements, quizzes, forum),
	}
}
