package memory

import (
	"context"
	"sync"

	"achievehub/internal/models"
	"achievehub/internal/repositories"
)

// ForumStore is an in-memory ForumRepository
type ForumStore struct {
	mu    sync.RWMutex
	posts map[string]models.ForumPost
}

var _ repositories.ForumRepository = (*ForumStore)(nil)

// NewForumStore creates an empty store
func NewForumStore() *ForumStore {
	return &ForumStore{posts: make(map[string]models.ForumPost)}
}

func (s *ForumStore) RecordPost(ctx context.Context, post *models.ForumPost) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.posts[post.PostID]; exists {
		return false, nil
	}
	s.posts[post.PostID] = *post
	return true, nil
}

func (s *ForumStore) RecordComment(ctx context.Context, postID string, reported *int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[postID]
	if !ok {
		return false, nil
	}
	switch {
	case reported == nil:
		post.CommentCount++
	case *reported > post.CommentCount:
		post.CommentCount = *reported
	}
	s.posts[postID] = post
	return true, nil
}

func (s *ForumStore) Counts(ctx context.Context, userID int64) (models.ForumCounts, error) {
	if err := ctx.Err(); err != nil {
		return models.ForumCounts{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var counts models.ForumCounts
	for _, p := range s.posts {
		if p.UserID != userID {
			continue
		}
		counts.Posts++
		counts.Comments += p.CommentCount
	}
	return counts, nil
}
