package repositories

import (
	"context"
	"fmt"

	"achievehub/internal/database"
	"achievehub/internal/models"

	"go.uber.org/zap"
)

// forumRepository implements ForumRepository on postgres
type forumRepository struct {
	*BaseRepository
}

// NewForumRepository creates a new instance of ForumRepository
func NewForumRepository(db *database.Manager, logger *zap.Logger) ForumRepository {
	return &forumRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// RecordPost stores the post unless it is already known
func (r *forumRepository) RecordPost(ctx context.Context, post *models.ForumPost) (bool, error) {
	res, err := r.ExecContext(ctx, `
		INSERT INTO forum_posts (post_id, user_id, topic, comment_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (post_id) DO NOTHING`,
		post.PostID, post.UserID, post.Topic, post.CommentCount, post.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record forum post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// RecordComment raises the comment count of a post
func (r *forumRepository) RecordComment(ctx context.Context, postID string, reported *int64) (bool, error) {
	query := `UPDATE forum_posts SET comment_count = comment_count + 1 WHERE post_id = $1`
	args := []interface{}{postID}
	if reported != nil {
		query = `UPDATE forum_posts SET comment_count = GREATEST(comment_count, $2) WHERE post_id = $1`
		args = append(args, *reported)
	}

	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to record forum comment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

// Counts returns the user's post count and the comments their posts received
func (r *forumRepository) Counts(ctx context.Context, userID int64) (models.ForumCounts, error) {
	var counts models.ForumCounts
	err := r.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(comment_count), 0)
		FROM forum_posts
		WHERE user_id = $1`,
		userID,
	).Scan(&counts.Posts, &counts.Comments)
	if err != nil {
		return models.ForumCounts{}, fmt.Errorf("failed to count forum posts: %w", err)
	}
	return counts, nil
}
