package service

import (
	"context"

	"inkwell/internal/observability"
	"inkwell/internal/repository"
)

// CounterSync keeps posts.comment_count equal to the number of approved
// comments. It must run on transaction-bound repositories, after the post
// row has been locked with GetForUpdate, so that the count and the write
// commit together with the change that triggered them.
type CounterSync struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
}

// NewCounterSync binds a CounterSync to repos.
func NewCounterSync(repos repository.Repositories) *CounterSync {
	return &CounterSync{comments: repos.Comments(), posts: repos.Posts()}
}

// Sync recounts the post's approved comments and stores the result.
func (s *CounterSync) Sync(ctx context.Context, postID uint) (int64, error) {
	n, err := s.comments.CountApproved(ctx, postID)
	if err != nil {
		return 0, err
	}
	if err := s.posts.SetCommentCount(ctx, postID, n); err != nil {
		return 0, err
	}
	observability.Logger.DebugContext(ctx, "comment count synced", "post_id", postID, "count", n)
	return n, nil
}
