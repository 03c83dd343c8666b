package repository

import (
	"context"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository exposes the owning-post operations the comment subsystem needs.
type PostRepository interface {
	// GetByID returns a live (not soft-deleted) post.
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	// GetForUpdate reads the post row, soft-deleted or not, and locks it for
	// the rest of the enclosing transaction.
	GetForUpdate(ctx context.Context, id uint) (*models.Post, error)
	SetCommentCount(ctx context.Context, id uint, n int64) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetForUpdate(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&post, id).Error
	if err != nil {
		return nil, translate(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) SetCommentCount(ctx context.Context, id uint, n int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Unscoped().
		Where("id = ?", id).
		UpdateColumn("comment_count", n)
	if res.Error != nil {
		return models.NewPersistenceError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
