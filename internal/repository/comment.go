package repository

import (
	"context"
	"fmt"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"gorm.io/gorm"
)

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

// CommentFilter narrows an administrative listing. Zero values mean "any".
type CommentFilter struct {
	Status models.CommentStatus
	PostID uint
	UserID uint
	From   *time.Time
	To     *time.Time
}

// CommentStats aggregates comment counts by status and recency.
type CommentStats struct {
	Total    int64 `json:"total_comments"`
	Approved int64 `json:"approved_comments"`
	Pending  int64 `json:"pending_comments"`
	Spam     int64 `json:"spam_comments"`
	Today    int64 `json:"today_comments"`
	Week     int64 `json:"week_comments"`
	Month    int64 `json:"month_comments"`
}

// CommentRepository defines persistence primitives for comment rows.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	// ListApprovedByPost returns approved comments ordered by parent_id
	// (nulls first) then created_at.
	ListApprovedByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	ChildIDs(ctx context.Context, parentID uint) ([]uint, error)
	// UpdateStatus moves a comment from one status to another. It fails with
	// NotFound if the row is gone and Conflict if its status is no longer from.
	UpdateStatus(ctx context.Context, id uint, from, to models.CommentStatus) error
	Delete(ctx context.Context, id uint) error
	CountApproved(ctx context.Context, postID uint) (int64, error)
	ListPending(ctx context.Context, page Page) ([]*models.Comment, int64, error)
	ListByUser(ctx context.Context, userID uint, page Page) ([]*models.Comment, int64, error)
	List(ctx context.Context, filter CommentFilter, page Page) ([]*models.Comment, int64, error)
	Stats(ctx context.Context, now time.Time) (*CommentStats, error)
}

type commentRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db, log: observability.NewRepoLogger("comments")}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewPersistenceError(err)
	}
	r.log.LogCreate(ctx, map[string]any{"id": comment.ID, "post_id": comment.PostID, "status": comment.Status})
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		return nil, translate(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListApprovedByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND status = ?", postID, models.CommentApproved).
		Order("parent_id ASC NULLS FIRST").
		Order("created_at ASC").
		Order("id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewPersistenceError(err)
	}
	return comments, nil
}

func (r *commentRepository) ChildIDs(ctx context.Context, parentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, models.NewPersistenceError(err)
	}
	return ids, nil
}

func (r *commentRepository) UpdateStatus(ctx context.Context, id uint, from, to models.CommentStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewPersistenceError(res.Error)
	}
	if res.RowsAffected == 1 {
		r.log.LogUpdate(ctx, map[string]any{"id": id, "from": from, "to": to})
		return nil
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return models.NewConflictError(fmt.Sprintf("Comment %d is %s, expected %s", id, current.Status, from))
}

func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Comment{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return models.NewPersistenceError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	r.log.LogDelete(ctx, map[string]any{"id": id})
	return nil
}

func (r *commentRepository) CountApproved(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Where("post_id = ? AND status = ?", postID, models.CommentApproved).
		Count(&n).Error
	if err != nil {
		return 0, models.NewPersistenceError(err)
	}
	return n, nil
}

func (r *commentRepository) ListPending(ctx context.Context, page Page) ([]*models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{}).Where("status = ?", models.CommentPending)
	return r.paginate(q, page, "created_at ASC, id ASC")
}

func (r *commentRepository) ListByUser(ctx context.Context, userID uint, page Page) ([]*models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{}).Where("user_id = ?", userID)
	return r.paginate(q, page, "created_at DESC, id DESC")
}

func (r *commentRepository) List(ctx context.Context, filter CommentFilter, page Page) ([]*models.Comment, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Comment{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.PostID != 0 {
		q = q.Where("post_id = ?", filter.PostID)
	}
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	return r.paginate(q, page, "created_at DESC, id DESC")
}

func (r *commentRepository) paginate(q *gorm.DB, page Page, order string) ([]*models.Comment, int64, error) {
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewPersistenceError(err)
	}

	var comments []*models.Comment
	err := q.Session(&gorm.Session{}).
		Order(order).
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewPersistenceError(err)
	}
	return comments, total, nil
}

func (r *commentRepository) Stats(ctx context.Context, now time.Time) (*CommentStats, error) {
	type statusCount struct {
		Status models.CommentStatus
		N      int64
	}
	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Comment{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewPersistenceError(err)
	}

	stats := &CommentStats{}
	for _, row := range rows {
		stats.Total += row.N
		switch row.Status {
		case models.CommentApproved:
			stats.Approved = row.N
		case models.CommentPending:
			stats.Pending = row.N
		case models.CommentSpam:
			stats.Spam = row.N
		}
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Weeks start on Monday.
	week := day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	for _, b := range []struct {
		since time.Time
		dst   *int64
	}{
		{day, &stats.Today},
		{week, &stats.Week},
		{month, &stats.Month},
	} {
		if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("created_at >= ?", b.since).Count(b.dst).Error; err != nil {
			return nil, models.NewPersistenceError(err)
		}
	}
	return stats, nil
}
