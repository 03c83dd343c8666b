// Package service orchestrates comment submission, moderation, deletion and
// display on top of the repository layer.
package service

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/moderation"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/thread"
	"inkwell/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// Page size limits for listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Options tune a CommentService.
type Options struct {
	RateLimit  int
	RateWindow time.Duration
	Flags      *featureflags.Flags
	Notifier   notifications.Dispatcher
	Now        func() time.Time
}

// CommentService is the entry point of the comment subsystem. Every write
// runs as one transaction that first locks the owning post row.
type CommentService struct {
	store      repository.UnitOfWork
	limiter    *ratelimit.Limiter
	notifier   notifications.Dispatcher
	flags      *featureflags.Flags
	rateLimit  int
	rateWindow time.Duration
	now        func() time.Time
}

// SubmitInput carries a new comment from the caller.
type SubmitInput struct {
	Actor    models.Actor
	PostID   uint
	ParentID *uint
	Content  string
	Meta     models.RequestMeta
}

// DeleteResult describes a completed cascading delete.
type DeleteResult struct {
	PostID       uint             `json:"post_id"`
	Removed      []models.Comment `json:"-"`
	RemovedCount int              `json:"removed"`
	CommentCount int64            `json:"comment_count"`
}

// PageResult is one page of a listing.
type PageResult struct {
	Items  []*models.Comment `json:"items"`
	Total  int64             `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func NewCommentService(store repository.UnitOfWork, limiter *ratelimit.Limiter, opts Options) *CommentService {
	s := &CommentService{
		store:      store,
		limiter:    limiter,
		notifier:   opts.Notifier,
		flags:      opts.Flags,
		rateLimit:  opts.RateLimit,
		rateWindow: opts.RateWindow,
		now:        opts.Now,
	}
	if s.notifier == nil {
		s.notifier = notifications.Noop{}
	}
	if s.rateLimit <= 0 {
		s.rateLimit = 5
	}
	if s.rateWindow <= 0 {
		s.rateWindow = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Submit rate-limits, validates and stores a new comment. The attempt counts
// against the actor's quota even when validation then rejects it.
func (s *CommentService) Submit(ctx context.Context, in SubmitInput) (_ *models.Comment, err error) {
	span, ctx := observability.NewSpan(ctx, "CommentService.Submit",
		attribute.Int64("post_id", int64(in.PostID)))
	defer func() { span.End(err) }()
	defer func() { recordSubmission(err) }()

	decision, err := s.limiter.Gate(ctx, ratelimit.SubjectKey(in.Actor, in.Meta.IPAddress), s.rateLimit, s.rateWindow)
	if err != nil {
		return nil, models.NewRateLimitError(err)
	}
	if !decision.Allowed {
		return nil, models.NewRateLimitError(nil)
	}

	defer observability.TrackOperation("submit")()

	var created *models.Comment
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Posts().GetForUpdate(ctx, in.PostID); err != nil {
			return err
		}

		draft, err := validation.NewPolicy(tx.Posts(), tx.Comments()).ValidateSubmission(ctx, validation.SubmissionInput{
			Actor:    in.Actor,
			PostID:   in.PostID,
			ParentID: in.ParentID,
			Content:  in.Content,
			Meta:     in.Meta,
		})
		if err != nil {
			return err
		}

		comment := draft.Comment(moderation.InitialStatus(in.Actor))
		if err := tx.Comments().Create(ctx, comment); err != nil {
			return err
		}
		if _, err := NewCounterSync(tx).Sync(ctx, in.PostID); err != nil {
			return err
		}
		created = comment
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.AddAttributes(attribute.Int64("comment_id", int64(created.ID)), attribute.String("status", string(created.Status)))
	s.notifier.Notify(ctx, notifications.EventCreated, created)
	return created, nil
}

func recordSubmission(err error) {
	outcome := "error"
	switch {
	case err == nil:
		outcome = "created"
	case models.ErrorCode(err) != "":
		outcome = models.ErrorCode(err)
	}
	observability.CommentSubmissions.WithLabelValues(outcome).Inc()
}

// Approve publishes a pending comment.
func (s *CommentService) Approve(ctx context.Context, id uint) (*models.Comment, error) {
	return s.moderate(ctx, id, moderation.ActionApprove, notifications.EventApproved)
}

// Reject marks a pending comment as spam.
func (s *CommentService) Reject(ctx context.Context, id uint) (*models.Comment, error) {
	return s.moderate(ctx, id, moderation.ActionReject, notifications.EventRejected)
}

// MarkSpam withdraws an approved comment as spam.
func (s *CommentService) MarkSpam(ctx context.Context, id uint) (*models.Comment, error) {
	return s.moderate(ctx, id, moderation.ActionSpam, notifications.EventRejected)
}

func (s *CommentService) moderate(ctx context.Context, id uint, action moderation.Action, event notifications.Event) (_ *models.Comment, err error) {
	span, ctx := observability.NewSpan(ctx, "CommentService.Moderate",
		attribute.Int64("comment_id", int64(id)), attribute.String("action", string(action)))
	defer func() { span.End(err) }()
	defer func() {
		result := "ok"
		if err != nil {
			result = models.ErrorCode(err)
		}
		observability.ModerationTransitions.WithLabelValues(string(action), result).Inc()
	}()
	defer observability.TrackOperation("moderate")()

	var updated *models.Comment
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		comment, err := tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Posts().GetForUpdate(ctx, comment.PostID); err != nil {
			return err
		}

		next, err := moderation.Transition(comment.Status, action)
		if err != nil {
			return err
		}
		if err := tx.Comments().UpdateStatus(ctx, comment.ID, comment.Status, next); err != nil {
			return err
		}
		comment.Status = next

		if _, err := NewCounterSync(tx).Sync(ctx, comment.PostID); err != nil {
			return err
		}
		updated = comment
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, event, updated)
	return updated, nil
}

// Delete removes a comment and all replies beneath it if actor may delete it.
func (s *CommentService) Delete(ctx context.Context, actor models.Actor, id uint) (_ *DeleteResult, err error) {
	span, ctx := observability.NewSpan(ctx, "CommentService.Delete", attribute.Int64("comment_id", int64(id)))
	defer func() { span.End(err) }()
	defer observability.TrackOperation("delete")()

	var result *DeleteResult
	err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
		comment, err := tx.Comments().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Posts().GetForUpdate(ctx, comment.PostID); err != nil {
			return err
		}

		allowed, err := authz.NewPolicy(tx.Posts()).CanDelete(ctx, actor, comment)
		if err != nil {
			return err
		}
		if !allowed {
			return models.NewForbiddenError("You cannot delete this comment")
		}

		removed, err := NewCascadeDeleter(tx.Comments()).DeleteWithDescendants(ctx, comment.ID)
		if err != nil {
			return err
		}
		count, err := NewCounterSync(tx).Sync(ctx, comment.PostID)
		if err != nil {
			return err
		}
		result = &DeleteResult{
			PostID:       comment.PostID,
			Removed:      removed,
			RemovedCount: len(removed),
			CommentCount: count,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCycleDetected) {
			observability.Logger.ErrorContext(ctx, "reply cycle found during delete", "comment_id", id, "error", err)
		}
		return nil, err
	}

	observability.CascadeDeletedComments.Add(float64(result.RemovedCount))
	span.AddAttributes(attribute.Int("removed", result.RemovedCount))
	return result, nil
}

// Resync recomputes a post's comment counter.
func (s *CommentService) Resync(ctx context.Context, postID uint) (int64, error) {
	var n int64
	err := s.store.WithTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.Posts().GetForUpdate(ctx, postID); err != nil {
			return err
		}
		var err error
		n, err = NewCounterSync(tx).Sync(ctx, postID)
		return err
	})
	return n, err
}

// Thread returns the approved comments of a published post arranged for
// display. Replies nest one level unless the threads_full_depth flag is on
// for the post.
func (s *CommentService) Thread(ctx context.Context, postID uint) (_ []*thread.Node, err error) {
	span, ctx := observability.NewSpan(ctx, "CommentService.Thread", attribute.Int64("post_id", int64(postID)))
	defer func() { span.End(err) }()

	post, err := s.store.Posts().GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !post.Published() {
		return nil, models.NewNotFoundError("Post", postID)
	}

	comments, err := s.store.Comments().ListApprovedByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if s.flags.Enabled(featureflags.ThreadsFullDepth, postID) {
		return thread.BuildNested(comments), nil
	}
	return thread.Build(comments), nil
}

// ModerationQueue lists pending comments, oldest first.
func (s *CommentService) ModerationQueue(ctx context.Context, page repository.Page) (*PageResult, error) {
	page = normalizePage(page)
	items, total, err := s.store.Comments().ListPending(ctx, page)
	if err != nil {
		return nil, err
	}
	return &PageResult{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// UserComments lists a user's comments, newest first.
func (s *CommentService) UserComments(ctx context.Context, userID uint, page repository.Page) (*PageResult, error) {
	page = normalizePage(page)
	items, total, err := s.store.Comments().ListByUser(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return &PageResult{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// List returns comments matching filter, newest first.
func (s *CommentService) List(ctx context.Context, filter repository.CommentFilter, page repository.Page) (*PageResult, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, models.NewValidationError("status", "Unknown comment status")
	}
	page = normalizePage(page)
	items, total, err := s.store.Comments().List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	return &PageResult{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// Stats summarizes comments by status and recency.
func (s *CommentService) Stats(ctx context.Context) (*repository.CommentStats, error) {
	return s.store.Comments().Stats(ctx, s.now())
}

// CanComment reports whether the actor could submit right now without
// consuming an attempt.
func (s *CommentService) CanComment(ctx context.Context, actor models.Actor, ip string) (bool, error) {
	d, err := s.limiter.Peek(ctx, ratelimit.SubjectKey(actor, ip), s.rateLimit)
	if err != nil {
		return false, models.NewRateLimitError(err)
	}
	return d.Allowed, nil
}

func normalizePage(p repository.Page) repository.Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
