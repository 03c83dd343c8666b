// Package validation checks comment submissions before anything is written.
package validation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"inkwell/internal/models"

	"github.com/go-playground/validator/v10"
)

// Content and identity limits, in characters.
const (
	MinContentLength = 3
	MaxContentLength = 1000
	MinNameLength    = 2
	MaxNameLength    = 100
	MaxEmailLength   = 255
)

// PostReader resolves the owning post.
type PostReader interface {
	GetByID(ctx context.Context, id uint) (*models.Post, error)
}

// CommentReader resolves a parent comment.
type CommentReader interface {
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
}

// SubmissionInput is the raw data a caller hands over for a new comment.
// Anonymous identity fields travel inside the actor.
type SubmissionInput struct {
	Actor    models.Actor
	PostID   uint
	ParentID *uint
	Content  string
	Meta     models.RequestMeta
}

// Draft is a normalized, validated comment awaiting a moderation status.
type Draft struct {
	Post          *models.Post
	PostID        uint
	UserID        *uint
	ParentID      *uint
	AuthorName    string
	AuthorEmail   string
	AuthorWebsite string
	Content       string
	Meta          models.RequestMeta
}

// Comment builds the row to insert with the given status.
func (d *Draft) Comment(status models.CommentStatus) *models.Comment {
	return &models.Comment{
		PostID:        d.PostID,
		UserID:        d.UserID,
		ParentID:      d.ParentID,
		AuthorName:    d.AuthorName,
		AuthorEmail:   d.AuthorEmail,
		AuthorWebsite: d.AuthorWebsite,
		Content:       d.Content,
		Status:        status,
		IPAddress:     d.Meta.IPAddress,
		UserAgent:     d.Meta.UserAgent,
	}
}

// Policy validates submissions against the current state of posts and comments.
type Policy struct {
	posts    PostReader
	comments CommentReader
	validate *validator.Validate
}

// NewPolicy creates a Policy reading through the given repositories.
func NewPolicy(posts PostReader, comments CommentReader) *Policy {
	return &Policy{
		posts:    posts,
		comments: comments,
		validate: validator.New(),
	}
}

// ValidateSubmission returns a Draft or the first rule violation as a typed
// error. It performs no writes.
func (p *Policy) ValidateSubmission(ctx context.Context, in SubmissionInput) (*Draft, error) {
	content := strings.TrimSpace(in.Content)
	if n := utf8.RuneCountInString(content); n < MinContentLength || n > MaxContentLength {
		return nil, models.NewValidationError("content",
			fmt.Sprintf("Comment must be between %d and %d characters", MinContentLength, MaxContentLength))
	}

	draft := &Draft{
		PostID:   in.PostID,
		ParentID: in.ParentID,
		Content:  content,
		Meta:     in.Meta,
	}

	switch actor := in.Actor.(type) {
	case models.Authenticated, *models.Authenticated:
		a, _ := models.AsAuthenticated(actor)
		id := a.ID
		draft.UserID = &id
		draft.AuthorName = a.Name
		draft.AuthorEmail = a.Email
	case models.Anonymous:
		if err := p.anonymousIdentity(draft, actor); err != nil {
			return nil, err
		}
	case *models.Anonymous:
		if actor == nil {
			return nil, models.NewValidationError("author_name", "Name is required")
		}
		if err := p.anonymousIdentity(draft, *actor); err != nil {
			return nil, err
		}
	default:
		return nil, models.NewValidationError("author_name", "Name is required")
	}

	post, err := p.posts.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostPublished || post.DeletedAt.Valid {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}
	if !post.AllowComments {
		return nil, models.NewForbiddenError("Comments are disabled for this post")
	}
	draft.Post = post

	if in.ParentID != nil {
		parent, err := p.comments.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != in.PostID {
			return nil, models.NewConflictError(
				fmt.Sprintf("Parent comment %d belongs to a different post", parent.ID))
		}
	}

	return draft, nil
}

func (p *Policy) anonymousIdentity(draft *Draft, a models.Anonymous) error {
	name := strings.TrimSpace(a.Name)
	if n := utf8.RuneCountInString(name); n < MinNameLength || n > MaxNameLength {
		return models.NewValidationError("author_name",
			fmt.Sprintf("Name must be between %d and %d characters", MinNameLength, MaxNameLength))
	}

	email := strings.TrimSpace(a.Email)
	if len(email) > MaxEmailLength || p.validate.Var(email, "required,email") != nil {
		return models.NewValidationError("author_email", "A valid email address is required")
	}

	website := strings.TrimSpace(a.Website)
	if website != "" && p.validate.Var(website, "max=255,http_url") != nil {
		return models.NewValidationError("author_website", "Website must be an http or https URL")
	}

	draft.AuthorName = name
	draft.AuthorEmail = email
	draft.AuthorWebsite = website
	return nil
}
