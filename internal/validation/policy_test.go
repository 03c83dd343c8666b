package validation

import (
	"context"
	"strings"
	"testing"

	"inkwell/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubPosts struct {
	getByIDFn func(ctx context.Context, id uint) (*models.Post, error)
}

func (s *stubPosts) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}

type stubComments struct {
	getByIDFn func(ctx context.Context, id uint) (*models.Comment, error)
}

func (s *stubComments) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, id)
}

func publishedPost(id uint) *models.Post {
	return &models.Post{ID: id, UserID: 1, Status: models.PostPublished, AllowComments: true}
}

func newPolicy(post *models.Post, parents map[uint]*models.Comment) *Policy {
	return NewPolicy(
		&stubPosts{getByIDFn: func(_ context.Context, id uint) (*models.Post, error) {
			if post == nil || post.ID != id {
				return nil, models.NewNotFoundError("Post", id)
			}
			return post, nil
		}},
		&stubComments{getByIDFn: func(_ context.Context, id uint) (*models.Comment, error) {
			if c, ok := parents[id]; ok {
				return c, nil
			}
			return nil, models.NewNotFoundError("Comment", id)
		}},
	)
}

func uintPtr(v uint) *uint { return &v }

func TestPolicy_ValidateSubmission_Anonymous(t *testing.T) {
	policy := newPolicy(publishedPost(1), nil)

	draft, err := policy.ValidateSubmission(context.Background(), SubmissionInput{
		Actor:   models.Anonymous{Name: "  Anna ", Email: "a@x.com", Website: "https://anna.example"},
		PostID:  1,
		Content: "  Nice post!  ",
		Meta:    models.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Nice post!", draft.Content)
	assert.Equal(t, "Anna", draft.AuthorName)
	assert.Equal(t, "a@x.com", draft.AuthorEmail)
	assert.Nil(t, draft.UserID)

	c := draft.Comment(models.CommentPending)
	assert.Equal(t, models.CommentPending, c.Status)
	assert.Equal(t, "10.0.0.1", c.IPAddress)
	assert.Equal(t, "https://anna.example", c.AuthorWebsite)
}

func TestPolicy_ValidateSubmission_AuthenticatedIgnoresCallerIdentity(t *testing.T) {
	policy := newPolicy(publishedPost(1), nil)

	draft, err := policy.ValidateSubmission(context.Background(), SubmissionInput{
		Actor:   &models.Authenticated{ID: 9, Name: "Bob", Email: "bob@example.com"},
		PostID:  1,
		Content: "Registered comment",
	})
	require.NoError(t, err)
	require.NotNil(t, draft.UserID)
	assert.Equal(t, uint(9), *draft.UserID)
	assert.Equal(t, "Bob", draft.AuthorName)
	assert.Equal(t, "bob@example.com", draft.AuthorEmail)
}

func TestPolicy_ValidateSubmission_Errors(t *testing.T) {
	otherPostParent := &models.Comment{ID: 50, PostID: 2}
	sameParent := &models.Comment{ID: 51, PostID: 1}
	anon := models.Anonymous{Name: "Anna", Email: "a@x.com"}

	tests := []struct {
		name      string
		post      *models.Post
		input     SubmissionInput
		wantCode  string
		wantField string
	}{
		{
			name:      "Content too short after trim",
			post:      publishedPost(1),
			input:     SubmissionInput{Actor: anon, PostID: 1, Content: "  hi  "},
			wantCode:  models.CodeValidation,
			wantField: "content",
		},
		{
			name:      "Content too long",
			post:      publishedPost(1),
			input:     SubmissionInput{Actor: anon, PostID: 1, Content: strings.Repeat("é", MaxContentLength+1)},
			wantCode:  models.CodeValidation,
			wantField: "content",
		},
		{
			name:      "Short anonymous name",
			post:      publishedPost(1),
			input:     SubmissionInput{Actor: models.Anonymous{Name: "A", Email: "a@x.com"}, PostID: 1, Content: "Nice post!"},
			wantCode:  models.CodeValidation,
			wantField: "author_name",
		},
		{
			name:      "Invalid anonymous email",
			post:      publishedPost(1),
			input:     SubmissionInput{Actor: models.Anonymous{Name: "Anna", Email: "not-an-email"}, PostID: 1, Content: "Nice post!"},
			wantCode:  models.CodeValidation,
			wantField: "author_email",
		},
		{
			name:      "Non-http website",
			post:      publishedPost(1),
			input:     SubmissionInput{Actor: models.Anonymous{Name: "Anna", Email: "a@x.com", Website: "javascript:alert(1)"}, PostID: 1, Content: "Nice post!"},
			wantCode:  models.CodeValidation,
			wantField: "author_website",
		},
		{
			name:     "Missing post",
			post:     nil,
			input:    SubmissionInput{Actor: anon, PostID: 1, Content: "Nice post!"},
			wantCode: models.CodeNotFound,
		},
		{
			name:     "Draft post",
			post:     &models.Post{ID: 1, Status: models.PostDraft, AllowComments: true},
			input:    SubmissionInput{Actor: anon, PostID: 1, Content: "Nice post!"},
			wantCode: models.CodeNotFound,
		},
		{
			name:     "Soft-deleted post",
			post:     &models.Post{ID: 1, Status: models.PostPublished, AllowComments: true, DeletedAt: gorm.DeletedAt{Valid: true}},
			input:    SubmissionInput{Actor: anon, PostID: 1, Content: "Nice post!"},
			wantCode: models.CodeNotFound,
		},
		{
			name:     "Comments disabled",
			post:     &models.Post{ID: 1, Status: models.PostPublished, AllowComments: false},
			input:    SubmissionInput{Actor: anon, PostID: 1, Content: "Nice post!"},
			wantCode: models.CodeForbidden,
		},
		{
			name:     "Parent on another post",
			post:     publishedPost(1),
			input:    SubmissionInput{Actor: anon, PostID: 1, ParentID: uintPtr(otherPostParent.ID), Content: "Nice post!"},
			wantCode: models.CodeConflict,
		},
		{
			name:     "Missing parent",
			post:     publishedPost(1),
			input:    SubmissionInput{Actor: anon, PostID: 1, ParentID: uintPtr(999), Content: "Nice post!"},
			wantCode: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newPolicy(tt.post, map[uint]*models.Comment{
				otherPostParent.ID: otherPostParent,
				sameParent.ID:      sameParent,
			})

			draft, err := policy.ValidateSubmission(context.Background(), tt.input)
			assert.Nil(t, draft)
			require.Error(t, err)

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantCode, appErr.Code)
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, appErr.Field)
			}
		})
	}
}

func TestPolicy_ValidateSubmission_ReplyOnSamePost(t *testing.T) {
	parent := &models.Comment{ID: 51, PostID: 1}
	policy := newPolicy(publishedPost(1), map[uint]*models.Comment{parent.ID: parent})

	draft, err := policy.ValidateSubmission(context.Background(), SubmissionInput{
		Actor:    models.Authenticated{ID: 3, Name: "Cy", Email: "cy@example.com"},
		PostID:   1,
		ParentID: uintPtr(parent.ID),
		Content:  "Agreed",
	})
	require.NoError(t, err)
	assert.Equal(t, uint(51), *draft.ParentID)
}
