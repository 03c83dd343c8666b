// Package authz decides who may remove, moderate or list comments.
package authz

import (
	"context"
	"fmt"

	"inkwell/internal/models"
)

// PostOwnerLookup resolves a post's current owner. Implementations must read
// the post fresh rather than from a cache since ownership can change.
type PostOwnerLookup interface {
	GetForUpdate(ctx context.Context, id uint) (*models.Post, error)
}

// Policy answers deletion authorization questions.
type Policy struct {
	posts PostOwnerLookup
}

// NewPolicy creates a Policy.
func NewPolicy(posts PostOwnerLookup) *Policy {
	return &Policy{posts: posts}
}

// CanDelete reports whether actor may delete comment: its author, an admin,
// or the author of the post it belongs to. Anonymous actors never may. A
// failed post lookup is returned as an error rather than a refusal.
func (p *Policy) CanDelete(ctx context.Context, actor models.Actor, comment *models.Comment) (bool, error) {
	a, ok := models.AsAuthenticated(actor)
	if !ok {
		return false, nil
	}
	if a.Admin {
		return true, nil
	}
	if comment.UserID != nil && *comment.UserID == a.ID {
		return true, nil
	}

	post, err := p.posts.GetForUpdate(ctx, comment.PostID)
	if err != nil {
		return false, fmt.Errorf("resolve owner of post %d: %w", comment.PostID, err)
	}
	return post.UserID == a.ID, nil
}

// CanModerate reports whether actor may approve, reject or mark comments as spam.
func CanModerate(actor models.Actor) bool {
	a, ok := models.AsAuthenticated(actor)
	return ok && a.Admin
}

// CanViewUserComments reports whether actor may list every comment written by
// userID, including pending and spam ones and the addresses they were left with.
func CanViewUserComments(actor models.Actor, userID uint) bool {
	a, ok := models.AsAuthenticated(actor)
	return ok && (a.Admin || a.ID == userID)
}
