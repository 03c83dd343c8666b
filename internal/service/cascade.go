package service

import (
	"context"
	"errors"
	"fmt"

	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// ErrCycleDetected means a comment was reached twice while walking replies.
// Reply chains are acyclic by construction, so this is a data corruption.
var ErrCycleDetected = errors.New("reply cycle detected")

// CascadeDeleter removes a comment together with every reply beneath it.
type CascadeDeleter struct {
	comments repository.CommentRepository
}

// NewCascadeDeleter creates a CascadeDeleter over comments, which should be
// bound to the enclosing transaction.
func NewCascadeDeleter(comments repository.CommentRepository) *CascadeDeleter {
	return &CascadeDeleter{comments: comments}
}

type frame struct {
	comment  *models.Comment
	expanded bool
}

// DeleteWithDescendants deletes id and all of its transitive replies, leaves
// first, and returns the removed rows in deletion order. The walk uses an
// explicit stack so reply depth is not bounded by the goroutine stack.
func (d *CascadeDeleter) DeleteWithDescendants(ctx context.Context, id uint) ([]models.Comment, error) {
	root, err := d.comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	visited := map[uint]bool{root.ID: true}
	stack := []frame{{comment: root}}
	var removed []models.Comment

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		if top.expanded {
			c := top.comment
			stack = stack[:len(stack)-1]
			if err := d.comments.Delete(ctx, c.ID); err != nil {
				return nil, err
			}
			removed = append(removed, *c)
			continue
		}

		top.expanded = true
		parentID := top.comment.ID
		childIDs, err := d.comments.ChildIDs(ctx, parentID)
		if err != nil {
			return nil, err
		}
		// Push in reverse so replies are removed in creation order.
		for i := len(childIDs) - 1; i >= 0; i-- {
			childID := childIDs[i]
			if visited[childID] {
				return nil, models.NewInternalError(fmt.Errorf("%w: comment %d under %d", ErrCycleDetected, childID, parentID))
			}
			visited[childID] = true

			child, err := d.comments.GetByID(ctx, childID)
			if err != nil {
				return nil, err
			}
			stack = append(stack, frame{comment: child})
		}
	}
	return removed, nil
}
