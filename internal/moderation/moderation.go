// Package moderation owns the comment status lifecycle.
package moderation

import (
	"fmt"

	"inkwell/internal/models"
)

// Action is a moderator decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	// ActionSpam reverses an earlier approval.
	ActionSpam Action = "spam"
)

var transitions = map[Action]struct {
	from, to models.CommentStatus
}{
	ActionApprove: {models.CommentPending, models.CommentApproved},
	ActionReject:  {models.CommentPending, models.CommentSpam},
	ActionSpam:    {models.CommentApproved, models.CommentSpam},
}

// InitialStatus is approved for authenticated actors and pending otherwise.
func InitialStatus(actor models.Actor) models.CommentStatus {
	if _, ok := models.AsAuthenticated(actor); ok {
		return models.CommentApproved
	}
	return models.CommentPending
}

// Transition returns the status action moves current to. A comment not in
// the action's source state yields a Conflict naming its current status.
func Transition(current models.CommentStatus, action Action) (models.CommentStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return current, models.NewValidationError("action", fmt.Sprintf("Unknown moderation action %q", action))
	}
	if current != t.from {
		return current, models.NewConflictError(
			fmt.Sprintf("Cannot %s a comment that is %s", action, current))
	}
	return t.to, nil
}
