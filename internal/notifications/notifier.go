// Package notifications publishes comment lifecycle events to Redis.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Event names a comment lifecycle change.
type Event string

const (
	EventCreated  Event = "created"
	EventApproved Event = "approved"
	EventRejected Event = "rejected"
)

// EventsChannel receives every comment event.
const EventsChannel = "comments:events"

const publishTimeout = 3 * time.Second

// PostChannel receives the events of one post.
func PostChannel(postID uint) string {
	return fmt.Sprintf("comments:post:%d", postID)
}

// Dispatcher delivers events without blocking or failing the caller.
type Dispatcher interface {
	Notify(ctx context.Context, event Event, comment *models.Comment)
}

// Message is the published payload.
type Message struct {
	Event     Event                `json:"event"`
	CommentID uint                 `json:"comment_id"`
	PostID    uint                 `json:"post_id"`
	ParentID  *uint                `json:"parent_id,omitempty"`
	UserID    *uint                `json:"user_id,omitempty"`
	Author    string               `json:"author"`
	Status    models.CommentStatus `json:"status"`
	At        time.Time            `json:"at"`
}

// NewMessage builds the payload for event on comment.
func NewMessage(event Event, c *models.Comment) Message {
	return Message{
		Event:     event,
		CommentID: c.ID,
		PostID:    c.PostID,
		ParentID:  c.ParentID,
		UserID:    c.UserID,
		Author:    c.AuthorName,
		Status:    c.Status,
		At:        time.Now().UTC(),
	}
}

// RedisNotifier publishes events over Redis pub/sub. A nil client makes every
// call a no-op.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier creates a RedisNotifier.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Publish sends one event to the global and per-post channels.
func (n *RedisNotifier) Publish(ctx context.Context, msg Message) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	pipe := n.rdb.Pipeline()
	pipe.Publish(ctx, EventsChannel, payload)
	pipe.Publish(ctx, PostChannel(msg.PostID), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Notify publishes in the background. Failures are logged and dropped.
func (n *RedisNotifier) Notify(ctx context.Context, event Event, comment *models.Comment) {
	if n.rdb == nil || comment == nil {
		return
	}
	msg := NewMessage(event, comment)
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.Logger.ErrorContext(ctx, "panic publishing comment event",
					"panic", r, "stack", string(debug.Stack()))
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := n.Publish(ctx, msg); err != nil {
			observability.Logger.WarnContext(ctx, "failed to publish comment event",
				"event", msg.Event, "comment_id", msg.CommentID, "error", err)
		}
	}()
}

// Subscribe delivers messages from the given channels (all events when none
// are given) to onMessage until ctx is done. It returns once the
// subscription is confirmed.
func (n *RedisNotifier) Subscribe(ctx context.Context, onMessage func(Message), channels ...string) error {
	if n.rdb == nil {
		return nil
	}
	if len(channels) == 0 {
		channels = []string{EventsChannel}
	}
	sub := n.rdb.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
					observability.Logger.Warn("dropping malformed comment event", "channel", raw.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.Logger.Error("panic in comment event handler",
								"panic", r, "stack", string(debug.Stack()))
						}
					}()
					onMessage(msg)
				}()
			}
		}
	}()
	return nil
}

// Noop discards events.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, Event, *models.Comment) {}
