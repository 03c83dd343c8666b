package server

import (
	"context"
	"strconv"
	"sync"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const liveWriteTimeout = 5 * time.Second

// LiveUpgrade rejects plain HTTP requests to the live feed.
func LiveUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// LiveComments handles GET /api/posts/:postId/comments/live. It streams the
// events readers may see for one post until the client disconnects.
func (s *Server) LiveComments() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		observability.LiveSubscribers.Inc()
		defer observability.LiveSubscribers.Dec()

		var mu sync.Mutex
		send := func(v any) error {
			mu.Lock()
			defer mu.Unlock()
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
			return conn.WriteJSON(v)
		}

		postID, err := strconv.ParseUint(conn.Params("postId"), 10, 64)
		if err != nil || postID == 0 {
			_ = send(errorResponse{Error: "Invalid postId", Code: models.CodeValidation, Field: "postId"})
			return
		}
		if s.events == nil {
			_ = send(errorResponse{Error: "Live updates are unavailable", Code: models.CodeInternal})
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		channel := notifications.PostChannel(uint(postID))
		err = s.events.Subscribe(ctx, func(m notifications.Message) {
			public, ok := publicMessage(m)
			if !ok {
				return
			}
			if err := send(public); err != nil {
				cancel()
			}
		}, channel)
		if err != nil {
			observability.Logger.Error("live feed subscribe failed", "post_id", postID, "error", err)
			_ = send(errorResponse{Error: "Live updates are unavailable", Code: models.CodeInternal})
			return
		}
		if err := send(fiber.Map{"event": "subscribed", "channel": channel}); err != nil {
			return
		}

		// Incoming frames are ignored; a read error means the client left.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// publicMessage filters events down to what any reader may see: approved
// comments, and withdrawals without the author's identity.
func publicMessage(m notifications.Message) (notifications.Message, bool) {
	switch {
	case m.Status == models.CommentApproved:
		return m, true
	case m.Event == notifications.EventRejected:
		m.Author = ""
		m.UserID = nil
		return m, true
	}
	return m, false
}
