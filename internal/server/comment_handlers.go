package server

import (
	"context"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/render"
	"inkwell/internal/repository"
	"inkwell/internal/service"
	"inkwell/internal/thread"

	"github.com/gofiber/fiber/v2"
)

// SubmitCommentRequest is the body of a new comment. Author fields are only
// read for anonymous readers.
type SubmitCommentRequest struct {
	Content       string `json:"content"`
	ParentID      *uint  `json:"parent_id"`
	AuthorName    string `json:"author_name"`
	AuthorEmail   string `json:"author_email"`
	AuthorWebsite string `json:"author_website"`
}

// CommentView is a comment prepared for display.
type CommentView struct {
	ID          uint          `json:"id"`
	ParentID    *uint         `json:"parent_id,omitempty"`
	AuthorName  string        `json:"author_name"`
	AuthorHTML  string        `json:"author_html"`
	ContentHTML string        `json:"content_html"`
	CreatedAt   time.Time     `json:"created_at"`
	Replies     []CommentView `json:"replies"`
}

func viewOf(nodes []*thread.Node) []CommentView {
	out := make([]CommentView, 0, len(nodes))
	for _, n := range nodes {
		c := n.Comment
		out = append(out, CommentView{
			ID:          c.ID,
			ParentID:    c.ParentID,
			AuthorName:  c.AuthorName,
			AuthorHTML:  render.AuthorLink(c.AuthorName, c.AuthorWebsite),
			ContentHTML: render.Comment(c.Content),
			CreatedAt:   c.CreatedAt,
			Replies:     viewOf(n.Children),
		})
	}
	return out
}

// GetThread handles GET /api/posts/:postId/comments
func (s *Server) GetThread(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return respondWithError(c, err)
	}

	forest, err := s.comments.Thread(c.UserContext(), postID)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{
		"post_id":  postID,
		"count":    thread.Count(forest),
		"comments": viewOf(forest),
	})
}

// SubmitComment handles POST /api/posts/:postId/comments
func (s *Server) SubmitComment(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return respondWithError(c, err)
	}

	var req SubmitCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondWithError(c, models.NewValidationError("body", "Invalid request body"))
	}

	actor := actorFrom(c)
	if actor == nil {
		actor = models.Anonymous{Name: req.AuthorName, Email: req.AuthorEmail, Website: req.AuthorWebsite}
	}

	comment, err := s.comments.Submit(c.UserContext(), service.SubmitInput{
		Actor:    actor,
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
		Meta:     models.RequestMeta{IPAddress: c.IP(), UserAgent: c.Get(fiber.HeaderUserAgent)},
	})
	if err != nil {
		return respondWithError(c, err)
	}

	message := "Comment submitted and awaiting moderation"
	if comment.Status == models.CommentApproved {
		message = "Comment posted"
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"comment": comment,
	})
}

// CanComment handles GET /api/posts/:postId/comments/can-comment
func (s *Server) CanComment(c *fiber.Ctx) error {
	ok, err := s.comments.CanComment(c.UserContext(), actorFrom(c), c.IP())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"allowed": ok})
}

// DeleteComment handles DELETE /api/comments/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondWithError(c, err)
	}
	actor := actorFrom(c)
	if actor == nil {
		actor = models.Anonymous{}
	}

	res, err := s.comments.Delete(c.UserContext(), actor, id)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(res)
}

// GetUserComments handles GET /api/users/:userId/comments
func (s *Server) GetUserComments(c *fiber.Ctx) error {
	userID, err := parseID(c, "userId")
	if err != nil {
		return respondWithError(c, err)
	}
	if !authz.CanViewUserComments(actorFrom(c), userID) {
		return respondWithError(c, models.NewForbiddenError("You can only list your own comments"))
	}
	page, err := s.comments.UserComments(c.UserContext(), userID, parsePage(c))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(page)
}

// ListComments handles GET /api/admin/comments
func (s *Server) ListComments(c *fiber.Ctx) error {
	filter := repository.CommentFilter{
		Status: models.CommentStatus(c.Query("status")),
		PostID: uint(max(c.QueryInt("post_id"), 0)),
		UserID: uint(max(c.QueryInt("user_id"), 0)),
	}
	for _, bound := range []struct {
		param string
		dst   **time.Time
	}{
		{"from", &filter.From},
		{"to", &filter.To},
	} {
		raw := c.Query(bound.param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return respondWithError(c, models.NewValidationError(bound.param, "Expected an RFC 3339 timestamp"))
		}
		*bound.dst = &t
	}

	page, err := s.comments.List(c.UserContext(), filter, parsePage(c))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(page)
}

// ModerationQueue handles GET /api/admin/comments/pending
func (s *Server) ModerationQueue(c *fiber.Ctx) error {
	page, err := s.comments.ModerationQueue(c.UserContext(), parsePage(c))
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(page)
}

// CommentStats handles GET /api/admin/comments/stats
func (s *Server) CommentStats(c *fiber.Ctx) error {
	stats, err := s.comments.Stats(c.UserContext())
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(stats)
}

// ApproveComment handles POST /api/admin/comments/:id/approve
func (s *Server) ApproveComment(c *fiber.Ctx) error {
	return s.moderate(c, s.comments.Approve)
}

// RejectComment handles POST /api/admin/comments/:id/reject
func (s *Server) RejectComment(c *fiber.Ctx) error {
	return s.moderate(c, s.comments.Reject)
}

// MarkCommentSpam handles POST /api/admin/comments/:id/spam
func (s *Server) MarkCommentSpam(c *fiber.Ctx) error {
	return s.moderate(c, s.comments.MarkSpam)
}

func (s *Server) moderate(c *fiber.Ctx, action func(ctx context.Context, id uint) (*models.Comment, error)) error {
	id, err := parseID(c, "id")
	if err != nil {
		return respondWithError(c, err)
	}
	comment, err := action(c.UserContext(), id)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(comment)
}

// ResyncPost handles POST /api/admin/comments/posts/:postId/resync
func (s *Server) ResyncPost(c *fiber.Ctx) error {
	postID, err := parseID(c, "postId")
	if err != nil {
		return respondWithError(c, err)
	}
	n, err := s.comments.Resync(c.UserContext(), postID)
	if err != nil {
		return respondWithError(c, err)
	}
	return c.JSON(fiber.Map{"post_id": postID, "comment_count": n})
}

// parseID extracts a positive integer route parameter.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError(param, "Invalid "+param)
	}
	return uint(id), nil
}

func parsePage(c *fiber.Ctx) repository.Page {
	return repository.Page{
		Limit:  c.QueryInt("limit", service.DefaultPageSize),
		Offset: c.QueryInt("offset", 0),
	}
}
