package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"inkwell/internal/config"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// headerAuth trusts X-Test-User ("<id>" or "admin:<id>") for tests only.
func headerAuth(c *fiber.Ctx) (models.Actor, error) {
	raw := c.Get("X-Test-User")
	if raw == "" {
		return nil, nil
	}
	admin := false
	if rest, ok := strings.CutPrefix(raw, "admin:"); ok {
		admin, raw = true, rest
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return models.Authenticated{ID: uint(id), Name: "user" + raw, Email: "user" + raw + "@example.com", Admin: admin}, nil
}

func setupServer(t *testing.T, rateLimit int) (*Server, *gorm.DB) {
	t.Helper()
	return setupServerWith(t, &config.Config{
		Env:                      "test",
		Port:                     "0",
		CommentRateLimit:         rateLimit,
		CommentRateWindowSeconds: 300,
	}, nil, WithAuthenticator(headerAuth))
}

func setupServerWith(t *testing.T, cfg *config.Config, rdb *redis.Client, opts ...Option) (*Server, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}))

	s, err := New(cfg, db, rdb, opts...)
	require.NoError(t, err)
	return s, db
}

func createPost(t *testing.T, db *gorm.DB, owner uint, slug string) *models.Post {
	t.Helper()
	post := &models.Post{UserID: owner, Title: slug, Slug: slug, Status: models.PostPublished, AllowComments: true}
	require.NoError(t, db.Create(post).Error)
	return post
}

func doJSON(t *testing.T, s *Server, method, path, user string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func uintPtr(v uint) *uint { return &v }

func postPath(id uint) string {
	return "/api/posts/" + strconv.FormatUint(uint64(id), 10) + "/comments"
}

func TestSubmitComment(t *testing.T) {
	s, db := setupServer(t, 100)
	post := createPost(t, db, 1, "hello")

	t.Run("Anonymous is pending", func(t *testing.T) {
		resp, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "", SubmitCommentRequest{
			Content: "Nice post!", AuthorName: "Anna", AuthorEmail: "a@x.com",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		comment := body["comment"].(map[string]any)
		assert.Equal(t, "pending", comment["status"])
		assert.NotContains(t, comment, "ip_address")
	})

	t.Run("Authenticated is approved", func(t *testing.T) {
		resp, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "7", SubmitCommentRequest{
			Content: "Member comment", AuthorName: "Spoofed", AuthorEmail: "spoof@x.com",
		})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		comment := body["comment"].(map[string]any)
		assert.Equal(t, "approved", comment["status"])
		assert.Equal(t, "user7", comment["author_name"])
	})

	t.Run("Validation error names field", func(t *testing.T) {
		resp, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "", SubmitCommentRequest{
			Content: "ok", AuthorName: "Anna", AuthorEmail: "a@x.com",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, models.CodeValidation, body["code"])
		assert.Equal(t, "content", body["field"])
	})

	t.Run("Unknown post", func(t *testing.T) {
		resp, body := doJSON(t, s, http.MethodPost, postPath(999), "7", SubmitCommentRequest{Content: "Hello there"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, models.CodeNotFound, body["code"])
	})

	t.Run("Bad post id", func(t *testing.T) {
		resp, _ := doJSON(t, s, http.MethodPost, "/api/posts/abc/comments", "7", SubmitCommentRequest{Content: "Hello there"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSubmitComment_RateLimited(t *testing.T) {
	s, db := setupServer(t, 2)
	post := createPost(t, db, 1, "limited")

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, s, http.MethodPost, postPath(post.ID), "3", SubmitCommentRequest{Content: "Comment body"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "3", SubmitCommentRequest{Content: "Comment body"})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, models.CodeRateLimited, body["code"])

	resp, body = doJSON(t, s, http.MethodGet, postPath(post.ID)+"/can-comment", "3", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["allowed"])
}

func TestThreadAndModerationFlow(t *testing.T) {
	s, db := setupServer(t, 100)
	post := createPost(t, db, 1, "flow")

	_, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "5", SubmitCommentRequest{Content: "Root **bold**"})
	rootID := uint(body["comment"].(map[string]any)["id"].(float64))

	_, body = doJSON(t, s, http.MethodPost, postPath(post.ID), "", SubmitCommentRequest{
		Content: "<script>x()</script> anon reply", ParentID: &rootID, AuthorName: "Anna", AuthorEmail: "a@x.com",
	})
	replyID := int(body["comment"].(map[string]any)["id"].(float64))

	resp, body := doJSON(t, s, http.MethodGet, postPath(post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Moderation needs an admin.
	resp, _ = doJSON(t, s, http.MethodPost, "/api/admin/comments/"+strconv.Itoa(replyID)+"/approve", "5", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = doJSON(t, s, http.MethodGet, "/api/admin/comments/pending", "admin:1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = doJSON(t, s, http.MethodPost, "/api/admin/comments/"+strconv.Itoa(replyID)+"/approve", "admin:1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "approved", body["status"])

	resp, body = doJSON(t, s, http.MethodPost, "/api/admin/comments/"+strconv.Itoa(replyID)+"/approve", "admin:1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, body["code"])

	resp, body = doJSON(t, s, http.MethodGet, postPath(post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])
	roots := body["comments"].([]any)
	require.Len(t, roots, 1)
	root := roots[0].(map[string]any)
	assert.Contains(t, root["content_html"], "<strong>bold</strong>")
	replies := root["replies"].([]any)
	require.Len(t, replies, 1)
	assert.NotContains(t, replies[0].(map[string]any)["content_html"], "<script")

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, int64(2), stored.CommentCount)

	resp, body = doJSON(t, s, http.MethodGet, "/api/admin/comments/stats", "admin:1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["approved_comments"])
}

func TestDeleteComment(t *testing.T) {
	s, db := setupServer(t, 100)
	post := createPost(t, db, 9, "delete")

	_, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "5", SubmitCommentRequest{Content: "Root comment"})
	rootID := uint(body["comment"].(map[string]any)["id"].(float64))
	_, _ = doJSON(t, s, http.MethodPost, postPath(post.ID), "6", SubmitCommentRequest{Content: "Reply comment", ParentID: &rootID})
	path := "/api/comments/" + strconv.FormatUint(uint64(rootID), 10)

	resp, body := doJSON(t, s, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeForbidden, body["code"])

	resp, _ = doJSON(t, s, http.MethodDelete, path, "6", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The post author may remove comments on their post.
	resp, body = doJSON(t, s, http.MethodDelete, path, "9", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["removed"])
	assert.Equal(t, float64(0), body["comment_count"])

	resp, _ = doJSON(t, s, http.MethodDelete, path, "9", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminListFilters(t *testing.T) {
	s, db := setupServer(t, 100)
	post := createPost(t, db, 1, "list")
	_, _ = doJSON(t, s, http.MethodPost, postPath(post.ID), "4", SubmitCommentRequest{Content: "member comment"})

	resp, body := doJSON(t, s, http.MethodGet, "/api/admin/comments?status=approved&user_id=4", "admin:1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["total"])

	resp, body = doJSON(t, s, http.MethodGet, "/api/admin/comments?from=yesterday", "admin:1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "from", body["field"])

	resp, _ = doJSON(t, s, http.MethodGet, "/api/admin/comments?status=bogus", "admin:1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

}

func TestGetUserComments(t *testing.T) {
	s, db := setupServer(t, 100)
	post := createPost(t, db, 1, "mine")
	_, _ = doJSON(t, s, http.MethodPost, postPath(post.ID), "4", SubmitCommentRequest{Content: "member comment"})
	require.NoError(t, db.Create(&models.Comment{
		PostID:      post.ID,
		UserID:      uintPtr(4),
		AuthorName:  "user4",
		AuthorEmail: "user4@example.com",
		Content:     "held back",
		Status:      models.CommentSpam,
	}).Error)

	const path = "/api/users/4/comments"
	t.Run("Denied", func(t *testing.T) {
		for _, user := range []string{"", "5"} {
			resp, body := doJSON(t, s, http.MethodGet, path, user, nil)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode, "user %q", user)
			assert.Equal(t, models.CodeForbidden, body["code"])
			assert.NotContains(t, body, "items")
		}
	})

	t.Run("Allowed", func(t *testing.T) {
		for _, user := range []string{"4", "admin:1"} {
			resp, body := doJSON(t, s, http.MethodGet, path, user, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, "user %q", user)
			assert.Equal(t, float64(2), body["total"])
			items := body["items"].([]any)
			require.Len(t, items, 2)
			assert.Equal(t, "user4@example.com", items[0].(map[string]any)["author_email"])
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  *models.AppError
		want int
	}{
		{models.NewValidationError("content", "bad"), http.StatusBadRequest},
		{models.NewRateLimitError(nil), http.StatusTooManyRequests},
		{models.NewRateLimitError(assert.AnError), http.StatusServiceUnavailable},
		{models.NewNotFoundError("Post", 1), http.StatusNotFound},
		{models.NewForbiddenError("no"), http.StatusForbidden},
		{models.NewConflictError("no"), http.StatusConflict},
		{models.NewPersistenceError(assert.AnError), http.StatusInternalServerError},
		{models.NewInternalError(assert.AnError), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := setupServer(t, 5)

	resp, body := doJSON(t, s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "unavailable", body["checks"].(map[string]any)["redis"])

	resp, _ = doJSON(t, s, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mresp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer mresp.Body.Close()
	raw, _ := io.ReadAll(mresp.Body)
	assert.Equal(t, http.StatusOK, mresp.StatusCode)
	assert.Contains(t, string(raw), "http_requests_total")
}
