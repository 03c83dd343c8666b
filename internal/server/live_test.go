package server

import (
	"net"
	"net/http"
	"testing"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/notifications"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveComments_RequiresUpgrade(t *testing.T) {
	s, db := setupServer(t, 5)
	post := createPost(t, db, 1, "plain")

	resp, _ := doJSON(t, s, http.MethodGet, postPath(post.ID)+"/live", "", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestLiveComments_StreamsApprovedEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s, db := setupServerWith(t, &config.Config{
		Env:                      "test",
		Port:                     "0",
		CommentRateLimit:         5,
		CommentRateWindowSeconds: 300,
	}, rdb, WithAuthenticator(headerAuth))
	post := createPost(t, db, 1, "live")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.App().Shutdown() })

	url := "ws://" + ln.Addr().String() + postPath(post.ID) + "/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "subscribed", hello["event"])
	assert.Equal(t, notifications.PostChannel(post.ID), hello["channel"])

	// The pending anonymous comment is never streamed.
	resp, _ := doJSON(t, s, http.MethodPost, postPath(post.ID), "", SubmitCommentRequest{
		Content: "Awaiting review", AuthorName: "Anna", AuthorEmail: "a@x.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, s, http.MethodPost, postPath(post.ID), "7", SubmitCommentRequest{Content: "Visible at once"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := uint(body["comment"].(map[string]any)["id"].(float64))

	var msg notifications.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, notifications.EventCreated, msg.Event)
	assert.Equal(t, id, msg.CommentID)
	assert.Equal(t, models.CommentApproved, msg.Status)
}

func TestPublicMessage(t *testing.T) {
	uid := uint(3)
	tests := []struct {
		name   string
		in     notifications.Message
		ok     bool
		author string
	}{
		{"approved", notifications.Message{Event: notifications.EventApproved, Status: models.CommentApproved, Author: "Kim", UserID: &uid}, true, "Kim"},
		{"pending", notifications.Message{Event: notifications.EventCreated, Status: models.CommentPending, Author: "Anna"}, false, ""},
		{"withdrawn", notifications.Message{Event: notifications.EventRejected, Status: models.CommentSpam, Author: "Kim", UserID: &uid}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := publicMessage(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.author, out.Author)
			}
		})
	}
}
