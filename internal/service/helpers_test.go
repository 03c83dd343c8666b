package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordedEvent struct {
	event   notifications.Event
	comment models.Comment
}

// recordingDispatcher captures notifications synchronously.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (d *recordingDispatcher) Notify(_ context.Context, event notifications.Event, c *models.Comment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, recordedEvent{event: event, comment: *c})
}

func (d *recordingDispatcher) Events() []recordedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]recordedEvent(nil), d.events...)
}

type testEnv struct {
	db       *gorm.DB
	store    *repository.Store
	svc      *CommentService
	events   *recordingDispatcher
	limits   *ratelimit.MemoryStore
	postUser models.User
}

type envOption func(*Options)

func withRateLimit(n int) envOption {
	return func(o *Options) { o.RateLimit = n }
}

func withFlags(raw string) envOption {
	return func(o *Options) { o.Flags = featureflags.Parse(raw) }
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}))
	return db
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	limits, err := ratelimit.NewMemoryStore(0)
	require.NoError(t, err)

	events := &recordingDispatcher{}
	o := Options{RateLimit: 1000, RateWindow: time.Minute, Notifier: events}
	for _, opt := range opts {
		opt(&o)
	}

	store := repository.NewStore(db)
	owner := models.User{Username: "author", Email: "author@example.com"}
	require.NoError(t, db.Create(&owner).Error)

	return &testEnv{
		db:       db,
		store:    store,
		svc:      NewCommentService(store, ratelimit.New(limits), o),
		events:   events,
		limits:   limits,
		postUser: owner,
	}
}

func (e *testEnv) createPost(t *testing.T, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	post := &models.Post{
		UserID:        e.postUser.ID,
		Title:         gofakeit.Sentence(4),
		Slug:          gofakeit.UUID(),
		Status:        models.PostPublished,
		AllowComments: true,
	}
	for _, m := range mutate {
		m(post)
	}
	require.NoError(t, e.db.Create(post).Error)
	return post
}

func (e *testEnv) commentCount(t *testing.T, postID uint) int64 {
	t.Helper()
	var post models.Post
	require.NoError(t, e.db.Unscoped().First(&post, postID).Error)
	return post.CommentCount
}

func (e *testEnv) approvedCount(t *testing.T, postID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Comment{}).
		Where("post_id = ? AND status = ?", postID, models.CommentApproved).
		Count(&n).Error)
	return n
}

func (e *testEnv) rowCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Comment{}).Count(&n).Error)
	return n
}

func anonymous() models.Anonymous {
	return models.Anonymous{Name: gofakeit.FirstName() + " " + gofakeit.LastName(), Email: gofakeit.Email()}
}

func member(id uint) models.Authenticated {
	return models.Authenticated{ID: id, Name: gofakeit.Username(), Email: gofakeit.Email()}
}

func meta(ip string) models.RequestMeta {
	return models.RequestMeta{IPAddress: ip, UserAgent: gofakeit.UserAgent()}
}

func uintPtr(v uint) *uint { return &v }
