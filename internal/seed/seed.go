// Package seed populates a development database with users, posts and
// threaded comments. It is intended for local use and tests only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options controls how much data the Seeder creates.
type Options struct {
	Users           int
	Posts           int
	CommentsPerPost int
	// ReplyRatio is the chance that a comment answers an earlier one.
	ReplyRatio float64
	// RandSeed makes a run reproducible when non-zero.
	RandSeed int64
	MaxDays  int
}

// DefaultOptions is a small but realistic data set.
func DefaultOptions() Options {
	return Options{
		Users:           20,
		Posts:           30,
		CommentsPerPost: 12,
		ReplyRatio:      0.4,
		MaxDays:         60,
	}
}

// Summary reports what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Approved int64
}

// Seeder writes fake data through the repository layer.
type Seeder struct {
	db    *gorm.DB
	store *repository.Store
	opts  Options
	faker *gofakeit.Faker
	rng   *rand.Rand
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	return &Seeder{
		db:    db,
		store: repository.NewStore(db),
		opts:  opts,
		faker: gofakeit.New(seed),
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// ClearAll removes every comment, post and user.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	// Replies reference their parents with ON DELETE RESTRICT.
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&models.Comment{}).Update("parent_id", nil).Error; err != nil {
		return fmt.Errorf("detach replies: %w", err)
	}
	for _, model := range []any{&models.Comment{}, &models.Post{}, &models.User{}} {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	observability.Logger.InfoContext(ctx, "seed data cleared")
	return nil
}

// Run creates users, posts and comment threads, then brings every post's
// comment_count in line with its approved comments.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return &Summary{}, nil
	}

	summary := &Summary{Users: len(users)}
	for i := 0; i < s.opts.Posts; i++ {
		post, err := s.createPost(ctx, users[s.rng.Intn(len(users))], i)
		if err != nil {
			return nil, err
		}
		summary.Posts++

		n, err := s.createThread(ctx, post, users)
		if err != nil {
			return nil, err
		}
		summary.Comments += n

		var count int64
		err = s.store.WithTx(ctx, func(tx repository.Repositories) error {
			if _, err := tx.Posts().GetForUpdate(ctx, post.ID); err != nil {
				return err
			}
			count, err = service.NewCounterSync(tx).Sync(ctx, post.ID)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("sync post %d: %w", post.ID, err)
		}
		summary.Approved += count
	}

	observability.Logger.InfoContext(ctx, "seed complete",
		"users", summary.Users,
		"posts", summary.Posts,
		"comments", summary.Comments,
		"approved", summary.Approved,
	)
	return summary, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]*models.User, error) {
	users := make([]*models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		user := &models.User{
			Username: fmt.Sprintf("%s%d", s.faker.Username(), i),
			Email:    fmt.Sprintf("user%d.%s", i, s.faker.Email()),
			IsAdmin:  i == 0,
		}
		if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) createPost(ctx context.Context, owner *models.User, i int) (*models.Post, error) {
	status := models.PostPublished
	switch s.rng.Intn(10) {
	case 0:
		status = models.PostDraft
	case 1:
		status = models.PostArchived
	}
	post := &models.Post{
		UserID:        owner.ID,
		Title:         s.faker.Sentence(6),
		Slug:          fmt.Sprintf("%s-%d", s.faker.Word(), i),
		Status:        status,
		AllowComments: s.rng.Intn(8) != 0,
		CreatedAt:     s.pastTime(),
	}
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

// createThread adds comments in creation order so that a reply never
// predates its parent.
func (s *Seeder) createThread(ctx context.Context, post *models.Post, users []*models.User) (int, error) {
	var created []*models.Comment
	at := post.CreatedAt
	for i := 0; i < s.opts.CommentsPerPost; i++ {
		at = at.Add(time.Duration(1+s.rng.Intn(180)) * time.Minute)
		comment := &models.Comment{
			PostID:    post.ID,
			Content:   s.faker.Paragraph(1, 2, 12, " "),
			Status:    s.status(),
			IPAddress: s.faker.IPv4Address(),
			UserAgent: s.faker.UserAgent(),
			CreatedAt: at,
		}
		if len(comment.Content) > 1000 {
			comment.Content = comment.Content[:1000]
		}

		if s.rng.Intn(3) == 0 {
			comment.AuthorName = s.faker.Name()
			comment.AuthorEmail = s.faker.Email()
			if s.rng.Intn(2) == 0 {
				comment.AuthorWebsite = s.faker.URL()
			}
		} else {
			author := users[s.rng.Intn(len(users))]
			comment.UserID = &author.ID
			comment.AuthorName = author.Username
			comment.AuthorEmail = author.Email
		}

		if len(created) > 0 && s.rng.Float64() < s.opts.ReplyRatio {
			parent := created[s.rng.Intn(len(created))]
			comment.ParentID = &parent.ID
		}

		if err := s.store.Comments().Create(ctx, comment); err != nil {
			return 0, fmt.Errorf("create comment: %w", err)
		}
		created = append(created, comment)
	}
	return len(created), nil
}

func (s *Seeder) status() models.CommentStatus {
	switch n := s.rng.Intn(10); {
	case n < 7:
		return models.CommentApproved
	case n < 9:
		return models.CommentPending
	default:
		return models.CommentSpam
	}
}

func (s *Seeder) pastTime() time.Time {
	days := s.rng.Intn(s.opts.MaxDays)
	return time.Now().Add(-time.Duration(days)*24*time.Hour - time.Duration(s.rng.Intn(24))*time.Hour)
}
