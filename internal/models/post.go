package models

import (
	"time"

	"gorm.io/gorm"
)

// Post statuses.
const (
	PostDraft     = "draft"
	PostPublished = "published"
	PostArchived  = "archived"
)

// Post is the owning blog post. Only the columns the comment subsystem reads
// or maintains are mapped here; post CRUD lives elsewhere.
type Post struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	UserID        uint   `gorm:"not null;index" json:"user_id"`
	Title         string `gorm:"not null" json:"title"`
	Slug          string `gorm:"uniqueIndex;size:255" json:"slug"`
	Status        string `gorm:"size:16;not null" json:"status"`
	AllowComments bool   `gorm:"not null" json:"allow_comments"`
	// CommentCount mirrors the number of approved comments.
	CommentCount int64          `gorm:"not null" json:"comment_count"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Published reports whether the post is visible to readers.
func (p *Post) Published() bool {
	return p.Status == PostPublished && !p.DeletedAt.Valid
}

// User is the registered account referenced by posts and comments.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	IsAdmin   bool      `gorm:"not null" json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}
