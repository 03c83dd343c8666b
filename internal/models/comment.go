// Package models contains data structures for the comment subsystem's domain.
package models

import (
	"time"
)

// CommentStatus is the moderation state of a comment.
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentSpam     CommentStatus = "spam"
)

// Valid reports whether s is one of the known statuses.
func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentSpam:
		return true
	}
	return false
}

// Comment represents a reader comment on a blog post.
type Comment struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	PostID        uint          `gorm:"not null;index:idx_comments_post_status,priority:1" json:"post_id"`
	Post          *Post         `gorm:"foreignKey:PostID;constraint:OnDelete:RESTRICT" json:"-"`
	UserID        *uint         `gorm:"index" json:"user_id,omitempty"`
	ParentID      *uint         `gorm:"index" json:"parent_id,omitempty"`
	Parent        *Comment      `gorm:"foreignKey:ParentID;constraint:OnDelete:RESTRICT" json:"-"`
	AuthorName    string        `gorm:"size:100" json:"author_name"`
	AuthorEmail   string        `gorm:"size:255" json:"author_email,omitempty"`
	AuthorWebsite string        `gorm:"size:255" json:"author_website,omitempty"`
	Content       string        `gorm:"type:text;not null" json:"content"`
	Status        CommentStatus `gorm:"size:16;not null;index:idx_comments_post_status,priority:2;index:idx_comments_status_created,priority:1" json:"status"`
	IPAddress     string        `gorm:"size:45" json:"-"`
	UserAgent     string        `gorm:"size:512" json:"-"`
	CreatedAt     time.Time     `gorm:"index:idx_comments_status_created,priority:2" json:"created_at"`
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}
