// Package repository provides data access layer implementations for the comment subsystem.
package repository

import (
	"context"
	"errors"

	"inkwell/internal/models"

	"gorm.io/gorm"
)

// Repositories groups the repositories bound to one connection or transaction.
type Repositories interface {
	Comments() CommentRepository
	Posts() PostRepository
}

// UnitOfWork runs a function against repositories bound to a single
// transaction. The transaction commits when fn returns nil and rolls back otherwise.
type UnitOfWork interface {
	Repositories
	WithTx(ctx context.Context, fn func(tx Repositories) error) error
}

// Store is the gorm-backed UnitOfWork.
type Store struct {
	db       *gorm.DB
	comments CommentRepository
	posts    PostRepository
}

// NewStore creates a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:       db,
		comments: NewCommentRepository(db),
		posts:    NewPostRepository(db),
	}
}

// Comments returns the comment repository.
func (s *Store) Comments() CommentRepository { return s.comments }

// Posts returns the post repository.
func (s *Store) Posts() PostRepository { return s.posts }

// WithTx runs fn inside one database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx Repositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewPersistenceError(err)
}

// translate maps gorm errors onto the subsystem's typed errors.
func translate(err error, resource string, id any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	default:
		return models.NewPersistenceError(err)
	}
}
