package repository

import (
	"context"
	"time"

	"docvault/internal/model"
)

// BorrowRepository persists loans.
type BorrowRepository interface {
	// CreateIfAvailable inserts b if the document still has a free copy. The capacity
	// check and the insert are atomic with respect to other borrows of the same document.
	// Loans of the document past their due date at b.BorrowDate are marked overdue first,
	// so they no longer hold a copy. Returns ErrNotFound, ErrCapacityExceeded or
	// ErrAlreadyBorrowed.
	CreateIfAvailable(ctx context.Context, b *model.Borrow) (*model.Borrow, error)

	// FindActive returns the user's loan of the document with status borrowed, or ErrNotFound.
	FindActive(ctx context.Context, userID, documentID string) (*model.Borrow, error)

	// MarkOverdue moves a borrowed loan to overdue. Loans in any other state are left as is.
	MarkOverdue(ctx context.Context, id string) error

	// MarkReturned closes the user's active loan of the document at the given time and
	// returns it, or ErrNotFound when there is none.
	MarkReturned(ctx context.Context, documentID, userID string, at time.Time) (*model.Borrow, error)

	// ListByUser returns the user's loans, newest first.
	ListByUser(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.Borrow], error)
}
