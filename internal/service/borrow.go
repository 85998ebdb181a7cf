package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"docvault/internal/logger"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/repository"
)

// BorrowListResult is the service-level DTO for a page of loans.
type BorrowListResult struct {
	Items []model.Borrow `json:"data"`
	Total int            `json:"total"`
}

// BorrowService manages loans and decides page entitlement.
type BorrowService interface {
	// Borrow starts a LoanPeriod loan when a copy of the document is free.
	Borrow(ctx context.Context, userID, documentID string) (*model.Borrow, error)

	// Return ends the caller's active loan of the document.
	Return(ctx context.Context, documentID, userID string) (*model.Borrow, error)

	// HasAccess reports whether userID may read documentID right now. An expired loan is
	// flipped to overdue as a side effect.
	HasAccess(ctx context.Context, userID, documentID string) (bool, error)

	// ListMine returns the loans of userID, newest first.
	ListMine(ctx context.Context, userID string, limit, offset int) (*BorrowListResult, error)
}

type borrowService struct {
	docs    repository.DocumentRepository
	borrows repository.BorrowRepository
	newID   func() string
	now     func() time.Time
}

func NewBorrowService(docs repository.DocumentRepository, borrows repository.BorrowRepository) BorrowService {
	return newBorrowService(docs, borrows, time.Now)
}

func newBorrowService(docs repository.DocumentRepository, borrows repository.BorrowRepository, now func() time.Time) *borrowService {
	return &borrowService{docs: docs, borrows: borrows, newID: uuid.NewString, now: now}
}

func (s *borrowService) Borrow(ctx context.Context, userID, documentID string) (*model.Borrow, error) {
	if userID == "" || documentID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		s.outcome("not_found", err)
		return nil, notFound(err, "document")
	}
	// failed documents have no pages to lend
	if doc.Status == model.StatusDeleting || doc.Status == model.StatusFailed {
		s.outcome("not_found", nil)
		return nil, ErrNotFound
	}

	b, err := s.borrows.CreateIfAvailable(ctx, model.NewBorrow(s.newID(), userID, documentID, s.now()))
	switch {
	case err == nil:
		s.outcome("borrowed", nil)
		logger.Info("document_borrowed", logger.Fields{
			"borrow_id":   b.ID,
			"document_id": documentID,
			"user_id":     userID,
			"due_date":    b.DueDate,
		})
		return b, nil
	case errors.Is(err, repository.ErrCapacityExceeded):
		s.outcome("no_copies", nil)
		return nil, err
	case errors.Is(err, repository.ErrAlreadyBorrowed):
		s.outcome("already_borrowed", nil)
		return nil, err
	case errors.Is(err, repository.ErrNotFound):
		s.outcome("not_found", nil)
		return nil, notFound(err, "document")
	default:
		s.outcome("error", err)
		return nil, err
	}
}

func (s *borrowService) Return(ctx context.Context, documentID, userID string) (*model.Borrow, error) {
	if userID == "" || documentID == "" {
		return nil, ErrIDRequired
	}
	b, err := s.borrows.MarkReturned(ctx, documentID, userID, s.now())
	if err != nil {
		return nil, notFound(err, "active borrow")
	}
	return b, nil
}

func (s *borrowService) HasAccess(ctx context.Context, userID, documentID string) (bool, error) {
	if userID == "" {
		metrics.AccessDecisions.WithLabelValues("no_loan").Inc()
		return false, nil
	}
	b, err := s.borrows.FindActive(ctx, userID, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.AccessDecisions.WithLabelValues("no_loan").Inc()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// the stored status is never trusted alone; due date decides
	if b.Expired(s.now()) {
		metrics.AccessDecisions.WithLabelValues("overdue").Inc()
		if err := s.borrows.MarkOverdue(ctx, b.ID); err != nil {
			logger.Error("mark_overdue_failed", logger.Fields{"borrow_id": b.ID, "error": err})
		}
		return false, nil
	}
	metrics.AccessDecisions.WithLabelValues("granted").Inc()
	return true, nil
}

func (s *borrowService) ListMine(ctx context.Context, userID string, limit, offset int) (*BorrowListResult, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	res, err := s.borrows.ListByUser(ctx, userID, pageWindow(limit, offset))
	if err != nil {
		return nil, err
	}
	return &BorrowListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *borrowService) outcome(label string, err error) {
	metrics.BorrowOutcomes.WithLabelValues(label).Inc()
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("borrow_failed", logger.Fields{"error": err})
	}
}
