// Package mocks holds testify doubles of the repository interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var (
	_ repository.DocumentRepository = (*MockDocumentRepository)(nil)
	_ repository.BorrowRepository   = (*MockBorrowRepository)(nil)
)

// first returns the first recorded value as T (its zero value when nil) and the second
// as an error.
func first[T any](args mock.Arguments) (T, error) {
	v, _ := args.Get(0).(T)
	return v, args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	return first[*model.Document](m.Called(ctx, doc))
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id string) (*model.Document, error) {
	return first[*model.Document](m.Called(ctx, id))
}

func (m *MockDocumentRepository) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	return first[*repository.PageResult[model.Document]](m.Called(ctx, pq))
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepository) CompleteIngestion(ctx context.Context, id string, pages int) error {
	return m.Called(ctx, id, pages).Error(0)
}

func (m *MockDocumentRepository) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *MockDocumentRepository) MarkFailed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockDocumentRepository) FailStale(ctx context.Context, before time.Time) (int, error) {
	return first[int](m.Called(ctx, before))
}

type MockBorrowRepository struct {
	mock.Mock
}

func (m *MockBorrowRepository) CreateIfAvailable(ctx context.Context, b *model.Borrow) (*model.Borrow, error) {
	return first[*model.Borrow](m.Called(ctx, b))
}

func (m *MockBorrowRepository) FindActive(ctx context.Context, userID, documentID string) (*model.Borrow, error) {
	return first[*model.Borrow](m.Called(ctx, userID, documentID))
}

func (m *MockBorrowRepository) MarkOverdue(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockBorrowRepository) MarkReturned(ctx context.Context, documentID, userID string, at time.Time) (*model.Borrow, error) {
	return first[*model.Borrow](m.Called(ctx, documentID, userID, at))
}

func (m *MockBorrowRepository) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.Borrow], error) {
	return first[*repository.PageResult[model.Borrow]](m.Called(ctx, userID, pq))
}
