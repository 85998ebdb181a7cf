// Package mocks holds testify doubles of the service interfaces for handler tests.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/service"
)

var (
	_ service.DocumentService = (*MockDocumentService)(nil)
	_ service.BorrowService   = (*MockBorrowService)(nil)
	_ service.PageService     = (*MockPageService)(nil)
)

func first[T any](args mock.Arguments) (T, error) {
	v, _ := args.Get(0).(T)
	return v, args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, r io.Reader, in service.UploadInput) (*model.Document, error) {
	return first[*model.Document](m.Called(ctx, r, in))
}

func (m *MockDocumentService) List(ctx context.Context, limit, offset int) (*service.DocumentListResult, error) {
	return first[*service.DocumentListResult](m.Called(ctx, limit, offset))
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	return first[*model.Document](m.Called(ctx, id))
}

func (m *MockDocumentService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockBorrowService struct {
	mock.Mock
}

func (m *MockBorrowService) Borrow(ctx context.Context, userID, documentID string) (*model.Borrow, error) {
	return first[*model.Borrow](m.Called(ctx, userID, documentID))
}

func (m *MockBorrowService) Return(ctx context.Context, documentID, userID string) (*model.Borrow, error) {
	return first[*model.Borrow](m.Called(ctx, documentID, userID))
}

func (m *MockBorrowService) HasAccess(ctx context.Context, userID, documentID string) (bool, error) {
	args := m.Called(ctx, userID, documentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBorrowService) ListMine(ctx context.Context, userID string, limit, offset int) (*service.BorrowListResult, error) {
	return first[*service.BorrowListResult](m.Called(ctx, userID, limit, offset))
}

type MockPageService struct {
	mock.Mock
}

func (m *MockPageService) ReadPage(ctx context.Context, documentID string, n int, who service.Reader) ([]byte, error) {
	return first[[]byte](m.Called(ctx, documentID, n, who))
}

func (m *MockPageService) Preview(ctx context.Context, documentID, address string) ([]byte, error) {
	return first[[]byte](m.Called(ctx, documentID, address))
}

func (m *MockPageService) RecentViews(ctx context.Context, documentID string, limit int) ([]model.View, error) {
	return first[[]model.View](m.Called(ctx, documentID, limit))
}
