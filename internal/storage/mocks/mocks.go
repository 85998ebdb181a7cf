// Package mocks holds a testify double of storage.Archive.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"docvault/internal/storage"
)

var _ storage.Archive = (*MockArchive)(nil)

// MockArchive records archive calls. Put accepts either an ObjectInfo or a
// func(ctx, key, r, opt) ObjectInfo as its first return value.
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Put(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) (storage.ObjectInfo, error) {
	args := m.Called(ctx, key, r, opt)
	switch v := args.Get(0).(type) {
	case func(context.Context, string, io.Reader, storage.PutObjectOptions) storage.ObjectInfo:
		return v(ctx, key, r, opt), args.Error(1)
	case storage.ObjectInfo:
		return v, args.Error(1)
	}
	return storage.ObjectInfo{}, args.Error(1)
}

func (m *MockArchive) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
