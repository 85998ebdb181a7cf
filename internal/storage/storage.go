// Package storage archives uploaded originals in an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
	"time"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Archive is a streaming object store for original uploads.
type Archive interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
}

// OriginalKey is the object key of a document's uploaded source, e.g. "originals/<id>.docx".
func OriginalKey(docID, filePath string) string {
	return path.Join("originals", docID+strings.ToLower(path.Ext(filePath)))
}

// Noop is the Archive used when no object store is configured.
type Noop struct{}

func (Noop) Put(_ context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	n, err := io.Copy(io.Discard, r)
	return ObjectInfo{Key: key, Size: n, ContentType: opt.ContentType}, err
}

func (Noop) Delete(context.Context, string) error { return nil }
