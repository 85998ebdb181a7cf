package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
)

func TestOriginalKey(t *testing.T) {
	assert.Equal(t, "originals/d1.docx", OriginalKey("d1", "private/original/up.DOCX"))
	assert.Equal(t, "originals/d1.pdf", OriginalKey("d1", "up.pdf"))
}

func TestNoop(t *testing.T) {
	var a Archive = Noop{}
	info, err := a.Put(context.Background(), "k", strings.NewReader("hello"), PutObjectOptions{Size: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)

	assert.NoError(t, a.Delete(context.Background(), "k"))
}

func TestNewMinIO(t *testing.T) {
	a, err := NewMinIO(context.Background(), config.MinIOConfig{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, a)

	_, err = NewMinIO(context.Background(), config.MinIOConfig{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "credentials")

	_, err = NewMinIO(context.Background(), config.MinIOConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestNewMinIO_ReportsEveryMissingSetting(t *testing.T) {
	_, err := NewMinIO(context.Background(), config.MinIOConfig{Endpoint: "localhost:9000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
	assert.Contains(t, err.Error(), "bucket")
}
