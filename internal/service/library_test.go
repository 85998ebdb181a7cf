package service

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/delivery"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/repository"
)

func TestLibrary_UploadRendersEveryPage(t *testing.T) {
	l := newLibrary(t, "3")
	doc := l.upload(t, "Three pages", 0)

	assert.Equal(t, model.StatusReady, doc.Status)
	assert.Equal(t, 3, doc.TotalPages)
	assert.Equal(t, model.DefaultTotalCopies, doc.TotalCopies)
	for n := 1; n <= 3; n++ {
		assert.FileExists(t, l.pages.Path(doc.ID, n))
	}
	assert.NoError(t, l.pages.Verify(doc.ID, doc.TotalPages))

	_, err := l.reader.ReadPage(context.Background(), doc.ID, 4, Reader{ID: "u1"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibrary_CapacityIsReleasedOnReturn(t *testing.T) {
	l := newLibrary(t, "1")
	ctx := context.Background()
	doc := l.upload(t, "Single copy", 1)

	_, err := l.borrows.Borrow(ctx, "alice", doc.ID)
	require.NoError(t, err)

	_, err = l.borrows.Borrow(ctx, "bob", doc.ID)
	assert.ErrorIs(t, err, repository.ErrCapacityExceeded)

	returned, err := l.borrows.Return(ctx, doc.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.BorrowReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)

	_, err = l.borrows.Borrow(ctx, "bob", doc.ID)
	assert.NoError(t, err)
}

func TestLibrary_ExpiredLoanDeniesAccess(t *testing.T) {
	l := newLibrary(t, "2")
	ctx := context.Background()
	doc := l.upload(t, "Loan", 1)

	b, err := l.borrows.Borrow(ctx, "alice", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, b.BorrowDate.Add(14*24*time.Hour), b.DueDate)

	_, err = l.reader.ReadPage(ctx, doc.ID, 1, Reader{ID: "alice"})
	require.NoError(t, err)

	l.clock.Advance(15 * 24 * time.Hour)

	_, err = l.reader.ReadPage(ctx, doc.ID, 1, Reader{ID: "alice"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	mine, err := l.borrows.ListMine(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, model.BorrowOverdue, mine.Items[0].Status)

	// the expired copy is free again
	_, err = l.borrows.Borrow(ctx, "bob", doc.ID)
	assert.NoError(t, err)
}

func TestLibrary_ReadPageIsStampedAndEncoded(t *testing.T) {
	l := newLibrary(t, "2")
	ctx := context.Background()
	doc := l.upload(t, "Stamped", 1)

	_, err := l.reader.ReadPage(ctx, doc.ID, 1, Reader{ID: "42", Name: "Ada"})
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = l.borrows.Borrow(ctx, "42", doc.ID)
	require.NoError(t, err)

	out, err := l.reader.ReadPage(ctx, doc.ID, 2, Reader{ID: "42", Name: "Ada", Address: "10.0.0.1"})
	require.NoError(t, err)

	_, err = png.Decode(bytes.NewReader(out))
	assert.Error(t, err, "delivered bytes must not be a plain image")

	img, err := png.Decode(bytes.NewReader(delivery.Decode(out)))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())

	views, err := l.reader.RecentViews(ctx, doc.ID, 10)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "42", views[0].UserID)
	assert.Equal(t, 2, views[0].Page)
	assert.Equal(t, "Ada #42 · 10.0.0.1 · 2026-03-01", views[0].Watermark)
}

func TestLibrary_PreviewNeedsNoLoan(t *testing.T) {
	l := newLibrary(t, "2")
	doc := l.upload(t, "Preview", 1)

	out, err := l.reader.Preview(context.Background(), doc.ID, "192.0.2.7")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	require.Len(t, l.views.views, 1)
	assert.True(t, l.views.views[0].Preview)
	assert.Equal(t, "2026-03-01", l.views.views[0].Watermark)
	assert.Empty(t, l.views.views[0].UserID)
}

func TestLibrary_MissingArtifactIsCorruption(t *testing.T) {
	l := newLibrary(t, "2")
	ctx := context.Background()
	doc := l.upload(t, "Corrupt", 1)
	_, err := l.borrows.Borrow(ctx, "u1", doc.ID)
	require.NoError(t, err)

	require.NoError(t, os.Remove(l.pages.Path(doc.ID, 2)))

	_, err = l.reader.ReadPage(ctx, doc.ID, 2, Reader{ID: "u1"})
	assert.ErrorIs(t, err, pagestore.ErrCorrupt)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestLibrary_DeleteRemovesEverything(t *testing.T) {
	l := newLibrary(t, "2")
	ctx := context.Background()
	doc := l.upload(t, "Doomed", 1)
	_, err := l.borrows.Borrow(ctx, "u1", doc.ID)
	require.NoError(t, err)

	require.NoError(t, l.docs.Delete(ctx, doc.ID))

	assert.NoDirExists(t, l.pages.Dir(doc.ID))
	assert.NoFileExists(t, doc.FilePath)
	_, err = l.docs.Get(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.reader.ReadPage(ctx, doc.ID, 1, Reader{ID: "u1"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, l.docs.Delete(ctx, doc.ID), ErrNotFound)
}

func TestLibrary_FailedConversionKeepsRowAsFailed(t *testing.T) {
	l := newLibrary(t, "0")
	ctx := context.Background()

	doc, err := l.docs.Upload(ctx, bytes.NewReader([]byte("%PDF")), UploadInput{Title: "Empty", FileName: "empty.pdf"})
	require.NoError(t, err)

	stored, err := l.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Zero(t, stored.TotalPages)
	assert.NoDirExists(t, l.pages.Dir(doc.ID))
	assert.NoDirExists(t, l.pages.StagingDir(doc.ID))

	_, err = l.reader.Preview(ctx, doc.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.borrows.Borrow(ctx, "alice", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLibrary_ConcurrentBorrowsNeverExceedCopies(t *testing.T) {
	l := newLibrary(t, "1")
	doc := l.upload(t, "Popular", 3)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			if _, err := l.borrows.Borrow(context.Background(), user, doc.ID); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, repository.ErrCapacityExceeded)
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
}
