package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/render"
	"docvault/internal/repository/memory"
)

// popplerStub answers pdfinfo with a fixed page count and writes a white PNG per page.
type popplerStub struct {
	pages string
}

func (p popplerStub) Run(_ context.Context, name string, args ...string) (string, string, error) {
	switch name {
	case "pdfinfo":
		return "Producer: test\nPages:          " + p.pages + "\n", "", nil
	case "pdftoppm":
		return "", "", os.WriteFile(args[len(args)-1]+pagestore.PageExt, whitePNG(40, 30), 0o640)
	}
	return "", "exec: not found", os.ErrNotExist
}

func whitePNG(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// inlineQueue converts documents on the caller's goroutine.
type inlineQueue struct {
	d *render.Dispatcher
}

func (q inlineQueue) Submit(doc *model.Document) error {
	_, _ = q.d.Ingest(context.Background(), doc)
	return nil
}

// memoryViews is an in-process view trail.
type memoryViews struct {
	mu    sync.Mutex
	views []model.View
}

func (m *memoryViews) Record(_ context.Context, v model.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, v)
	return nil
}

func (m *memoryViews) Recent(_ context.Context, documentID string, _ int) ([]model.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.View
	for i := len(m.views) - 1; i >= 0; i-- {
		if m.views[i].DocumentID == documentID {
			out = append(out, m.views[i])
		}
	}
	return out, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// library is a fully wired in-memory system.
type library struct {
	repo    *memory.Store
	pages   *pagestore.Store
	docs    DocumentService
	borrows *borrowService
	reader  *pageService
	views   *memoryViews
	clock   *clock
}

func newLibrary(t *testing.T, pageCount string) *library {
	t.Helper()
	root := t.TempDir()
	pages, err := pagestore.New(filepath.Join(root, "original"), filepath.Join(root, "rendered"))
	require.NoError(t, err)

	repo := memory.New()
	strategies := render.NewStrategies(popplerStub{pages: pageCount}, pages, config.RenderConfig{DPI: 72})
	dispatcher := render.NewDispatcher(repo.Documents(), pages, strategies)

	clk := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	borrows := newBorrowService(repo.Documents(), repo.Borrows(), clk.Now)
	views := &memoryViews{}
	reader := NewPageService(repo.Documents(), pages, borrows, views).(*pageService)
	reader.now = clk.Now

	return &library{
		repo:    repo,
		pages:   pages,
		docs:    NewDocumentService(repo.Documents(), dispatcher, pages, inlineQueue{d: dispatcher}, nil),
		borrows: borrows,
		reader:  reader,
		views:   views,
		clock:   clk,
	}
}

func (l *library) upload(t *testing.T, title string, copies int) *model.Document {
	t.Helper()
	doc, err := l.docs.Upload(context.Background(), strings.NewReader("%PDF-1.7"), UploadInput{
		Title:       title,
		FileName:    "book.pdf",
		ContentType: "application/pdf",
		TotalCopies: copies,
	})
	require.NoError(t, err)
	stored, err := l.docs.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	return stored
}
