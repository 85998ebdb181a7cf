package render

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
)

type stubStrategy func(ctx context.Context, docID, inputPath string) (int, error)

func (f stubStrategy) Prepare(ctx context.Context, docID, inputPath string) (int, error) {
	return f(ctx, docID, inputPath)
}

func newDispatcher(t *testing.T, runner CommandRunner) (*Dispatcher, *memory.Store, *pagestore.Store) {
	t.Helper()
	store := newTestStore(t)
	repo := memory.New()
	strategies := NewStrategies(runner, store, config.RenderConfig{DPI: 72})
	return NewDispatcher(repo.Documents(), store, strategies), repo, store
}

func upload(t *testing.T, store *pagestore.Store, name string) string {
	t.Helper()
	p := store.OriginalPath("upload", name)
	require.NoError(t, os.WriteFile(p, []byte("data"), 0o640))
	return p
}

func TestDispatcher_StrategyFor(t *testing.T) {
	d, _, _ := newDispatcher(t, &fakeRunner{})

	s, err := d.StrategyFor(model.FormatPDF)
	require.NoError(t, err)
	assert.IsType(t, &PDFStrategy{}, s)

	s, err = d.StrategyFor(model.FormatDOCX)
	require.NoError(t, err)
	assert.IsType(t, &DOCXStrategy{}, s)

	_, err = d.StrategyFor(model.Format("ODT"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDispatcher_RegisterDefaultsAndValidation(t *testing.T) {
	d, _, store := newDispatcher(t, &fakeRunner{})
	ctx := context.Background()
	path := upload(t, store, ".pdf")

	doc, err := d.Register(ctx, CreateInput{Title: " Report ", FilePath: path, Format: model.FormatPDF})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "Report", doc.Title)
	assert.Equal(t, model.DefaultTotalCopies, doc.TotalCopies)
	assert.Equal(t, model.CopyrightUnknown, doc.CopyrightStatus)
	assert.Equal(t, model.StatusProcessing, doc.Status)
	assert.Zero(t, doc.TotalPages)

	bad := []CreateInput{
		{Title: "", FilePath: path, Format: model.FormatPDF},
		{Title: "x", FilePath: path, Format: model.FormatPDF, TotalCopies: -1},
		{Title: "x", FilePath: path, Format: model.FormatPDF, CopyrightStatus: "STOLEN"},
		{Title: "x", Format: model.FormatPDF},
	}
	for _, in := range bad {
		_, err := d.Register(ctx, in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	_, err = d.Register(ctx, CreateInput{Title: "x", FilePath: path, Format: "TXT"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDispatcher_CreateDocument(t *testing.T) {
	runner := &fakeRunner{handle: poppler(t, "3")}
	d, repo, store := newDispatcher(t, runner)
	ctx := context.Background()

	doc, err := d.CreateDocument(ctx, CreateInput{
		Title:       "Handbook",
		FilePath:    upload(t, store, ".pdf"),
		Format:      model.FormatPDF,
		TotalCopies: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, doc.TotalPages)
	assert.Equal(t, model.StatusReady, doc.Status)

	stored, err := repo.Documents().FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TotalPages)
	assert.True(t, stored.Servable())
	n, err := store.Count(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.TotalPages, n)
}

func TestDispatcher_CreateDocxDocument(t *testing.T) {
	runner := &fakeRunner{handle: libreOffice(t, poppler(t, "2"))}
	d, _, store := newDispatcher(t, runner)

	doc, err := d.CreateDocument(context.Background(), CreateInput{
		Title:    "Minutes",
		FilePath: upload(t, store, ".docx"),
		Format:   model.FormatDOCX,
	})

	require.NoError(t, err)
	assert.Equal(t, 2, doc.TotalPages)
	assert.FileExists(t, store.ConvertedPDFPath(doc.ID))
}

func TestDispatcher_ConversionFailureMarksFailed(t *testing.T) {
	runner := &fakeRunner{handle: poppler(t, "unknown")}
	d, repo, store := newDispatcher(t, runner)
	ctx := context.Background()

	doc, err := d.Register(ctx, CreateInput{Title: "Broken", FilePath: upload(t, store, ".pdf"), Format: model.FormatPDF})
	require.NoError(t, err)

	_, err = d.Ingest(ctx, doc)

	assert.True(t, IsConversionError(err))
	stored, ferr := repo.Documents().FindByID(ctx, doc.ID)
	require.NoError(t, ferr)
	assert.Equal(t, model.StatusFailed, stored.Status)
	assert.Zero(t, stored.TotalPages)
	assert.NoDirExists(t, store.Dir(doc.ID))

	require.NoError(t, d.Cleanup(ctx, stored))
	_, ferr = repo.Documents().FindByID(ctx, doc.ID)
	assert.ErrorIs(t, ferr, repository.ErrNotFound)
	assert.NoFileExists(t, stored.FilePath)
}

func TestDispatcher_DocumentDeletedDuringIngestion(t *testing.T) {
	store := newTestStore(t)
	repo := memory.New()
	d := NewDispatcher(repo.Documents(), store, map[model.Format]Strategy{
		model.FormatPDF: stubStrategy(func(ctx context.Context, docID, _ string) (int, error) {
			dir, err := store.PrepareStaging(docID)
			require.NoError(t, err)
			writePNG(t, pagestore.PageStem(dir, 1)+pagestore.PageExt, 2, 2)
			require.NoError(t, store.Publish(docID, 1))
			require.NoError(t, repo.Documents().Delete(ctx, docID))
			return 1, nil
		}),
	})
	ctx := context.Background()

	doc, err := d.Register(ctx, CreateInput{Title: "t", FilePath: "x.pdf", Format: model.FormatPDF})
	require.NoError(t, err)

	_, err = d.Ingest(ctx, doc)

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoDirExists(t, store.Dir(doc.ID))
}

func TestDispatcher_DocxDeletedDuringConversion(t *testing.T) {
	var (
		d   *Dispatcher
		doc *model.Document
	)
	office := libreOffice(t, poppler(t, "2"))
	runner := &fakeRunner{handle: func(ctx context.Context, name string, args []string) (string, string, error) {
		if name == "soffice" {
			// the delete lands before LibreOffice writes its output
			require.NoError(t, d.Cleanup(ctx, doc))
		}
		return office(ctx, name, args)
	}}
	d, repo, store := newDispatcher(t, runner)
	ctx := context.Background()

	var err error
	doc, err = d.Register(ctx, CreateInput{Title: "Minutes", FilePath: upload(t, store, ".docx"), Format: model.FormatDOCX})
	require.NoError(t, err)

	_, err = d.Ingest(ctx, doc)

	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, ferr := repo.Documents().FindByID(ctx, doc.ID)
	assert.ErrorIs(t, ferr, repository.ErrNotFound)
	assert.NoDirExists(t, store.Dir(doc.ID))
	assert.NoFileExists(t, store.ConvertedPDFPath(doc.ID))
	assert.NoFileExists(t, doc.FilePath)
}

func TestDispatcher_FailureKeepsDeletingStatus(t *testing.T) {
	store := newTestStore(t)
	repo := memory.New()
	d := NewDispatcher(repo.Documents(), store, map[model.Format]Strategy{
		model.FormatPDF: stubStrategy(func(ctx context.Context, docID, _ string) (int, error) {
			require.NoError(t, repo.Documents().UpdateStatus(ctx, docID, model.StatusDeleting))
			return 0, &ConversionError{Tool: "pdfinfo", Reason: "broken"}
		}),
	})
	ctx := context.Background()

	doc, err := d.Register(ctx, CreateInput{Title: "t", FilePath: "x.pdf", Format: model.FormatPDF})
	require.NoError(t, err)

	_, err = d.Ingest(ctx, doc)

	assert.True(t, IsConversionError(err))
	stored, ferr := repo.Documents().FindByID(ctx, doc.ID)
	require.NoError(t, ferr)
	assert.Equal(t, model.StatusDeleting, stored.Status)
}

func TestDispatcher_StaleFailedDocumentKeepsOriginals(t *testing.T) {
	store := newTestStore(t)
	repo := memory.New()
	source := upload(t, store, ".pdf")
	d := NewDispatcher(repo.Documents(), store, map[model.Format]Strategy{
		model.FormatPDF: stubStrategy(func(ctx context.Context, docID, _ string) (int, error) {
			require.NoError(t, repo.Documents().MarkFailed(ctx, docID))
			return 1, nil
		}),
	})
	ctx := context.Background()

	doc, err := d.Register(ctx, CreateInput{Title: "t", FilePath: source, Format: model.FormatPDF})
	require.NoError(t, err)

	_, err = d.Ingest(ctx, doc)

	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.FileExists(t, source)
}
