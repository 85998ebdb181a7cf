package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docvault/internal/logger"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/render"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// UploadInput describes an uploaded source file. Format may be empty, in which case it
// is inferred from FileName.
type UploadInput struct {
	Title           string
	FileName        string
	ContentType     string
	Size            int64
	Format          string
	TotalCopies     int
	CopyrightStatus string
}

// Registrar persists new documents and removes them with their files.
type Registrar interface {
	Register(ctx context.Context, in render.CreateInput) (*model.Document, error)
	Cleanup(ctx context.Context, doc *model.Document) error
}

// Submitter hands registered documents to background conversion.
type Submitter interface {
	Submit(doc *model.Document) error
}

// DocumentService defines the use cases for managing documents.
type DocumentService interface {
	// Upload stores the source file, registers a processing document and queues its
	// conversion. The returned document has no pages yet.
	Upload(ctx context.Context, r io.Reader, in UploadInput) (*model.Document, error)

	// List returns documents using limit/offset and a total count.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Get returns a single document by its ID.
	Get(ctx context.Context, id string) (*model.Document, error)

	// Delete hides the document, removes every file it owns and then its record.
	Delete(ctx context.Context, id string) error
}

type documentService struct {
	repo      repository.DocumentRepository
	registrar Registrar
	pages     *pagestore.Store
	queue     Submitter
	archive   storage.Archive
	newID     func() string
}

// NewDocumentService constructs a new DocumentService. A nil archive disables archiving.
func NewDocumentService(repo repository.DocumentRepository, registrar Registrar, pages *pagestore.Store, queue Submitter, archive storage.Archive) DocumentService {
	if archive == nil {
		archive = storage.Noop{}
	}
	return &documentService{
		repo:      repo,
		registrar: registrar,
		pages:     pages,
		queue:     queue,
		archive:   archive,
		newID:     uuid.NewString,
	}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, in UploadInput) (*model.Document, error) {
	if r == nil {
		return nil, ErrReaderNil
	}
	format, err := resolveFormat(in.Format, in.FileName)
	if err != nil {
		return nil, err
	}

	path := s.pages.OriginalPath(s.newID(), uploadExt(format, in.FileName))
	if err := saveFile(path, r); err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}

	doc, err := s.registrar.Register(ctx, render.CreateInput{
		Title:           in.Title,
		FileName:        filepath.Base(in.FileName),
		FilePath:        path,
		Format:          format,
		TotalCopies:     in.TotalCopies,
		CopyrightStatus: model.CopyrightStatus(strings.ToUpper(strings.TrimSpace(in.CopyrightStatus))),
	})
	if err != nil {
		removeUpload(path)
		return nil, err
	}

	s.archiveOriginal(ctx, doc.ID, path, in)

	if err := s.queue.Submit(doc); err != nil {
		logger.Warn("ingest_rejected", logger.Fields{"document_id": doc.ID, "error": err})
		if cerr := s.registrar.Cleanup(context.WithoutCancel(ctx), doc); cerr != nil {
			logger.Error("upload_rollback_failed", logger.Fields{"document_id": doc.ID, "error": cerr})
		}
		s.unarchive(ctx, doc.ID, path)
		return nil, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return doc, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, limit, offset int) (*DocumentListResult, error) {
	res, err := s.repo.List(ctx, pageWindow(limit, offset))
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID.
func (s *documentService) Get(ctx context.Context, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "document")
	}
	return doc, nil
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	// pages stop being servable before any file disappears
	if err := s.repo.UpdateStatus(ctx, id, model.StatusDeleting); err != nil {
		return notFound(err, "document")
	}
	if err := s.registrar.Cleanup(ctx, doc); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	s.unarchive(ctx, doc.ID, doc.FilePath)
	logger.Info("document_deleted", logger.Fields{"document_id": id})
	return nil
}

// archiveOriginal copies the upload to the archive. Failures are logged only: the local
// copy is authoritative.
func (s *documentService) archiveOriginal(ctx context.Context, docID, path string, in UploadInput) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("archive_open_failed", logger.Fields{"document_id": docID, "error": err})
		return
	}
	defer f.Close()

	size := int64(-1)
	if fi, err := f.Stat(); err == nil {
		size = fi.Size()
	}
	_, err = s.archive.Put(ctx, storage.OriginalKey(docID, path), f, storage.PutObjectOptions{
		Size:        size,
		ContentType: in.ContentType,
		Metadata:    map[string]string{"original-filename": filepath.Base(in.FileName)},
	})
	if err != nil {
		logger.Warn("archive_put_failed", logger.Fields{"document_id": docID, "error": err})
	}
}

func (s *documentService) unarchive(ctx context.Context, docID, path string) {
	if err := s.archive.Delete(context.WithoutCancel(ctx), storage.OriginalKey(docID, path)); err != nil {
		logger.Warn("archive_delete_failed", logger.Fields{"document_id": docID, "error": err})
	}
}

// resolveFormat trusts an explicit format and otherwise infers one from the file name.
func resolveFormat(declared, fileName string) (model.Format, error) {
	if strings.TrimSpace(declared) != "" {
		f, ok := model.ParseFormat(declared)
		if !ok {
			return "", fmt.Errorf("%w: %q", render.ErrUnsupportedFormat, declared)
		}
		return f, nil
	}
	f, ok := model.FormatFromFilename(fileName)
	if !ok {
		return "", fmt.Errorf("%w: %q", render.ErrUnsupportedFormat, filepath.Ext(fileName))
	}
	return f, nil
}

func uploadExt(format model.Format, fileName string) string {
	if format == model.FormatPDF {
		return ".pdf"
	}
	if ext := strings.ToLower(filepath.Ext(fileName)); ext == ".doc" || ext == ".docx" {
		return ext
	}
	return ".docx"
}

func saveFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		removeUpload(path)
		return err
	}
	if err := f.Close(); err != nil {
		removeUpload(path)
		return err
	}
	return nil
}

func removeUpload(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("upload_cleanup_failed", logger.Fields{"path": path, "error": err})
	}
}
