package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docvault/internal/logger"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/repository"
)

// ErrInvalidInput rejects a document registration with missing or out-of-range fields.
var ErrInvalidInput = errors.New("invalid document input")

// CreateInput describes an uploaded file that should become a document.
type CreateInput struct {
	Title           string
	FileName        string
	FilePath        string
	Format          model.Format
	TotalCopies     int
	CopyrightStatus model.CopyrightStatus
}

// Dispatcher selects the conversion strategy for a document and records the outcome.
type Dispatcher struct {
	docs       repository.DocumentRepository
	store      *pagestore.Store
	strategies map[model.Format]Strategy
	newID      func() string
	now        func() time.Time
}

func NewDispatcher(docs repository.DocumentRepository, store *pagestore.Store, strategies map[model.Format]Strategy) *Dispatcher {
	return &Dispatcher{
		docs:       docs,
		store:      store,
		strategies: strategies,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// StrategyFor returns the strategy registered for format, or ErrUnsupportedFormat.
func (d *Dispatcher) StrategyFor(format model.Format) (Strategy, error) {
	s, ok := d.strategies[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	return s, nil
}

// Register validates in and persists a processing document with no pages yet.
func (d *Dispatcher) Register(ctx context.Context, in CreateInput) (*model.Document, error) {
	if _, err := d.StrategyFor(in.Format); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.FilePath == "" {
		return nil, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}
	copies := in.TotalCopies
	switch {
	case copies == 0:
		copies = model.DefaultTotalCopies
	case copies < 0:
		return nil, fmt.Errorf("%w: total copies must be positive", ErrInvalidInput)
	}
	copyright := in.CopyrightStatus
	if copyright == "" {
		copyright = model.CopyrightUnknown
	}
	if !copyright.Valid() {
		return nil, fmt.Errorf("%w: unknown copyright status %q", ErrInvalidInput, string(copyright))
	}

	now := d.now()
	return d.docs.Create(ctx, &model.Document{
		ID:              d.newID(),
		Title:           title,
		FileName:        in.FileName,
		FilePath:        in.FilePath,
		Format:          in.Format,
		TotalCopies:     copies,
		CopyrightStatus: copyright,
		Status:          model.StatusProcessing,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
}

// Ingest renders the pages of a registered document and commits the page count. On
// failure the document is marked failed and kept for inspection; Cleanup removes it.
func (d *Dispatcher) Ingest(ctx context.Context, doc *model.Document) (*model.Document, error) {
	strategy, err := d.StrategyFor(doc.Format)
	if err != nil {
		d.markFailed(ctx, doc, err)
		return nil, err
	}

	start := time.Now()
	pages, err := strategy.Prepare(ctx, doc.ID, doc.FilePath)
	metrics.IngestionDuration.WithLabelValues(string(doc.Format)).Observe(time.Since(start).Seconds())
	if err != nil {
		d.markFailed(ctx, doc, err)
		return nil, err
	}

	if err := d.docs.CompleteIngestion(ctx, doc.ID, pages); err != nil {
		// the row changed under us (deleted or no longer processing); the pages are orphans
		if derr := d.store.DeleteAll(doc.ID); derr != nil {
			logger.Warn("orphan_pages_cleanup_failed", logger.Fields{"document_id": doc.ID, "error": derr})
		}
		if errors.Is(err, repository.ErrNotFound) {
			d.removeOrphanedOriginals(ctx, doc)
			d.recordFailure(doc, err)
		} else {
			d.markFailed(ctx, doc, err)
		}
		return nil, fmt.Errorf("commit ingestion: %w", err)
	}

	metrics.Ingestions.WithLabelValues(string(doc.Format), "ready").Inc()
	logger.Info("ingestion_completed", logger.Fields{
		"document_id": doc.ID,
		"format":      doc.Format,
		"pages":       pages,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	out := *doc
	out.TotalPages = pages
	out.Status = model.StatusReady
	return &out, nil
}

// CreateDocument registers and ingests in one call.
func (d *Dispatcher) CreateDocument(ctx context.Context, in CreateInput) (*model.Document, error) {
	doc, err := d.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	return d.Ingest(ctx, doc)
}

// Cleanup removes every file of doc and then its row.
func (d *Dispatcher) Cleanup(ctx context.Context, doc *model.Document) error {
	var errs []error
	if err := d.store.DeleteAll(doc.ID); err != nil {
		errs = append(errs, err)
	}
	if err := d.store.RemoveOriginals(doc.ID, doc.FilePath); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("cleanup files of %s: %w", doc.ID, err)
	}
	return d.docs.Delete(ctx, doc.ID)
}

func (d *Dispatcher) recordFailure(doc *model.Document, cause error) {
	metrics.Ingestions.WithLabelValues(string(doc.Format), "failed").Inc()
	logger.Error("ingestion_failed", logger.Fields{
		"document_id": doc.ID,
		"format":      doc.Format,
		"error":       cause,
	})
}

// removeOrphanedOriginals deletes the upload and converted PDF of a document that was
// deleted while it rendered. A delete may have run before the converted PDF existed.
// Rows failed by the stale-ingestion sweep keep their originals for inspection.
func (d *Dispatcher) removeOrphanedOriginals(ctx context.Context, doc *model.Document) {
	current, err := d.docs.FindByID(context.WithoutCancel(ctx), doc.ID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
	case err != nil:
		logger.Warn("orphan_originals_lookup_failed", logger.Fields{"document_id": doc.ID, "error": err})
		return
	case current.Status != model.StatusDeleting:
		return
	}
	if err := d.store.RemoveOriginals(doc.ID, doc.FilePath); err != nil {
		logger.Warn("orphan_originals_cleanup_failed", logger.Fields{"document_id": doc.ID, "error": err})
	}
}

// markFailed only moves a processing document to failed; a concurrent delete wins.
func (d *Dispatcher) markFailed(ctx context.Context, doc *model.Document, cause error) {
	d.recordFailure(doc, cause)
	// the ingestion context may already be done
	if err := d.docs.MarkFailed(context.WithoutCancel(ctx), doc.ID); err != nil &&
		!errors.Is(err, repository.ErrNotFound) {
		logger.Error("mark_failed_error", logger.Fields{"document_id": doc.ID, "error": err})
	}
}
