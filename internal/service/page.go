package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/audit"
	"docvault/internal/delivery"
	"docvault/internal/logger"
	"docvault/internal/metrics"
	"docvault/internal/model"
	"docvault/internal/pagestore"
	"docvault/internal/repository"
	"docvault/internal/watermark"
)

var tracer = otel.Tracer("docvault/service")

// Reader identifies who asks for a page. Its fields end up in the watermark.
type Reader struct {
	ID      string
	Name    string
	Address string
}

// AccessChecker is the entitlement gate consulted before a page is served.
type AccessChecker interface {
	HasAccess(ctx context.Context, userID, documentID string) (bool, error)
}

// PageService delivers watermarked page images.
type PageService interface {
	// ReadPage returns page n of a document stamped with the reader's identity and
	// obfuscated for transport.
	ReadPage(ctx context.Context, documentID string, n int, who Reader) ([]byte, error)

	// Preview returns the first page with a date-only watermark. No entitlement needed.
	Preview(ctx context.Context, documentID, address string) ([]byte, error)

	// RecentViews lists the latest deliveries of a document.
	RecentViews(ctx context.Context, documentID string, limit int) ([]model.View, error)
}

type pageService struct {
	docs   repository.DocumentRepository
	pages  *pagestore.Store
	access AccessChecker
	views  audit.Recorder
	now    func() time.Time
}

// NewPageService wires the delivery path. A nil recorder disables the view trail.
func NewPageService(docs repository.DocumentRepository, pages *pagestore.Store, access AccessChecker, views audit.Recorder) PageService {
	if views == nil {
		views = audit.NopRecorder{}
	}
	return &pageService{
		docs:   docs,
		pages:  pages,
		access: access,
		views:  views,
		now:    func() time.Time { return time.Now().In(logger.Location()) },
	}
}

func (s *pageService) ReadPage(ctx context.Context, documentID string, n int, who Reader) (out []byte, err error) {
	ctx, span := tracer.Start(ctx, "page.read")
	span.SetAttributes(attribute.String("document.id", documentID), attribute.Int("page", n))
	defer endSpan(span, &err)

	doc, err := s.servable(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if n < 1 || n > doc.TotalPages {
		return nil, fmt.Errorf("%w: page %d", ErrNotFound, n)
	}

	ok, err := s.access.HasAccess(ctx, who.ID, documentID)
	if err != nil {
		return nil, fmt.Errorf("check access: %w", err)
	}
	if !ok {
		return nil, ErrAccessDenied
	}

	raw, err := s.load(ctx, doc, n)
	if err != nil {
		return nil, err
	}
	now := s.now()
	text := watermark.ReaderText(who.Name, who.ID, who.Address, now)
	stamped, err := watermark.Stamp(raw, text)
	if err != nil {
		return nil, s.unservable(doc.ID, n, err)
	}

	metrics.PagesServed.WithLabelValues("page").Inc()
	s.record(ctx, model.View{
		DocumentID: doc.ID,
		UserID:     who.ID,
		Page:       n,
		Address:    who.Address,
		Watermark:  text,
		ViewedAt:   now,
	})
	return delivery.Encode(stamped), nil
}

func (s *pageService) Preview(ctx context.Context, documentID, address string) (out []byte, err error) {
	ctx, span := tracer.Start(ctx, "page.preview")
	span.SetAttributes(attribute.String("document.id", documentID))
	defer endSpan(span, &err)

	doc, err := s.servable(ctx, documentID)
	if err != nil {
		return nil, err
	}
	raw, err := s.load(ctx, doc, 1)
	if err != nil {
		return nil, err
	}
	now := s.now()
	text := watermark.PreviewText(now)
	stamped, err := watermark.Stamp(raw, text)
	if err != nil {
		return nil, s.unservable(doc.ID, 1, err)
	}

	metrics.PagesServed.WithLabelValues("preview").Inc()
	s.record(ctx, model.View{
		DocumentID: doc.ID,
		Page:       1,
		Address:    address,
		Watermark:  text,
		Preview:    true,
		ViewedAt:   now,
	})
	return stamped, nil
}

func (s *pageService) RecentViews(ctx context.Context, documentID string, limit int) ([]model.View, error) {
	if _, err := s.docs.FindByID(ctx, documentID); err != nil {
		return nil, notFound(err, "document")
	}
	return s.views.Recent(ctx, documentID, limit)
}

// servable loads a document that is ready to be read.
func (s *pageService) servable(ctx context.Context, documentID string) (*model.Document, error) {
	if documentID == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.docs.FindByID(ctx, documentID)
	if err != nil {
		return nil, notFound(err, "document")
	}
	if !doc.Servable() {
		return nil, fmt.Errorf("%w: document is %s", ErrNotFound, doc.Status)
	}
	return doc, nil
}

// load reads a page into memory. A page that vanished because the document is being
// deleted is reported as not found; any other gap means the page set is corrupt.
func (s *pageService) load(ctx context.Context, doc *model.Document, n int) ([]byte, error) {
	raw, err := s.pages.ReadPage(doc.ID, n)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, pagestore.ErrPageNotFound) {
		logger.Error("page_read_failed", logger.Fields{"document_id": doc.ID, "page": n, "error": err})
		return nil, fmt.Errorf("read page: %w", err)
	}
	if _, err := s.servable(ctx, doc.ID); err != nil {
		return nil, err
	}
	return nil, s.unservable(doc.ID, n, fmt.Errorf("%w: page %d missing", pagestore.ErrCorrupt, n))
}

func (s *pageService) unservable(docID string, n int, cause error) error {
	logger.Error("page_unservable", logger.Fields{"document_id": docID, "page": n, "error": cause})
	if errors.Is(cause, pagestore.ErrCorrupt) {
		return cause
	}
	return fmt.Errorf("%w: %w", pagestore.ErrCorrupt, cause)
}

// record keeps the view trail. A failing trail never blocks delivery.
func (s *pageService) record(ctx context.Context, v model.View) {
	if err := s.views.Record(context.WithoutCancel(ctx), v); err != nil {
		logger.Warn("view_record_failed", logger.Fields{"document_id": v.DocumentID, "error": err})
	}
}

func endSpan(span trace.Span, errp *error) {
	if *errp != nil {
		span.RecordError(*errp)
		span.SetStatus(codes.Error, (*errp).Error())
	}
	span.End()
}
