package render

import (
	"context"
	"errors"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"docvault/internal/logger"
	"docvault/internal/pagestore"
)

var tracer = otel.Tracer("docvault/render")

var pagesPattern = regexp.MustCompile(`Pages:\s+(\d+)`)

// Worker sizing for per-page rasterization.
const (
	MinPageWorkers = 1
	MaxPageWorkers = 8
)

// PDFOptions configures the poppler tools used by PDFStrategy.
type PDFOptions struct {
	PdfinfoBin  string
	PdftoppmBin string
	DPI         int
	Workers     int
	Timeout     time.Duration
}

// PDFStrategy renders every page of a PDF into its own PNG.
type PDFStrategy struct {
	runner  CommandRunner
	store   *pagestore.Store
	probe   tool
	raster  tool
	dpi     int
	workers int
}

// NewPDFStrategy fills unset options with defaults: poppler binaries from PATH,
// 150 DPI, GOMAXPROCS/2 workers (1..8), and a one-minute timeout per invocation.
func NewPDFStrategy(runner CommandRunner, store *pagestore.Store, opts PDFOptions) *PDFStrategy {
	if opts.PdfinfoBin == "" {
		opts.PdfinfoBin = "pdfinfo"
	}
	if opts.PdftoppmBin == "" {
		opts.PdftoppmBin = "pdftoppm"
	}
	if opts.DPI <= 0 {
		opts.DPI = 150
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	return &PDFStrategy{
		runner:  runner,
		store:   store,
		probe:   tool{name: "pdfinfo", bin: opts.PdfinfoBin, timeout: opts.Timeout},
		raster:  tool{name: "pdftoppm", bin: opts.PdftoppmBin, timeout: opts.Timeout},
		dpi:     opts.DPI,
		workers: ResolvePageWorkers(opts.Workers),
	}
}

// ResolvePageWorkers returns workers when positive, otherwise half of GOMAXPROCS
// clamped to [MinPageWorkers, MaxPageWorkers].
func ResolvePageWorkers(workers int) int {
	if workers > 0 {
		return workers
	}
	n := runtime.GOMAXPROCS(0) / 2
	return min(max(n, MinPageWorkers), MaxPageWorkers)
}

// PageCount asks pdfinfo for the number of pages of the PDF at path.
func (s *PDFStrategy) PageCount(ctx context.Context, path string) (int, error) {
	out, err := s.probe.run(ctx, s.runner, path)
	if err != nil {
		return 0, err
	}
	m := pagesPattern.FindStringSubmatch(out)
	if m == nil {
		return 0, &ConversionError{Tool: s.probe.name, Reason: "page count missing from output"}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &ConversionError{Tool: s.probe.name, Reason: "unparseable page count", Err: err}
	}
	if n < 1 {
		return 0, &ConversionError{Tool: s.probe.name, Reason: "document has no pages"}
	}
	return n, nil
}

// Prepare rasterizes every page of inputPath into the page store and returns the page
// count. Pages are rendered concurrently into a staging directory that is published
// only when all of them exist; on failure nothing is left behind.
func (s *PDFStrategy) Prepare(ctx context.Context, docID, inputPath string) (n int, err error) {
	ctx, span := tracer.Start(ctx, "render.pdf.prepare")
	span.SetAttributes(attribute.String("document.id", docID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "pdf conversion failed")
		}
		span.End()
	}()

	n, err = s.PageCount(ctx, inputPath)
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int("document.pages", n))

	dir, err := s.store.PrepareStaging(docID)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for page := 1; page <= n; page++ {
		g.Go(func() error {
			return s.rasterize(gctx, inputPath, dir, page)
		})
	}
	if err := g.Wait(); err != nil {
		s.discard(docID)
		return 0, err
	}

	if err := s.store.Publish(docID, n); err != nil {
		s.discard(docID)
		if errors.Is(err, pagestore.ErrCorrupt) {
			return 0, &ConversionError{Tool: s.raster.name, Reason: "incomplete page output", Err: err}
		}
		return 0, err
	}
	return n, nil
}

func (s *PDFStrategy) rasterize(ctx context.Context, inputPath, dir string, page int) error {
	p := strconv.Itoa(page)
	stem := pagestore.PageStem(dir, page)
	_, err := s.raster.run(ctx, s.runner,
		"-f", p, "-l", p,
		"-r", strconv.Itoa(s.dpi),
		"-png", "-singlefile",
		inputPath, stem,
	)
	if err != nil {
		return err
	}
	if !s.store.Exists(stem + pagestore.PageExt) {
		return &ConversionError{Tool: s.raster.name, Reason: "no output for page " + p}
	}
	return nil
}

func (s *PDFStrategy) discard(docID string) {
	if err := s.store.Discard(docID); err != nil {
		logger.Warn("staging_cleanup_failed", logger.Fields{"document_id": docID, "error": err})
	}
}
