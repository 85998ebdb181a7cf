package render

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docvault/internal/logger"
	"docvault/internal/pagestore"
)

const (
	visibilityPoll    = 25 * time.Millisecond
	visibilityTimeout = 2 * time.Second
)

// DOCXOptions configures the LibreOffice conversion step.
type DOCXOptions struct {
	SofficeBin string
	Timeout    time.Duration
}

// DOCXStrategy converts a DOCX to PDF with LibreOffice and hands the result to a PDFStrategy.
type DOCXStrategy struct {
	runner  CommandRunner
	store   *pagestore.Store
	office  tool
	pdf     *PDFStrategy
	waitFor time.Duration
}

func NewDOCXStrategy(runner CommandRunner, store *pagestore.Store, pdf *PDFStrategy, opts DOCXOptions) *DOCXStrategy {
	if opts.SofficeBin == "" {
		opts.SofficeBin = "soffice"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &DOCXStrategy{
		runner:  runner,
		store:   store,
		office:  tool{name: "soffice", bin: opts.SofficeBin, timeout: opts.Timeout},
		pdf:     pdf,
		waitFor: visibilityTimeout,
	}
}

// Prepare converts inputPath into <originals>/<docID>.pdf and renders its pages.
func (s *DOCXStrategy) Prepare(ctx context.Context, docID, inputPath string) (n int, err error) {
	ctx, span := tracer.Start(ctx, "render.docx.prepare")
	span.SetAttributes(attribute.String("document.id", docID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "docx conversion failed")
		}
		span.End()
	}()

	pdfPath, err := s.convert(ctx, docID, inputPath)
	if err != nil {
		return 0, err
	}
	return s.pdf.Prepare(ctx, docID, pdfPath)
}

// convert runs LibreOffice with a throwaway profile so concurrent conversions do not
// fight over the user installation lock.
func (s *DOCXStrategy) convert(ctx context.Context, docID, inputPath string) (string, error) {
	profile, err := os.MkdirTemp("", "docvault-soffice-")
	if err != nil {
		return "", &ConversionError{Tool: s.office.name, Reason: "could not create profile dir", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(profile); err != nil {
			logger.Warn("soffice_profile_cleanup_failed", logger.Fields{"dir": profile, "error": err})
		}
	}()

	outDir := s.store.OriginalsDir()
	_, err = s.office.run(ctx, s.runner,
		"--headless",
		"-env:UserInstallation="+fileURL(profile),
		"--convert-to", "pdf",
		inputPath,
		"--outdir", outDir,
	)
	if err != nil {
		return "", err
	}

	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	generated := filepath.Join(outDir, stem+".pdf")
	if err := s.awaitFile(ctx, generated); err != nil {
		return "", err
	}

	target := s.store.ConvertedPDFPath(docID)
	if generated != target {
		if err := os.Rename(generated, target); err != nil {
			return "", &ConversionError{Tool: s.office.name, Reason: "could not move converted pdf", Err: err}
		}
	}
	return target, nil
}

// awaitFile polls until path is visible. LibreOffice may exit before its output is
// flushed on some filesystems.
func (s *DOCXStrategy) awaitFile(ctx context.Context, path string) error {
	deadline := time.NewTimer(s.waitFor)
	defer deadline.Stop()
	tick := time.NewTicker(visibilityPoll)
	defer tick.Stop()

	for {
		if s.store.Exists(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return &ConversionError{Tool: s.office.name, Reason: "canceled", Err: ctx.Err()}
		case <-deadline.C:
			return &ConversionError{
				Tool:   s.office.name,
				Reason: fmt.Sprintf("converted file %s not found", filepath.Base(path)),
				Err:    os.ErrNotExist,
			}
		case <-tick.C:
		}
	}
}

func fileURL(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
