package render

import (
	"context"

	"docvault/internal/config"
	"docvault/internal/model"
	"docvault/internal/pagestore"
)

// Strategy turns a stored source file into published page artifacts and reports how
// many pages it produced. Nothing is published unless every page was rendered.
type Strategy interface {
	Prepare(ctx context.Context, docID, inputPath string) (int, error)
}

// NewStrategies builds the PDF and DOCX strategies from the render configuration.
func NewStrategies(runner CommandRunner, store *pagestore.Store, cfg config.RenderConfig) map[model.Format]Strategy {
	pdf := NewPDFStrategy(runner, store, PDFOptions{
		PdfinfoBin:  cfg.PdfinfoBin,
		PdftoppmBin: cfg.PdftoppmBin,
		DPI:         cfg.DPI,
		Workers:     cfg.PageWorkers,
		Timeout:     cfg.CommandTimeout,
	})
	docx := NewDOCXStrategy(runner, store, pdf, DOCXOptions{
		SofficeBin: cfg.SofficeBin,
		Timeout:    cfg.CommandTimeout,
	})
	return map[model.Format]Strategy{
		model.FormatPDF:  pdf,
		model.FormatDOCX: docx,
	}
}
