// Package pipeline composes splitting, remote OCR, and output writing into
// one sequential-per-file conversion job with a job-scoped cancellation flag.
package pipeline

import (
	"context"

	"github.com/warraq-app/warraq/internal/ocr"
	"github.com/warraq-app/warraq/internal/output"
	"github.com/warraq-app/warraq/internal/split"
)

// PageSplitter renders a multi-page document into per-page images.
type PageSplitter interface {
	Split(ctx context.Context, docPath string, dpi int, onProgress split.ProgressFunc) (*split.Result, error)
}

// TextExtractor runs remote OCR over page images.
type TextExtractor interface {
	Extract(ctx context.Context, images []ocr.PageImage, concurrency int, onProgress ocr.ProgressFunc) ([]string, []ocr.PageError, error)
}

// ResultWriter persists the extracted texts of one file and returns the
// paths written.
type ResultWriter interface {
	Write(texts []string, basePath string) ([]string, error)
}

// formatWriter is the production ResultWriter: one output file per
// configured format.
type formatWriter struct {
	formats output.Formats
	opts    output.Options
}

// NewFormatWriter builds a ResultWriter over the configured format set.
func NewFormatWriter(formats output.Formats, opts output.Options) ResultWriter {
	if len(formats) == 0 {
		formats = output.DefaultFormats()
	}
	return &formatWriter{formats: formats, opts: opts}
}

func (w *formatWriter) Write(texts []string, basePath string) ([]string, error) {
	return output.WriteAll(texts, basePath, w.formats, w.opts)
}
