package output

import (
	"fmt"

	"github.com/warraq-app/warraq/constants"
	"github.com/warraq-app/warraq/internal/common"
)

// Writer renders the page texts of one document into a single file.
// basePath is the destination path without extension; the writer appends
// its own.
type Writer interface {
	Write(texts []string, basePath string) (string, error)
	Extension() string
}

// Options carries the knobs shared by the writers.
type Options struct {
	// PageSeparator is placed between pages in text output. Empty means
	// constants.DefaultPageSeparator.
	PageSeparator string
}

func (o Options) separator() string {
	if o.PageSeparator == "" {
		return constants.DefaultPageSeparator
	}
	return o.PageSeparator
}

// NewWriter builds the writer for one format.
func NewWriter(f Format, opts Options) (Writer, error) {
	switch f {
	case FormatTXT:
		return &txtWriter{opts: opts}, nil
	case FormatJSON:
		return &jsonWriter{}, nil
	case FormatDOCX:
		return &docxWriter{}, nil
	}
	return nil, fmt.Errorf("%w: unknown output format %q", common.ErrInvalidInput, f)
}

// WriteAll writes texts once per format in the set and returns the paths
// written, in writer order.
func WriteAll(texts []string, basePath string, formats Formats, opts Options) ([]string, error) {
	var paths []string
	for _, f := range formats.Slice() {
		w, err := NewWriter(f, opts)
		if err != nil {
			return paths, err
		}
		path, err := w.Write(texts, basePath)
		if err != nil {
			return paths, fmt.Errorf("write %s: %w", f, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
