// Package split renders a multi-page document into one page image per page,
// in parallel, for downstream OCR.
package split

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/warraq-app/warraq/constants"
)

// ProgressFunc receives one event per rendered page. Events may arrive out
// of page order because rendering is parallel.
type ProgressFunc func(completed, total, percentage int)

// Result describes a completed (or aborted) split. ScratchDir is set as soon
// as the directory exists, even when the split fails afterwards, so the
// caller can always clean up; the splitter itself never deletes it.
type Result struct {
	ImagePaths []string
	ScratchDir string
	PageCount  int
}

// Splitter renders document pages to JPEG files.
type Splitter struct {
	engine  Engine
	logger  *slog.Logger
	workers int
}

// Option mutates a Splitter during construction.
type Option func(*Splitter)

// WithWorkers caps the number of concurrent render workers.
func WithWorkers(n int) Option {
	return func(s *Splitter) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSplitter builds a splitter around the given render engine. The default
// worker count is the host's available parallelism.
func NewSplitter(engine Engine, logger *slog.Logger, opts ...Option) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Splitter{
		engine:  engine,
		logger:  logger,
		workers: runtime.NumCPU(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Split renders every page of docPath at the clamped resolution into a fresh
// scratch directory and returns the ordered image paths. Any page failure
// fails the whole document; partial page sets are never returned. Each
// worker opens its own engine handle because handles cannot be shared across
// concurrent renders.
func (s *Splitter) Split(ctx context.Context, docPath string, dpi int, onProgress ProgressFunc) (*Result, error) {
	dpi = constants.ClampDPI(dpi)

	total, err := probePageCount(s.engine, docPath)
	if err != nil {
		return nil, fmt.Errorf("probe page count: %w", err)
	}
	if total == 0 {
		return nil, fmt.Errorf("document has no pages: %s", docPath)
	}

	scratch, err := os.MkdirTemp("", "warraq-pages-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	res := &Result{ScratchDir: scratch, PageCount: total}

	s.logger.Info("split.start", "doc", docPath, "pages", total, "dpi", dpi, "workers", s.workers)

	paths := make([]string, total)
	var completed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for page := 0; page < total; page++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// One handle per worker task; see Engine contract.
			doc, err := s.engine.Open(docPath)
			if err != nil {
				return fmt.Errorf("open for page %d: %w", page+1, err)
			}
			defer doc.Close()

			out := filepath.Join(scratch, fmt.Sprintf("page-%04d.jpg", page+1))
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create page file: %w", err)
			}
			if err := doc.RenderJPEG(page, dpi, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close page file: %w", err)
			}
			paths[page] = out

			done := int(completed.Add(1))
			if onProgress != nil {
				onProgress(done, total, percent(done, total))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// The scratch dir may hold partial output; the caller owns cleanup.
		return res, err
	}

	res.ImagePaths = paths
	s.logger.Info("split.ok", "doc", docPath, "pages", total)
	return res, nil
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(done)/float64(total)*100 + 0.5)
}
