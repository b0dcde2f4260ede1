// Package ocr schedules remote OCR tasks for the pages of one document with
// bounded concurrency, retry-wrapped remote calls, and cooperative
// cancellation that never strands a remote artifact untried.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/warraq-app/warraq/constants"
	"github.com/warraq-app/warraq/internal/auth"
	"github.com/warraq-app/warraq/internal/common"
)

// Orchestrator drives upload → export → delete for every page image of a
// document.
type Orchestrator struct {
	engine RemoteEngine
	creds  auth.Provider
	logger *slog.Logger
}

func NewOrchestrator(engine RemoteEngine, creds auth.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{engine: engine, creds: creds, logger: logger}
}

// taskResult flows from a worker to the aggregation loop. Workers never
// touch shared state directly; the aggregation loop is the single writer of
// the text slice, the error list, and the pending-artifact set.
type taskResult struct {
	index           int
	text            string
	remoteID        string
	uploaded        bool
	deleteAttempted bool
	cancelled       bool
	fatal           bool
	err             error
}

// Extract runs OCR for all images with at most concurrency tasks in flight
// and returns extracted texts in input order. A failed page yields an empty
// string plus a PageError; the batch continues. On cancellation no texts are
// returned: in-flight tasks drain, every uploaded-but-undeleted artifact
// gets a best-effort delete, and common.ErrCancelled surfaces.
func (o *Orchestrator) Extract(ctx context.Context, images []PageImage, concurrency int, onProgress ProgressFunc) ([]string, []PageError, error) {
	total := len(images)
	if total == 0 {
		return []string{}, nil, nil
	}
	concurrency = constants.ClampConcurrency(concurrency)
	if concurrency > total {
		concurrency = total
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	work := make(chan PageImage)
	results := make(chan taskResult)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for img := range work {
				results <- o.runTask(runCtx, img)
			}
		}()
	}
	go func() {
		defer close(work)
		for _, img := range images {
			select {
			case <-runCtx.Done():
				return
			case work <- img:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	texts := make([]string, total)
	var pageErrs []PageError
	// Artifacts uploaded but with no delete attempted yet; swept on
	// cancellation. Single writer: this loop.
	pending := map[int]string{}
	completed := 0
	var fatal error

	for res := range results {
		completed++
		if res.uploaded && !res.deleteAttempted {
			pending[res.index] = res.remoteID
		}
		switch {
		case res.fatal:
			if fatal == nil {
				fatal = res.err
			}
			stop()
		case res.cancelled:
			// Skipped by cancellation; counts toward progress only.
		case res.err != nil:
			pageErrs = append(pageErrs, PageError{Index: res.index, Message: res.err.Error()})
			o.logger.Warn("ocr.page_failed", "page", res.index+1, "error", res.err)
		default:
			texts[res.index] = res.text
		}
		if onProgress != nil {
			onProgress(completed, total, percent(completed, total))
		}
	}

	if fatal != nil {
		o.sweep(context.WithoutCancel(ctx), pending, concurrency)
		return nil, nil, fatal
	}
	if err := ctx.Err(); err != nil {
		o.sweep(context.WithoutCancel(ctx), pending, concurrency)
		return nil, nil, common.ErrCancelled
	}
	return texts, pageErrs, nil
}

// runTask executes the state machine for one page. Cancellation is checked
// before the upload and again between upload and export; an in-flight remote
// call is allowed to finish before the next checkpoint is observed.
func (o *Orchestrator) runTask(ctx context.Context, img PageImage) taskResult {
	res := taskResult{index: img.Index}

	if ctx.Err() != nil {
		res.cancelled = true
		return res
	}

	token, fatalErr := o.token(ctx)
	if fatalErr != nil {
		res.fatal, res.err = true, fatalErr
		return res
	}
	id, err := o.engine.Upload(ctx, img.Path, token)
	if err != nil {
		if ctx.Err() != nil {
			res.cancelled = true
		} else {
			res.err = fmt.Errorf("upload: %w", err)
		}
		return res
	}
	res.remoteID = id
	res.uploaded = true

	if ctx.Err() != nil {
		// Uploaded after cancellation was signalled; the batch sweep
		// deletes it.
		res.cancelled = true
		return res
	}

	token, fatalErr = o.token(ctx)
	if fatalErr != nil {
		res.fatal, res.err = true, fatalErr
		return res
	}
	text, err := o.engine.ExportText(ctx, id, token)
	switch {
	case err == nil:
		res.text = text
	case ctx.Err() != nil:
		res.cancelled = true
		return res
	default:
		res.err = fmt.Errorf("export: %w", err)
	}

	// Best-effort delete on a detached context so the artifact is removed
	// even when the job is being torn down. Failure is logged, never
	// surfaced as a task failure.
	res.deleteAttempted = true
	delCtx := context.WithoutCancel(ctx)
	if token, fatalErr = o.token(delCtx); fatalErr == nil {
		if delErr := o.engine.Delete(delCtx, id, token); delErr != nil {
			o.logger.Warn("ocr.delete_failed", "remote_id", id, "error", delErr)
		}
	}
	return res
}

// token treats a missing credential as a job-level failure, never a page
// retry.
func (o *Orchestrator) token(ctx context.Context) (string, error) {
	token, err := o.creds.Token(ctx)
	if err != nil {
		if errors.Is(err, common.ErrNotAuthenticated) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrNotAuthenticated, err)
	}
	if token == "" {
		return "", common.ErrNotAuthenticated
	}
	return token, nil
}

// sweep issues parallel best-effort deletes for artifacts whose tasks never
// attempted one.
func (o *Orchestrator) sweep(ctx context.Context, pending map[int]string, concurrency int) {
	if len(pending) == 0 {
		return
	}
	token, err := o.token(ctx)
	if err != nil {
		o.logger.Warn("ocr.sweep_skipped", "artifacts", len(pending), "error", err)
		return
	}
	o.logger.Info("ocr.sweep", "artifacts", len(pending))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for idx, id := range pending {
		g.Go(func() error {
			if delErr := o.engine.Delete(ctx, id, token); delErr != nil {
				o.logger.Warn("ocr.sweep_delete_failed", "page", idx+1, "remote_id", id, "error", delErr)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func percent(done, total int) int {
	if total == 0 {
		return 0
	}
	return int(float64(done)/float64(total)*100 + 0.5)
}
