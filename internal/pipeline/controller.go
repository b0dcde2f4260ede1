package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/warraq-app/warraq/constants"
	"github.com/warraq-app/warraq/internal/common"
	"github.com/warraq-app/warraq/internal/history"
	"github.com/warraq-app/warraq/internal/ocr"
)

// Controller runs conversion jobs. Files are processed sequentially; only
// the split and OCR phases of a single file are internally concurrent. One
// job runs at a time.
type Controller struct {
	splitter    PageSplitter
	extractor   TextExtractor
	writer      ResultWriter
	sink        Sink
	store       *history.Store
	logger      *slog.Logger
	dpi         int
	concurrency int

	mu      sync.Mutex
	job     *Job
	running bool
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

func WithProgressSink(s Sink) ControllerOption {
	return func(c *Controller) {
		if s != nil {
			c.sink = s
		}
	}
}

func WithHistory(store *history.Store) ControllerOption {
	return func(c *Controller) { c.store = store }
}

func WithDPI(dpi int) ControllerOption {
	return func(c *Controller) { c.dpi = dpi }
}

func WithConcurrency(n int) ControllerOption {
	return func(c *Controller) { c.concurrency = n }
}

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewController(splitter PageSplitter, extractor TextExtractor, writer ResultWriter, opts ...ControllerOption) *Controller {
	c := &Controller{
		splitter:    splitter,
		extractor:   extractor,
		writer:      writer,
		sink:        NopSink{},
		logger:      slog.Default(),
		dpi:         constants.DefaultDPI,
		concurrency: constants.DefaultConcurrency,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// StartJob validates the inputs and launches the job asynchronously. A
// second job while one is running is refused with common.ErrJobRunning.
func (c *Controller) StartJob(files []string, outputDir string) (string, error) {
	if err := validateInputs(files, outputDir); err != nil {
		return "", err
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return "", common.ErrJobRunning
	}
	ctx, cancel := context.WithCancel(context.Background())
	job := newJob(files, outputDir, cancel)
	c.job = job
	c.running = true
	c.mu.Unlock()

	go func() {
		defer cancel()
		c.runJob(common.WithJobID(ctx, job.ID()), job, files, outputDir)
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()
	return job.ID(), nil
}

// Run executes a job synchronously on the caller's context. Used by the CLI.
func (c *Controller) Run(ctx context.Context, files []string, outputDir string) (Snapshot, error) {
	if err := validateInputs(files, outputDir); err != nil {
		return Snapshot{}, err
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return Snapshot{}, common.ErrJobRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	job := newJob(files, outputDir, cancel)
	c.job = job
	c.running = true
	c.mu.Unlock()

	defer cancel()
	err := c.runJob(common.WithJobID(runCtx, job.ID()), job, files, outputDir)
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	return job.Snapshot(), err
}

// CancelJob flags the current job for cancellation. Idempotent and safe to
// call with no job running or after completion.
func (c *Controller) CancelJob() {
	c.mu.Lock()
	job := c.job
	c.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// CurrentJob returns a snapshot of the most recent job, or nil when none
// has been started.
func (c *Controller) CurrentJob() *Snapshot {
	c.mu.Lock()
	job := c.job
	c.mu.Unlock()
	if job == nil {
		return nil
	}
	snap := job.Snapshot()
	return &snap
}

func validateInputs(files []string, outputDir string) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: no input files", common.ErrInvalidInput)
	}
	if outputDir == "" {
		return fmt.Errorf("%w: output directory is required", common.ErrInvalidInput)
	}
	for _, f := range files {
		if _, err := constants.DetectKind(f); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
		}
	}
	return nil
}

func (c *Controller) runJob(ctx context.Context, job *Job, files []string, outputDir string) error {
	c.logger.Info("job.start", "job_id", job.ID(), "files", len(files), "output_dir", outputDir)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		job.setStatus(constants.JobStatusFailed)
		c.logger.Error("job.failed", "job_id", job.ID(), "error", err)
		return fmt.Errorf("create output dir: %w", err)
	}

	// History writes survive cancellation: a cancelled job is still a
	// finished job for the audit trail.
	hctx := context.WithoutCancel(ctx)
	if c.store != nil {
		if err := c.store.StartJob(hctx, job.ID(), job.startedAt); err != nil {
			c.logger.Warn("history.start_failed", "job_id", job.ID(), "error", err)
		}
	}

	var fatal error
	for _, path := range files {
		if ctx.Err() != nil || job.isCancelled() {
			break
		}

		pages, err := c.processFile(ctx, job, path, outputDir)
		fileStatus := string(constants.StageDone)
		fileErr := ""
		switch {
		case err == nil:
		case common.IsCancellation(err) || ctx.Err() != nil:
			fileStatus = string(constants.TaskCancelled)
		case errors.Is(err, common.ErrNotAuthenticated):
			fatal = err
			fileStatus = string(constants.TaskFailed)
			fileErr = err.Error()
			job.recordError(path, err.Error())
		default:
			fileStatus = string(constants.TaskFailed)
			fileErr = err.Error()
			job.recordError(path, err.Error())
			c.logger.Warn("job.file_failed", "job_id", job.ID(), "file", path, "error", err)
		}

		if c.store != nil {
			rec := history.FileRecord{JobID: job.ID(), Path: path, Status: fileStatus, Pages: pages, Error: fileErr}
			if herr := c.store.RecordFile(hctx, rec); herr != nil {
				c.logger.Warn("history.file_failed", "job_id", job.ID(), "error", herr)
			}
		}

		job.finishFile()
		if fatal != nil {
			break
		}
	}

	status := constants.JobStatusCompleted
	var err error
	switch {
	case fatal != nil:
		status = constants.JobStatusFailed
		err = fatal
	case ctx.Err() != nil || job.isCancelled():
		status = constants.JobStatusCancelled
		err = common.ErrCancelled
	}
	job.setStatus(status)
	if c.store != nil {
		if herr := c.store.FinishJob(hctx, job.ID(), status, timeNow()); herr != nil {
			c.logger.Warn("history.finish_failed", "job_id", job.ID(), "error", herr)
		}
	}
	c.logger.Info("job.done", "job_id", job.ID(), "status", status)
	return err
}

// processFile runs one file through its stages and returns its page count.
// The scratch directory from splitting is removed on every exit path.
func (c *Controller) processFile(ctx context.Context, job *Job, path, outputDir string) (int, error) {
	kind, err := constants.DetectKind(path)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("input file: %w", err)
	}

	job.beginFile(path, kind)
	c.publish(job)

	var images []ocr.PageImage
	pages := 1
	if kind == constants.KindMultiPage {
		job.advanceStage(constants.StageSplitting)
		c.publish(job)

		res, err := c.splitter.Split(ctx, path, c.dpi, func(done, total, pct int) {
			job.setPageProgress(done, total)
			c.publish(job)
		})
		if res != nil && res.ScratchDir != "" {
			scratch := res.ScratchDir
			defer os.RemoveAll(scratch)
		}
		if err != nil {
			return 0, fmt.Errorf("split: %w", err)
		}
		pages = res.PageCount
		images = make([]ocr.PageImage, len(res.ImagePaths))
		for i, p := range res.ImagePaths {
			images[i] = ocr.PageImage{Index: i, Path: p}
		}
	} else {
		images = []ocr.PageImage{{Index: 0, Path: path}}
	}

	job.advanceStage(constants.StageExtracting)
	job.setPageProgress(0, pages)
	c.publish(job)

	texts, pageErrs, err := c.extractor.Extract(ctx, images, c.concurrency, func(done, total, pct int) {
		job.setPageProgress(done, total)
		c.publish(job)
	})
	if err != nil {
		return pages, err
	}
	for _, pe := range pageErrs {
		job.recordError(path, fmt.Sprintf("page %d: %s", pe.Index+1, pe.Message))
	}

	job.advanceStage(constants.StageWriting)
	c.publish(job)

	basePath := filepath.Join(outputDir, stem(path))
	written, err := c.writer.Write(texts, basePath)
	if err != nil {
		return pages, fmt.Errorf("write output: %w", err)
	}

	job.advanceStage(constants.StageDone)
	job.setPageProgress(pages, pages)
	c.publish(job)
	c.logger.Info("job.file_done", "job_id", job.ID(), "file", path, "pages", pages, "outputs", written)
	return pages, nil
}

// publish emits the current file's progress to the sink.
func (c *Controller) publish(job *Job) {
	snap := job.Snapshot()
	if snap.CurrentFile == nil {
		return
	}
	cur := snap.CurrentFile
	pct := 0
	switch {
	case cur.Stage == constants.StageDone:
		pct = 100
	case cur.TotalPages > 0:
		pct = int(float64(cur.CurrentPage)/float64(cur.TotalPages)*100 + 0.5)
	}
	c.sink.Publish(Event{
		File:       cur.Path,
		Stage:      cur.Stage,
		Current:    cur.CurrentPage,
		Total:      cur.TotalPages,
		Percentage: pct,
	})
}

// timeNow is swappable in tests.
var timeNow = time.Now

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
