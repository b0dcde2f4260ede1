package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warraq-app/warraq/constants"
)

// FileProgress is the externally visible state of the file currently being
// processed.
type FileProgress struct {
	Path        string              `json:"path"`
	Kind        constants.FileKind  `json:"kind"`
	Stage       constants.FileStage `json:"stage"`
	CurrentPage int                 `json:"current_page"`
	TotalPages  int                 `json:"total_pages"`
}

// Job tracks one conversion run: file list, counters, the error log, and the
// job-scoped cancellation. All fields are guarded by mu; mutation happens
// only on the controller's job goroutine, snapshots can be taken from any
// goroutine.
type Job struct {
	mu sync.Mutex

	id        string
	files     []string
	outputDir string
	startedAt time.Time

	status         constants.JobStatus
	completedFiles int
	current        *FileProgress
	errs           map[string]string

	cancel    context.CancelFunc
	cancelled bool // set by CancelJob, never cleared within the job
}

// Snapshot is a point-in-time copy of a job's state, safe to serialize.
type Snapshot struct {
	ID             string              `json:"id"`
	Status         constants.JobStatus `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	TotalFiles     int                 `json:"total_files"`
	CompletedFiles int                 `json:"completed_files"`
	CurrentFile    *FileProgress       `json:"current_file,omitempty"`
	Errors         map[string]string   `json:"errors,omitempty"`
}

func newJob(files []string, outputDir string, cancel context.CancelFunc) *Job {
	return &Job{
		id:        uuid.NewString(),
		files:     files,
		outputDir: outputDir,
		startedAt: time.Now(),
		status:    constants.JobStatusRunning,
		errs:      map[string]string{},
		cancel:    cancel,
	}
}

func (j *Job) ID() string {
	return j.id
}

// Cancel flips the job's cancellation flag. Idempotent; the flag stays set
// for the rest of the job.
func (j *Job) Cancel() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelled = true
	if j.cancel != nil {
		j.cancel()
	}
}

func (j *Job) isCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// beginFile resets the current-file slot; stage starts at PREPARING, never
// skipped.
func (j *Job) beginFile(path string, kind constants.FileKind) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current = &FileProgress{Path: path, Kind: kind, Stage: constants.StagePreparing}
}

// advanceStage moves the current file forward. Backward or repeated
// transitions are ignored, keeping stages monotonic.
func (j *Job) advanceStage(stage constants.FileStage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil || !constants.CanAdvance(j.current.Stage, stage) {
		return
	}
	j.current.Stage = stage
	j.current.CurrentPage = 0
}

func (j *Job) setPageProgress(current, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.current == nil {
		return
	}
	j.current.CurrentPage = current
	j.current.TotalPages = total
}

func (j *Job) finishFile() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.completedFiles++
	j.current = nil
}

func (j *Job) recordError(file, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if prev, ok := j.errs[file]; ok {
		j.errs[file] = prev + "; " + message
		return
	}
	j.errs[file] = message
}

func (j *Job) setStatus(status constants.JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}

// Snapshot copies the job state for API consumers.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := Snapshot{
		ID:             j.id,
		Status:         j.status,
		StartedAt:      j.startedAt,
		TotalFiles:     len(j.files),
		CompletedFiles: j.completedFiles,
	}
	if j.current != nil {
		cur := *j.current
		snap.CurrentFile = &cur
	}
	if len(j.errs) > 0 {
		snap.Errors = make(map[string]string, len(j.errs))
		for k, v := range j.errs {
			snap.Errors[k] = v
		}
	}
	return snap
}
