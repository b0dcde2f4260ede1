package constants

// FileStage is the canonical processing stage for one input file.
type FileStage string

// Stable values (reported to progress sinks and stored in job history).
const (
	StagePreparing  FileStage = "PREPARING"  // file accepted, kind detection
	StageSplitting  FileStage = "SPLITTING"  // rendering pages to images
	StageExtracting FileStage = "EXTRACTING" // remote OCR in progress
	StageWriting    FileStage = "WRITING"    // output files being written
	StageDone       FileStage = "DONE"       // terminal
)

// order maps each stage to its position so transitions can be validated.
var stageOrder = map[FileStage]int{
	StagePreparing:  0,
	StageSplitting:  1,
	StageExtracting: 2,
	StageWriting:    3,
	StageDone:       4,
}

// CanAdvance reports whether moving from to next is a forward transition.
// Stages are monotonic; SPLITTING may be skipped for single-page inputs.
func CanAdvance(from, to FileStage) bool {
	a, ok1 := stageOrder[from]
	b, ok2 := stageOrder[to]
	return ok1 && ok2 && b > a
}

// TaskState is the lifecycle state of one page OCR task.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskUploading TaskState = "UPLOADING"
	TaskUploaded  TaskState = "UPLOADED"
	TaskExporting TaskState = "EXPORTING"
	TaskExported  TaskState = "EXPORTED"
	TaskDeleting  TaskState = "DELETING"
	TaskDone      TaskState = "DONE"
	TaskFailed    TaskState = "FAILED"
	TaskCancelled TaskState = "CANCELLED"
)

// JobStatus is the overall status of a conversion job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusFailed    JobStatus = "FAILED"
)
