package mirror

import (
	"time"

	"github.com/sdejongh/dirmirror/pkg/models"
)

// TaskStatus represents the status of a file task in the applier
type TaskStatus string

const (
	// TaskPending indicates the task is waiting for a worker
	TaskPending TaskStatus = "pending"
	// TaskProcessing indicates a worker is applying the task
	TaskProcessing TaskStatus = "processing"
	// TaskCompleted indicates the task finished without error
	TaskCompleted TaskStatus = "completed"
	// TaskError indicates the task failed
	TaskError TaskStatus = "error"
)

// TaskResult represents what happened to the path
type TaskResult string

const (
	// ResultCopied indicates the file now exists in the replica
	ResultCopied TaskResult = "copied"
	// ResultRemoved indicates the file was deleted from the replica
	ResultRemoved TaskResult = "removed"
	// ResultSkipped indicates a removal was abandoned because the source
	// file reappeared
	ResultSkipped TaskResult = "skipped"
	// ResultFailed indicates the action failed
	ResultFailed TaskResult = "failed"
)

// FileTask is one key handed to one worker
type FileTask struct {
	// RelativePath is the key, relative to both roots
	RelativePath string

	// Action is the operation to apply
	Action models.Action

	// Size is the file size from the source snapshot, 0 for removals
	Size int64

	// Status tracks the current state of this task
	Status TaskStatus

	// Result indicates what was done
	Result TaskResult

	// Error holds the CopyError or RemoveError, if any
	Error error

	// BytesTransferred is the number of bytes written to the replica
	BytesTransferred int64

	// ProcessingDuration is how long the worker spent on this task
	ProcessingDuration time.Duration

	started time.Time
}

// NewFileTask creates a pending task
func NewFileTask(relativePath string, action models.Action, size int64) *FileTask {
	return &FileTask{
		RelativePath: relativePath,
		Action:       action,
		Size:         size,
		Status:       TaskPending,
	}
}

// MarkProcessing marks the task as picked up by a worker
func (t *FileTask) MarkProcessing() {
	t.Status = TaskProcessing
	t.started = time.Now()
}

// MarkCompleted marks the task as successfully completed
func (t *FileTask) MarkCompleted(result TaskResult, bytesTransferred int64) {
	t.Status = TaskCompleted
	t.Result = result
	t.BytesTransferred = bytesTransferred
	t.ProcessingDuration = time.Since(t.started)
}

// MarkError marks the task as failed
func (t *FileTask) MarkError(err error) {
	t.Status = TaskError
	t.Result = ResultFailed
	t.Error = err
	t.ProcessingDuration = time.Since(t.started)
}

// Operation converts the task to a report entry
func (t *FileTask) Operation(sourceRoot, replicaRoot string) models.FileOperation {
	op := models.FileOperation{
		RelativePath: t.RelativePath,
		Action:       t.Action,
		Dest:         joinKey(replicaRoot, t.RelativePath),
		Error:        t.Error,
		BytesCopied:  t.BytesTransferred,
		Duration:     t.ProcessingDuration,
	}
	if t.Action == models.ActionCopy {
		op.Source = joinKey(sourceRoot, t.RelativePath)
	}
	if t.Result == ResultSkipped {
		op.Action = models.ActionSkip
		op.Reason = "source file reappeared"
	}
	return op
}
