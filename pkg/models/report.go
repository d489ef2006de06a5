package models

import (
	"sync"
	"sync/atomic"
	"time"
)

// CycleReport represents the results of one mirror cycle
type CycleReport struct {
	// Cycle details
	CycleID     string
	SourcePath  string
	ReplicaPath string
	DryRun      bool

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// File operations performed
	Operations []FileOperation

	// Errors encountered
	Errors []CycleError

	// Overall status
	Status CycleStatus

	mu sync.Mutex
}

// Statistics holds cycle metrics. Counters are updated concurrently by the
// applier workers.
type Statistics struct {
	SourceFilesScanned  atomic.Int64
	ReplicaFilesScanned atomic.Int64

	FilesCopied    atomic.Int64
	FilesRemoved   atomic.Int64
	FilesUnchanged atomic.Int64 // present on both sides, never touched
	FilesSkipped   atomic.Int64 // removals skipped by the source re-check
	FilesErrored   atomic.Int64

	DirsPruned atomic.Int64

	BytesTransferred atomic.Int64
}

// CycleStatus represents the overall result of a cycle
type CycleStatus string

const (
	// StatusSuccess indicates all operations completed successfully
	StatusSuccess CycleStatus = "success"
	// StatusPartial indicates some operations failed
	StatusPartial CycleStatus = "partial"
	// StatusFailed indicates the cycle could not run (e.g. source unreadable)
	StatusFailed CycleStatus = "failed"
	// StatusCancelled indicates the cycle was interrupted
	StatusCancelled CycleStatus = "cancelled"
)

// CycleError represents a per-file error during a cycle
type CycleError struct {
	FilePath  string
	Operation Action
	Error     string
	Timestamp time.Time
}

// AddOperation records an operation and, when it failed, the matching error
func (r *CycleReport) AddOperation(op FileOperation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Operations = append(r.Operations, op)
	if op.Error != nil {
		r.Errors = append(r.Errors, CycleError{
			FilePath:  op.RelativePath,
			Operation: op.Action,
			Error:     op.Error.Error(),
			Timestamp: time.Now(),
		})
	}
}

// ActionsTaken returns the number of filesystem mutations of the cycle
func (r *CycleReport) ActionsTaken() int {
	return int(r.Stats.FilesCopied.Load() + r.Stats.FilesRemoved.Load())
}

// Finish stamps the end time and derives the final status
func (r *CycleReport) Finish(cancelled bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)

	switch {
	case r.Status == StatusFailed:
	case cancelled:
		r.Status = StatusCancelled
	case len(r.Errors) > 0 && r.ActionsTaken() == 0:
		r.Status = StatusFailed
	case len(r.Errors) > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSuccess
	}
}

// ExitCode returns the appropriate exit code for the cycle status
func (s CycleStatus) ExitCode() int {
	switch s {
	case StatusSuccess:
		return 0
	case StatusPartial:
		return 1
	case StatusFailed:
		return 2
	case StatusCancelled:
		return 3
	default:
		return 2
	}
}
