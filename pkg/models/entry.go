package models

import (
	"time"
)

// Action represents what is done with a path during a cycle
type Action string

const (
	// ActionCopy copies a file from source to replica
	ActionCopy Action = "copy"
	// ActionRemove removes a file from the replica
	ActionRemove Action = "remove"
	// ActionSkip means the path was left untouched
	ActionSkip Action = "skip"
)

// FileOperation represents an applied (or attempted) operation on a file
type FileOperation struct {
	RelativePath string
	Action       Action
	Source       string
	Dest         string
	Reason       string
	Error        error
	BytesCopied  int64
	Duration     time.Duration
}
