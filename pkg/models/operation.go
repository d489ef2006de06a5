package models

import (
	"time"
)

// MirrorOptions is the configuration of a mirror run. It is built once at
// startup and handed to the cycle, the applier and the scheduler.
type MirrorOptions struct {
	ID              string
	SourcePath      string
	ReplicaPath     string
	Interval        time.Duration
	ExcludePatterns []string
	DryRun          bool
	PruneEmptyDirs  bool
	MaxWorkers      int
	BandwidthLimit  int64 // bytes per second, 0 = unlimited
	BufferSize      int
	CreatedAt       time.Time
}

// Validate checks if the options are usable for a cycle. The interval is
// checked by the scheduler, since a single cycle does not need one.
func (o *MirrorOptions) Validate() error {
	if o.SourcePath == "" {
		return &ConfigError{Field: "SourcePath", Message: "source path is required"}
	}
	if o.ReplicaPath == "" {
		return &ConfigError{Field: "ReplicaPath", Message: "replica path is required"}
	}
	if o.MaxWorkers < 1 {
		return &ConfigError{Field: "MaxWorkers", Message: "max workers must be at least 1"}
	}
	if o.BufferSize < 1024 {
		return &ConfigError{Field: "BufferSize", Message: "buffer size must be at least 1024 bytes"}
	}
	if o.BandwidthLimit < 0 {
		return &ConfigError{Field: "BandwidthLimit", Message: "bandwidth limit cannot be negative"}
	}
	return nil
}
