package models

import "fmt"

// ConfigError reports a missing or invalid option. It is only produced at
// startup and is fatal.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

// ListError reports a tree root that could not be walked
type ListError struct {
	Root string
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Root, e.Err)
}

func (e *ListError) Unwrap() error {
	return e.Err
}

// CopyError reports a single file that could not be copied to the replica
type CopyError struct {
	Path   string
	Source string
	Dest   string
	Err    error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("copy %s to %s: %v", e.Source, e.Dest, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// RemoveError reports a single replica file that could not be removed
type RemoveError struct {
	Path   string
	Target string
	Err    error
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("remove %s: %v", e.Target, e.Err)
}

func (e *RemoveError) Unwrap() error {
	return e.Err
}
