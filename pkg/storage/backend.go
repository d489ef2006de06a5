package storage

import (
	"context"
	"io"
	"time"
)

// FileInfo represents metadata about a tree entry
type FileInfo struct {
	Path         string
	Size         int64
	ModTime      time.Time
	IsDir        bool
	IsSymlink    bool
	IsRegular    bool
	Permissions  uint32
	RelativePath string // slash separated, relative to the backend root
}

// Backend defines the filesystem primitives the mirror needs on one tree.
// All path arguments are slash separated and relative to the backend root.
type Backend interface {
	// Root returns the absolute root of the tree
	Root() string

	// List returns every entry below the root recursively (the root itself
	// excluded). Symbolic links are reported, never followed.
	List(ctx context.Context) ([]FileInfo, error)

	// Open opens a file for reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or replaces a file with the content of reader. Parent
	// directories are created as needed and the file only appears at its
	// final path once fully written. If metadata is provided, timestamps and
	// permission bits are preserved on a best effort basis.
	Write(ctx context.Context, path string, reader io.Reader, metadata *FileInfo) (int64, error)

	// Readlink returns the target of a symbolic link
	Readlink(ctx context.Context, path string) (string, error)

	// Symlink creates a symbolic link at path pointing to target
	Symlink(ctx context.Context, target, path string) error

	// Remove deletes a single file or link
	Remove(ctx context.Context, path string) error

	// RemoveEmptyDir deletes a directory only if it holds no entries
	RemoveEmptyDir(ctx context.Context, path string) (bool, error)

	// Exists checks if an entry exists without following links
	Exists(ctx context.Context, path string) (bool, error)

	// Stat returns entry metadata without following links
	Stat(ctx context.Context, path string) (*FileInfo, error)

	// MkdirAll creates a directory and all necessary parents
	MkdirAll(ctx context.Context, path string) error

	// Close releases any resources held by the backend
	Close() error
}
