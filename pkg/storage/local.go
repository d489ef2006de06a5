package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

// DefaultBufferSize is the copy buffer used when none is configured
const DefaultBufferSize = 64 * 1024

const maxRootLinks = 40

// ErrSymlinkUnsupported is returned when the underlying filesystem cannot
// create or read symbolic links
var ErrSymlinkUnsupported = errors.New("symbolic links not supported by filesystem")

// Local is a filesystem-based storage backend
type Local struct {
	fs         afero.Fs
	rootPath   string
	bufferSize int
}

// NewLocal creates a backend on the host filesystem. The root does not have
// to exist yet, but if it exists it must be a directory.
func NewLocal(rootPath string) (*Local, error) {
	return NewLocalWithFs(afero.NewOsFs(), rootPath)
}

// NewLocalWithFs creates a backend on an arbitrary afero filesystem
func NewLocalWithFs(afs afero.Fs, rootPath string) (*Local, error) {
	absPath, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := afs.Stat(absPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}
	if err == nil && !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{fs: afs, rootPath: absPath, bufferSize: DefaultBufferSize}, nil
}

// SetBufferSize sets the buffer used for file copies
func (l *Local) SetBufferSize(size int) {
	if size > 0 {
		l.bufferSize = size
	}
}

// Root returns the absolute root path
func (l *Local) Root() string {
	return l.rootPath
}

// Abs resolves a relative key to a full path under the root
func (l *Local) Abs(path string) string {
	return filepath.Join(l.rootPath, filepath.FromSlash(path))
}

// List returns all entries below the root recursively
func (l *Local) List(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo

	root, err := l.walkRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	// afero.Walk uses Lstat when available, so links below the root are
	// never descended
	err = afero.Walk(l.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			// Entries deleted while the walk runs are simply not reported
			if p != root && IsNotExist(err) {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p == root {
			return nil
		}

		relPath, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}

		files = append(files, toFileInfo(p, filepath.ToSlash(relPath), info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return files, nil
}

// walkRoot follows the root while it is a symbolic link, so a root that
// links to a directory is listed like the directory itself
func (l *Local) walkRoot() (string, error) {
	root := l.rootPath
	for i := 0; i < maxRootLinks; i++ {
		info, err := l.lstat(root)
		if err != nil || info.Mode()&os.ModeSymlink == 0 {
			// A missing root is reported by the walk
			return root, nil
		}

		reader, ok := l.fs.(afero.LinkReader)
		if !ok {
			return root, nil
		}
		target, err := reader.ReadlinkIfPossible(root)
		if err != nil {
			return "", fmt.Errorf("failed to read root link: %w", err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(root), target)
		}
		root = filepath.Clean(target)
	}
	return "", fmt.Errorf("too many levels of symbolic links: %s", l.rootPath)
}

// Open opens a file for reading
func (l *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	file, err := l.fs.Open(l.Abs(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Write creates or replaces a file through a temporary sibling and a rename
func (l *Local) Write(ctx context.Context, path string, reader io.Reader, metadata *FileInfo) (int64, error) {
	fullPath := l.Abs(path)

	dir := filepath.Dir(fullPath)
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := afero.TempFile(l.fs, dir, "."+filepath.Base(fullPath)+".*.dirmirror-tmp")
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.CopyBuffer(tmp, reader, make([]byte, l.bufferSize))
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		l.fs.Remove(tmpPath)
		return written, fmt.Errorf("failed to write file: %w", err)
	}

	// Metadata is best effort: a filesystem that rejects it still gets the content
	if metadata != nil {
		if metadata.Permissions != 0 {
			_ = l.fs.Chmod(tmpPath, os.FileMode(metadata.Permissions))
		}
		if !metadata.ModTime.IsZero() {
			_ = l.fs.Chtimes(tmpPath, metadata.ModTime, metadata.ModTime)
		}
	}

	if err := l.fs.Rename(tmpPath, fullPath); err != nil {
		l.fs.Remove(tmpPath)
		return written, fmt.Errorf("failed to move file into place: %w", err)
	}

	return written, nil
}

// Readlink returns the target of a symbolic link
func (l *Local) Readlink(ctx context.Context, path string) (string, error) {
	reader, ok := l.fs.(afero.LinkReader)
	if !ok {
		return "", ErrSymlinkUnsupported
	}
	target, err := reader.ReadlinkIfPossible(l.Abs(path))
	if err != nil {
		return "", fmt.Errorf("failed to read link: %w", err)
	}
	return target, nil
}

// Symlink creates a symbolic link, replacing whatever is at path
func (l *Local) Symlink(ctx context.Context, target, path string) error {
	linker, ok := l.fs.(afero.Linker)
	if !ok {
		return ErrSymlinkUnsupported
	}

	fullPath := l.Abs(path)
	if err := l.fs.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := l.fs.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to replace link: %w", err)
	}
	if err := linker.SymlinkIfPossible(target, fullPath); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

// Remove deletes a single file or link. A missing entry is an error.
func (l *Local) Remove(ctx context.Context, path string) error {
	if err := l.fs.Remove(l.Abs(path)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// RemoveEmptyDir deletes a directory if it has no entries
func (l *Local) RemoveEmptyDir(ctx context.Context, path string) (bool, error) {
	fullPath := l.Abs(path)
	if fullPath == l.rootPath {
		return false, nil
	}

	empty, err := afero.IsEmpty(l.fs, fullPath)
	if err != nil {
		return false, fmt.Errorf("failed to inspect directory: %w", err)
	}
	if !empty {
		return false, nil
	}
	if err := l.fs.Remove(fullPath); err != nil {
		return false, fmt.Errorf("failed to delete directory: %w", err)
	}
	return true, nil
}

// Exists checks if an entry exists
func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.lstat(l.Abs(path))
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence: %w", err)
}

// IsNotExist reports whether err means nothing is at the path, including
// the case where a parent component is a regular file
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

// Stat returns entry metadata
func (l *Local) Stat(ctx context.Context, path string) (*FileInfo, error) {
	fullPath := l.Abs(path)
	info, err := l.lstat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fi := toFileInfo(fullPath, path, info)
	return &fi, nil
}

// MkdirAll creates a directory and all necessary parents
func (l *Local) MkdirAll(ctx context.Context, path string) error {
	if err := l.fs.MkdirAll(l.Abs(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// Close releases resources (no-op for local filesystem)
func (l *Local) Close() error {
	return nil
}

func (l *Local) lstat(fullPath string) (os.FileInfo, error) {
	if lstater, ok := l.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(fullPath)
		return info, err
	}
	return l.fs.Stat(fullPath)
}

func toFileInfo(fullPath, relPath string, info os.FileInfo) FileInfo {
	mode := info.Mode()
	return FileInfo{
		Path:         fullPath,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        mode.IsDir(),
		IsSymlink:    mode&os.ModeSymlink != 0,
		IsRegular:    mode.IsRegular(),
		Permissions:  uint32(mode.Perm()),
		RelativePath: relPath,
	}
}
