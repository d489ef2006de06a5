package mirror

import (
	"context"
	"errors"
	"io/fs"

	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/storage"
)

// ListOptions controls how a tree is turned into a snapshot
type ListOptions struct {
	// AllowMissing yields an empty snapshot when the root does not exist
	AllowMissing bool

	// Exclude drops matching keys from the snapshot
	Exclude *Excluder
}

// ListFiles walks the backend and returns the keys of every regular file
// and symbolic link below its root. Directories only contribute structure
// and special files are ignored.
func ListFiles(ctx context.Context, backend storage.Backend, opts ListOptions) (*Snapshot, error) {
	entries, err := backend.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if opts.AllowMissing && errors.Is(err, fs.ErrNotExist) {
			return NewSnapshot(backend.Root()), nil
		}
		return nil, &models.ListError{Root: backend.Root(), Err: err}
	}

	files := make([]storage.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		if !entry.IsRegular && !entry.IsSymlink {
			continue
		}
		if opts.Exclude.Match(entry.RelativePath) {
			continue
		}
		files = append(files, entry)
	}

	return newSnapshotFromEntries(backend.Root(), files), nil
}

// listDirs returns the directory keys below the backend root that are not
// excluded
func listDirs(ctx context.Context, backend storage.Backend, exclude *Excluder) ([]string, error) {
	entries, err := backend.List(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir && !exclude.MatchDir(entry.RelativePath) {
			dirs = append(dirs, entry.RelativePath)
		}
	}
	return dirs, nil
}
