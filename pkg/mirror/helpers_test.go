package mirror

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sdejongh/dirmirror/pkg/logging"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/storage"
	"github.com/stretchr/testify/require"
)

type testTrees struct {
	sourceDir  string
	replicaDir string
	source     *storage.Local
	replica    *storage.Local
	logger     *logging.Recorder
}

// newTestTrees creates a source and a replica root on the real filesystem.
// The replica root is not created.
func newTestTrees(t *testing.T) *testTrees {
	t.Helper()

	base := t.TempDir()
	tt := &testTrees{
		sourceDir:  filepath.Join(base, "source"),
		replicaDir: filepath.Join(base, "replica"),
		logger:     logging.NewRecorder(),
	}
	require.NoError(t, os.MkdirAll(tt.sourceDir, 0755))

	var err error
	tt.source, err = storage.NewLocal(tt.sourceDir)
	require.NoError(t, err)
	tt.replica, err = storage.NewLocal(tt.replicaDir)
	require.NoError(t, err)
	return tt
}

func (tt *testTrees) options() *models.MirrorOptions {
	return &models.MirrorOptions{
		SourcePath:  tt.sourceDir,
		ReplicaPath: tt.replicaDir,
		Interval:    time.Second,
		MaxWorkers:  4,
		BufferSize:  storage.DefaultBufferSize,
	}
}

func (tt *testTrees) cycle(t *testing.T, opts *models.MirrorOptions) *Cycle {
	t.Helper()
	c, err := NewCycle(tt.source, tt.replica, tt.logger, opts)
	require.NoError(t, err)
	return c
}

func writeFile(t *testing.T, root, key, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func readFile(t *testing.T, root, key string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
	require.NoError(t, err)
	return string(data)
}

// fileKeys returns every non-directory key below root, sorted
func fileKeys(t *testing.T, root string) []string {
	t.Helper()
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(keys)
	return keys
}
