package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/sdejongh/dirmirror/pkg/config"
	"github.com/sdejongh/dirmirror/pkg/models"
	"github.com/sdejongh/dirmirror/pkg/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	source  string
	replica string
	log     string
}

// newTestEnv isolates the test from any config file on the machine
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	base := t.TempDir()
	t.Chdir(base)
	t.Setenv("HOME", base)

	env := &testEnv{
		source:  filepath.Join(base, "source"),
		replica: filepath.Join(base, "replica"),
		log:     filepath.Join(base, "logs", "dirmirror.log"),
	}
	require.NoError(t, os.MkdirAll(env.source, 0755))
	return env
}

func (e *testEnv) write(t *testing.T, key, content string) {
	t.Helper()
	full := filepath.Join(e.source, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

func (e *testEnv) args(command string, extra ...string) []string {
	return append([]string{command, "-s", e.source, "-r", e.replica, "-l", e.log}, extra...)
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestOnce_MirrorsTree(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")
	env.write(t, "sub/b.txt", "beta")

	out, err := execute(t, context.Background(), env.args("once")...)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(env.replica, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	assert.Contains(t, out, "Copied ")
	assert.Contains(t, out, "Status: success")

	logData, err := os.ReadFile(env.log)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "operation=copy")
	assert.Contains(t, string(logData), filepath.Join(env.replica, "a.txt"))
}

func TestOnce_DryRun(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")

	out, err := execute(t, context.Background(), env.args("once", "--dry-run")...)
	require.NoError(t, err)

	assert.NoDirExists(t, env.replica)
	assert.Contains(t, out, "Dry run completed")
	assert.Contains(t, out, "Files copied:   1")
}

func TestOnce_JSONOutput(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")

	out, err := execute(t, context.Background(), env.args("once", "--output", "json", "--log-format", "json")...)
	require.NoError(t, err)

	// Console records precede the summary document
	start := strings.Index(out, "{\n")
	require.GreaterOrEqual(t, start, 0)

	var data output.JSONReportData
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &data))
	assert.Equal(t, "success", data.Status)
	assert.Equal(t, int64(1), data.Stats.Operations.FilesCopied)

	logData, err := os.ReadFile(env.log)
	require.NoError(t, err)
	assert.Contains(t, string(logData), `"operation":"copy"`)
}

func TestOnce_Quiet(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")

	out, err := execute(t, context.Background(), env.args("once", "-q")...)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, filepath.Join(env.replica, "a.txt"))
}

func TestOnce_MissingSource(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.RemoveAll(env.source))

	_, err := execute(t, context.Background(), env.args("once")...)

	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sync.source", cfgErr.Field)
}

func TestOnce_ConfigFileAndEnv(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "keep.txt", "k")
	env.write(t, "skip.tmp", "s")

	cfgPath := filepath.Join(filepath.Dir(env.source), "mirror.yaml")
	content := "sync:\n  source: " + env.source + "\n  replica: /nonexistent/overridden\nexclude:\n  - \"*.tmp\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0644))
	t.Setenv("DIRMIRROR_LOG_FILE", env.log)

	_, err := execute(t, context.Background(), "once", "-q", "--config", cfgPath, "-r", env.replica)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(env.replica, "keep.txt"))
	assert.NoFileExists(t, filepath.Join(env.replica, "skip.tmp"))
	assert.FileExists(t, env.log)
}

func TestRun_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, env.args("run", "-i", "1", "-q")...)
		done <- err
	}()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(env.replica, "a.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	env.write(t, "b.txt", "beta")
	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(env.replica, "b.txt"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop")
	}

	// The lock is released on exit
	lock, err := acquireLock(env.log)
	require.NoError(t, err)
	require.NoError(t, lock.Unlock())
}

func TestRun_RequiresInterval(t *testing.T) {
	env := newTestEnv(t)

	_, err := execute(t, context.Background(), env.args("run")...)

	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sync.interval", cfgErr.Field)
}

func TestAcquireLock_SecondInstance(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dirmirror.log")

	first, err := acquireLock(logPath)
	require.NoError(t, err)
	defer first.Unlock()

	_, err = acquireLock(logPath)
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "log.file", cfgErr.Field)
}

func TestValidatePaths(t *testing.T) {
	base := t.TempDir()
	source := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(source, 0755))
	file := filepath.Join(base, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	tests := []struct {
		name    string
		source  string
		replica string
		log     string
		field   string
	}{
		{"Valid", source, filepath.Join(base, "dst"), filepath.Join(base, "m.log"), ""},
		{"SourceMissing", filepath.Join(base, "nope"), filepath.Join(base, "dst"), filepath.Join(base, "m.log"), "sync.source"},
		{"SourceIsFile", file, filepath.Join(base, "dst"), filepath.Join(base, "m.log"), "sync.source"},
		{"ReplicaIsFile", source, file, filepath.Join(base, "m.log"), "sync.replica"},
		{"Identical", source, source, filepath.Join(base, "m.log"), "sync.replica"},
		{"ReplicaInsideSource", source, filepath.Join(source, "dst"), filepath.Join(base, "m.log"), "sync.replica"},
		{"SourceInsideReplica", source, base, filepath.Join(t.TempDir(), "m.log"), "sync.source"},
		{"LogInsideReplica", source, filepath.Join(base, "dst"), filepath.Join(base, "dst", "m.log"), "log.file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Sync.Source = tt.source
			cfg.Sync.Replica = tt.replica
			cfg.Log.File = tt.log

			paths, err := validatePaths(cfg)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.source, paths.Source)
				return
			}

			var cfgErr *models.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidatePaths_SymlinkedReplicaInsideSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}

	base := t.TempDir()
	source := filepath.Join(base, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(source, "inner"), 0755))
	link := filepath.Join(base, "dst")
	require.NoError(t, os.Symlink(filepath.Join(source, "inner"), link))

	cfg := config.Default()
	cfg.Sync.Source = source
	cfg.Sync.Replica = link
	cfg.Log.File = filepath.Join(base, "m.log")

	_, err := validatePaths(cfg)
	var cfgErr *models.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "sync.replica", cfgErr.Field)
}

func TestOnce_SymlinkedSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require privileges on Windows")
	}

	env := newTestEnv(t)
	env.write(t, "a.txt", "alpha")
	link := filepath.Join(filepath.Dir(env.source), "source-link")
	require.NoError(t, os.Symlink(env.source, link))

	_, err := execute(t, context.Background(), "once", "-q", "-s", link, "-r", env.replica, "-l", env.log)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.replica, "a.txt"))
}

func TestConfigShow(t *testing.T) {
	newTestEnv(t)
	t.Setenv("DIRMIRROR_SYNC_INTERVAL", "42")

	out, err := execute(t, context.Background(), "config", "show", "--parallel", "9")
	require.NoError(t, err)

	assert.Contains(t, out, "interval: 42")
	assert.Contains(t, out, "max_workers: 9")
	assert.Contains(t, out, "format: text")
}

func TestConfigInit(t *testing.T) {
	newTestEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	out, err := execute(t, context.Background(), "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg := config.NewViper()
	require.NoError(t, config.ReadConfigFile(cfg, path))
	assert.Equal(t, 4, cfg.GetInt("performance.max_workers"))

	_, err = execute(t, context.Background(), "config", "init", "--path", path)
	assert.Error(t, err)

	_, err = execute(t, context.Background(), "config", "init", "--path", path, "--force")
	assert.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, context.Background(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestExitError(t *testing.T) {
	err := &ExitError{Code: 3}
	assert.Equal(t, "exit status 3", err.Error())
}
