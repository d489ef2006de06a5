package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T, cfg FileLoggerConfig) (*SlogLogger, string) {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "mirror.log")
	}
	logger, err := NewFileLogger(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, cfg.Path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewFileLogger(t *testing.T) {
	_, path := newTestLogger(t, FileLoggerConfig{Format: FormatText, Level: InfoLevel})

	_, err := os.Stat(path)
	assert.NoError(t, err, "log file should be created")
}

func TestNewFileLogger_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "mirror.log")
	newTestLogger(t, FileLoggerConfig{Path: path, Format: FormatText, Level: InfoLevel})

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileLogger_LogLevels(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatText, Level: WarnLevel})
	ctx := context.Background()

	logger.Debug(ctx, "debug message", nil)
	logger.Info(ctx, "info message", nil)
	logger.Warn(ctx, "warn message", nil)
	logger.Error(ctx, "error message", errors.New("boom"), nil)

	content := readLog(t, path)
	assert.NotContains(t, content, "debug message")
	assert.NotContains(t, content, "info message")
	assert.Contains(t, content, "warn message")
	assert.Contains(t, content, "error message")
}

func TestFileLogger_TextFormat(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatText, Level: InfoLevel})

	logger.Info(context.Background(), "Copied a to b", Fields{
		"operation": "copy",
		"source":    "/src/a",
		"dest":      "/dst/a",
	})

	content := readLog(t, path)
	assert.Contains(t, content, "level=INFO")
	assert.Contains(t, content, `msg="Copied a to b"`)
	assert.Contains(t, content, "operation=copy")
	assert.Contains(t, content, "source=/src/a")
	assert.Contains(t, content, "dest=/dst/a")
	assert.Contains(t, content, "time=")
}

func TestFileLogger_JSONFormat(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	logger.Info(context.Background(), "Removed /dst/old.txt", Fields{
		"operation": "remove",
		"source":    "/dst/old.txt",
	})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Removed /dst/old.txt", entry["msg"])
	assert.Equal(t, "remove", entry["operation"])
	assert.Equal(t, "/dst/old.txt", entry["source"])
	assert.NotContains(t, entry, "dest")
	assert.Contains(t, entry, "time")
}

func TestFileLogger_ErrorWithErr(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	logger.Error(context.Background(), "copy failed", errors.New("disk full"), Fields{"path": "a.txt"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "disk full", entry["error"])
	assert.Equal(t, "a.txt", entry["path"])
}

func TestFileLogger_WithFields(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	child := logger.WithFields(Fields{"cycle_id": "c-1"})
	child.Info(context.Background(), "cycle complete", Fields{"copied": 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &entry))
	assert.Equal(t, "c-1", entry["cycle_id"])
	assert.EqualValues(t, 2, entry["copied"])
}

func TestFileLogger_ConsoleMirror(t *testing.T) {
	var console bytes.Buffer
	logger, path := newTestLogger(t, FileLoggerConfig{
		Format:  FormatText,
		Level:   InfoLevel,
		Console: &console,
		NoColor: true,
	})

	logger.Info(context.Background(), "Copied a to b", Fields{"operation": "copy"})

	assert.Contains(t, console.String(), "Copied a to b")
	assert.Contains(t, console.String(), "operation=copy")
	assert.Contains(t, readLog(t, path), "Copied a to b")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotate.log")
	rf, err := OpenRotatingFile(path, 100, 2)
	require.NoError(t, err)
	defer rf.Close()

	line := []byte(strings.Repeat("x", 60) + "\n")
	for i := 0; i < 6; i++ {
		_, err := rf.Write(line)
		require.NoError(t, err)
	}

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "first backup should exist")
	_, err = os.Stat(path + ".2")
	assert.NoError(t, err, "second backup should exist")
	_, err = os.Stat(path + ".3")
	assert.True(t, os.IsNotExist(err), "backups beyond max should be removed")
}

func TestRotatingFile_WriteAfterClose(t *testing.T) {
	rf, err := OpenRotatingFile(filepath.Join(t.TempDir(), "closed.log"), 0, 0)
	require.NoError(t, err)
	require.NoError(t, rf.Close())

	_, err = rf.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFile_RetriesFailedReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "mirror.log")

	rf, err := OpenRotatingFile(path, 10, 1)
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("0123456789ab"))
	require.NoError(t, err)

	// The next write rotates, and the log directory is gone
	require.NoError(t, os.RemoveAll(dir))
	_, err = rf.Write([]byte("lost\n"))
	require.Error(t, err)

	require.NoError(t, os.MkdirAll(dir, 0755))
	n, err := rf.Write([]byte("back\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "back\n", readLog(t, path))
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	ctx := context.Background()

	logger.Debug(ctx, "debug", nil)
	logger.Info(ctx, "info", Fields{"k": "v"})
	logger.Warn(ctx, "warn", nil)
	logger.Error(ctx, "error", errors.New("e"), nil)

	assert.Same(t, logger, logger.WithFields(Fields{"a": 1}))
	assert.NoError(t, logger.Close())
	assert.IsType(t, &NullLogger{}, OrNull(nil))
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	child := rec.WithFields(Fields{"cycle_id": "c-9"})
	child.Info(ctx, "Copied a to b", Fields{"operation": "copy"})
	rec.Error(ctx, "copy failed", errors.New("boom"), Fields{"operation": "copy"})

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "c-9", entries[0].Fields["cycle_id"])
	assert.Equal(t, ErrorLevel, entries[1].Level)
	assert.Len(t, rec.Where("operation", "copy"), 2)

	rec.Reset()
	assert.Empty(t, rec.Entries())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelString(DebugLevel))
	assert.Equal(t, "INFO", LevelString(InfoLevel))
	assert.Equal(t, "WARN", LevelString(WarnLevel))
	assert.Equal(t, "ERROR", LevelString(ErrorLevel))
	assert.Equal(t, "UNKNOWN", LevelString(Level(42)))
}

func TestFileLogger_ConcurrentWrites(t *testing.T) {
	logger, path := newTestLogger(t, FileLoggerConfig{Format: FormatJSON, Level: InfoLevel})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Info(context.Background(), "concurrent", Fields{"worker": id, "n": j})
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(readLog(t, path)), "\n")
	assert.Len(t, lines, 200)
	for _, line := range lines {
		var entry map[string]interface{}
		assert.NoError(t, json.Unmarshal([]byte(line), &entry))
	}
}
