package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lmittmann/tint"
)

// Format represents the log file output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ConsoleTimeFormat is the timestamp layout of console records
const ConsoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FileLoggerConfig holds configuration for file logging
type FileLoggerConfig struct {
	// Path is the log file path
	Path string
	// Format is the output format (json or text)
	Format Format
	// Level is the minimum log level
	Level Level
	// MaxSize is the maximum size in bytes before rotation (0 = no rotation)
	MaxSize int64
	// MaxBackups is the maximum number of backup files to keep
	MaxBackups int
	// Console, when set, receives a human readable copy of every record
	Console io.Writer
	// NoColor disables ANSI colours on the console
	NoColor bool
}

// NewFileLogger creates a logger writing to a rotating file and, optionally,
// mirroring every record to a console writer
func NewFileLogger(config FileLoggerConfig) (*SlogLogger, error) {
	file, err := OpenRotatingFile(config.Path, config.MaxSize, config.MaxBackups)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	var fileHandler slog.Handler
	if config.Format == FormatJSON {
		fileHandler = slog.NewJSONHandler(file, opts)
	} else {
		fileHandler = slog.NewTextHandler(file, opts)
	}

	handler := slog.Handler(fileHandler)
	if config.Console != nil {
		consoleHandler := tint.NewHandler(config.Console, &tint.Options{
			Level:      config.Level.slogLevel(),
			TimeFormat: ConsoleTimeFormat,
			NoColor:    config.NoColor,
		})
		handler = NewMultiHandler(consoleHandler, fileHandler)
	}

	return NewSlogLogger(slog.New(handler), file), nil
}

// RotatingFile is an io.WriteCloser that rotates the underlying file once it
// grows past a size limit
type RotatingFile struct {
	path        string
	maxSize     int64
	maxBackups  int
	file        *os.File
	currentSize int64
	closed      bool
	mu          sync.Mutex
}

// OpenRotatingFile opens path in append mode, creating its directory
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &RotatingFile{
		path:        path,
		maxSize:     maxSize,
		maxBackups:  maxBackups,
		file:        file,
		currentSize: info.Size(),
	}, nil
}

// Write implements io.Writer
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, os.ErrClosed
	}

	// Check rotation before writing
	if r.file != nil && r.maxSize > 0 && r.currentSize >= r.maxSize {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	// A file that could not be reopened is retried on every write
	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}

	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

// Close closes the current file
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// rotate shifts path -> path.1 -> path.2 ... (must be called with lock held)
func (r *RotatingFile) rotate() error {
	r.file.Close()
	r.file = nil

	// Rotate existing backups
	for i := r.maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", r.path, i)
		newPath := fmt.Sprintf("%s.%d", r.path, i+1)
		os.Rename(oldPath, newPath)
	}

	if r.maxBackups > 0 {
		os.Rename(r.path, r.path+".1")
		os.Remove(fmt.Sprintf("%s.%d", r.path, r.maxBackups+1))
	} else {
		os.Remove(r.path)
	}

	return r.open()
}

// open (re)opens path in append mode (must be called with lock held)
func (r *RotatingFile) open() error {
	file, err := os.OpenFile(r.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to reopen log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	r.file = file
	r.currentSize = info.Size()
	return nil
}
