package logging

import (
	"context"
	"io"
	"log/slog"
	"sort"
)

// SlogLogger implements Logger on top of a slog.Logger
type SlogLogger struct {
	logger *slog.Logger
	closer io.Closer
	fields Fields
}

// NewSlogLogger wraps logger. closer, if not nil, is closed by Close.
func NewSlogLogger(logger *slog.Logger, closer io.Closer) *SlogLogger {
	return &SlogLogger{logger: logger, closer: closer}
}

// Debug logs a debug message
func (l *SlogLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, slog.LevelDebug, msg, nil, fields)
}

// Info logs an info message
func (l *SlogLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, slog.LevelInfo, msg, nil, fields)
}

// Warn logs a warning message
func (l *SlogLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.log(ctx, slog.LevelWarn, msg, nil, fields)
}

// Error logs an error message
func (l *SlogLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	l.log(ctx, slog.LevelError, msg, err, fields)
}

// WithFields returns a logger with additional fields. The returned logger
// shares the output of its parent; closing either closes both.
func (l *SlogLogger) WithFields(fields Fields) Logger {
	return &SlogLogger{
		logger: l.logger,
		closer: l.closer,
		fields: mergeFields(l.fields, fields),
	}
}

// Close flushes and closes the logger
func (l *SlogLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, err error, fields Fields) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.logger.Enabled(ctx, level) {
		return
	}

	all := mergeFields(l.fields, fields)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]slog.Attr, 0, len(keys)+1)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, all[k]))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	l.logger.LogAttrs(ctx, level, msg, attrs...)
}
