package logging

import (
	"context"
	"sync"
	"time"
)

// Entry is one record captured by a Recorder
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// Recorder is an in-memory Logger. It keeps every record so callers can
// inspect the events emitted by a cycle.
type Recorder struct {
	store  *recorderStore
	fields Fields
}

type recorderStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{store: &recorderStore{}}
}

// Debug records a debug message
func (r *Recorder) Debug(ctx context.Context, msg string, fields Fields) {
	r.record(DebugLevel, msg, nil, fields)
}

// Info records an info message
func (r *Recorder) Info(ctx context.Context, msg string, fields Fields) {
	r.record(InfoLevel, msg, nil, fields)
}

// Warn records a warning message
func (r *Recorder) Warn(ctx context.Context, msg string, fields Fields) {
	r.record(WarnLevel, msg, nil, fields)
}

// Error records an error message
func (r *Recorder) Error(ctx context.Context, msg string, err error, fields Fields) {
	r.record(ErrorLevel, msg, err, fields)
}

// WithFields returns a recorder sharing the same store
func (r *Recorder) WithFields(fields Fields) Logger {
	return &Recorder{store: r.store, fields: mergeFields(r.fields, fields)}
}

// Close does nothing
func (r *Recorder) Close() error {
	return nil
}

// Entries returns a copy of all records
func (r *Recorder) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]Entry, len(r.store.entries))
	copy(out, r.store.entries)
	return out
}

// Where returns the records whose field key equals value
func (r *Recorder) Where(key string, value interface{}) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if v, ok := e.Fields[key]; ok && v == value {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all records
func (r *Recorder) Reset() {
	r.store.mu.Lock()
	r.store.entries = nil
	r.store.mu.Unlock()
}

func (r *Recorder) record(level Level, msg string, err error, fields Fields) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.entries = append(r.store.entries, Entry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Err:     err,
		Fields:  mergeFields(r.fields, fields),
	})
}
