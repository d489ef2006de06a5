package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// minBurst keeps small limits from degenerating into byte-sized reads
const minBurst = 64 * 1024

// Limiter controls the rate of data transfer across multiple readers.
// A nil *Limiter means unlimited.
type Limiter struct {
	bytesPerSecond int64
	bucket         *rate.Limiter
}

// NewLimiter creates a limiter shared by every copy of a cycle.
// Returns nil when bytesPerSecond is not positive.
func NewLimiter(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	// One second worth of data, or 64KB minimum for smooth transfers
	burst := bytesPerSecond
	if burst < minBurst {
		burst = minBurst
	}

	return &Limiter{
		bytesPerSecond: bytesPerSecond,
		bucket:         rate.NewLimiter(rate.Limit(bytesPerSecond), int(burst)),
	}
}

// BytesPerSecond returns the configured rate
func (l *Limiter) BytesPerSecond() int64 {
	if l == nil {
		return 0
	}
	return l.bytesPerSecond
}

// Burst returns the bucket size in bytes
func (l *Limiter) Burst() int {
	if l == nil {
		return 0
	}
	return l.bucket.Burst()
}

// Reader wraps an io.Reader with cancellation and optional rate limiting.
// Every Read checks the context first, so a cancelled copy stops at the next
// chunk boundary.
type Reader struct {
	reader  io.Reader
	limiter *Limiter
	ctx     context.Context
}

// NewReader wraps reader. limiter may be nil.
func NewReader(ctx context.Context, reader io.Reader, limiter *Limiter) *Reader {
	return &Reader{
		reader:  reader,
		limiter: limiter,
		ctx:     ctx,
	}
}

// Read implements io.Reader
func (r *Reader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}

	if r.limiter != nil {
		if burst := r.limiter.Burst(); len(p) > burst {
			p = p[:burst]
		}
	}

	n, err := r.reader.Read(p)
	if n > 0 && r.limiter != nil {
		if waitErr := r.limiter.bucket.WaitN(r.ctx, n); waitErr != nil {
			return n, waitErr
		}
	}
	return n, err
}
