package ratelimit

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimiter(t *testing.T) {
	t.Run("ValidBytesPerSecond", func(t *testing.T) {
		limiter := NewLimiter(1024 * 1024)
		require.NotNil(t, limiter)
		assert.Equal(t, int64(1024*1024), limiter.BytesPerSecond())
		assert.Equal(t, 1024*1024, limiter.Burst())
	})

	t.Run("ZeroBytesPerSecond", func(t *testing.T) {
		assert.Nil(t, NewLimiter(0))
	})

	t.Run("NegativeBytesPerSecond", func(t *testing.T) {
		assert.Nil(t, NewLimiter(-100))
	})

	t.Run("SmallBytesPerSecond", func(t *testing.T) {
		limiter := NewLimiter(1000)
		require.NotNil(t, limiter)
		assert.Equal(t, minBurst, limiter.Burst())
	})

	t.Run("NilLimiterAccessors", func(t *testing.T) {
		var limiter *Limiter
		assert.Zero(t, limiter.BytesPerSecond())
		assert.Zero(t, limiter.Burst())
	})
}

func TestReaderWithoutLimit(t *testing.T) {
	data := strings.Repeat("x", 200*1024)

	r := NewReader(context.Background(), strings.NewReader(data), nil)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, string(out))
}

func TestReaderWithLimit(t *testing.T) {
	// Within the initial burst, so no waiting
	data := bytes.Repeat([]byte("a"), 32*1024)

	r := NewReader(context.Background(), bytes.NewReader(data), NewLimiter(1024*1024))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestReaderThrottles(t *testing.T) {
	// burst 64KB at 64KB/s: the second 64KB chunk waits about one second
	data := bytes.Repeat([]byte("b"), 2*minBurst)

	start := time.Now()
	r := NewReader(context.Background(), bytes.NewReader(data), NewLimiter(minBurst))
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Len(t, out, len(data))
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
}

func TestReaderContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader(ctx, strings.NewReader("data"), nil)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaderCancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 1KB/s with a 64KB burst: draining more than the burst blocks
	data := bytes.Repeat([]byte("c"), 4*minBurst)
	r := NewReader(ctx, bytes.NewReader(data), NewLimiter(1024))

	_, err := io.ReadAll(r)
	require.Error(t, err)
}
