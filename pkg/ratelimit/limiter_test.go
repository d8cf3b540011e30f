package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlidingWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	sw := NewSlidingWindow(3, time.Minute)
	sw.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow(), "request %d", i+1)
	}
	assert.False(t, sw.Allow())

	now = now.Add(30 * time.Second)
	assert.False(t, sw.Allow())

	now = now.Add(31 * time.Second)
	assert.True(t, sw.Allow())

	sw.Reset()
	for i := 0; i < 3; i++ {
		assert.True(t, sw.Allow())
	}
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, sw.Wait(ctx))
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	sw.Reset()
	require.NoError(t, sw.Wait(cancelled), "free slot does not block")
	require.NoError(t, sw.Wait(cancelled))
	assert.ErrorIs(t, sw.Wait(cancelled), context.Canceled)
}
