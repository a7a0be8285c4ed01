package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-3, 1}, {0, 1}, {1, 1}, {3, 3}, {5, 5}, {6, 5}, {100, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampConfidence(tt.in))
	}
}

func TestNewInsightClampsAtConstruction(t *testing.T) {
	in := NewInsight("theme", "desc", "ev", "imp", 9)
	assert.Equal(t, 5, in.Confidence)
}

func TestCompletionPercentBands(t *testing.T) {
	assert.Equal(t, 0.0, CompletionPercent(StatusPending, 0, 50))
	assert.Equal(t, 5.0, CompletionPercent(StatusGeneratingPersonas, 0, 50))
	assert.Equal(t, 10.0, CompletionPercent(StatusReady, 0, 50))
	assert.Equal(t, 100.0, CompletionPercent(StatusCompleted, 50, 50))

	// interviewing occupies (10, 95]
	start := CompletionPercent(StatusRunning, 0, 50)
	mid := CompletionPercent(StatusRunning, 25, 50)
	full := CompletionPercent(StatusRunning, 50, 50)
	assert.Equal(t, 10.0, start)
	assert.Greater(t, mid, start)
	assert.Equal(t, 95.0, full)

	// overshoot is capped, zero totals stay at the ready mark
	assert.Equal(t, 95.0, CompletionPercent(StatusRunning, 99, 50))
	assert.Equal(t, 10.0, CompletionPercent(StatusRunning, 0, 0))
}

func TestCompletionPercentMonotonicOverRun(t *testing.T) {
	last := -1.0
	steps := []struct {
		status Status
		turns  int
	}{
		{StatusPending, 0},
		{StatusGeneratingPersonas, 0},
		{StatusReady, 0},
		{StatusRunning, 0},
		{StatusRunning, 10},
		{StatusRunning, 30},
		{StatusCompleted, 30},
	}
	for _, st := range steps {
		pct := CompletionPercent(st.status, st.turns, 30)
		assert.GreaterOrEqual(t, pct, last, "status %s turns %d", st.status, st.turns)
		last = pct
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusStopped, StatusError} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusPending, StatusGeneratingPersonas, StatusReady, StatusRunning} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := &GatewayError{Op: "generate_reply", Retryable: true, Err: errors.New("429")}
	fatal := &GatewayError{Op: "generate_reply", Retryable: false, Err: errors.New("401")}

	assert.True(t, IsRetryable(retryable))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", retryable)))
	assert.False(t, IsRetryable(fatal))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGate_BoundsInFlight(t *testing.T) {
	gate := NewGate(2)
	ctx := context.Background()

	var peak, current atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, gate.Acquire(ctx))
			defer gate.Release()
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			current.Add(-1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 0, gate.InFlight())
}

func TestGate_AcquireRespectsContext(t *testing.T) {
	gate := NewGate(1)
	require.NoError(t, gate.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := gate.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	gate.Release()
}

func TestGate_NilAndUnboundedAdmitEverything(t *testing.T) {
	var nilGate *Gate
	assert.NoError(t, nilGate.Acquire(context.Background()))
	nilGate.Release()

	unbounded := NewGate(0)
	assert.NoError(t, unbounded.Acquire(context.Background()))
	unbounded.Release()
}
