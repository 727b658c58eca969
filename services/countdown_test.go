package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redemption-system/internal/clock"
)

func TestProjectCountdown(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		now      time.Time
		expected *Remaining
	}{
		{"just acquired", t0, &Remaining{Hours: 48, Minutes: 0, Seconds: 0}},
		{"one second in", t0.Add(time.Second), &Remaining{Hours: 47, Minutes: 59, Seconds: 59}},
		{"midway", t0.Add(24*time.Hour + 30*time.Minute + 15*time.Second), &Remaining{Hours: 23, Minutes: 29, Seconds: 45}},
		{"final second", t0.Add(48*time.Hour - time.Second), &Remaining{Hours: 0, Minutes: 0, Seconds: 1}},
		{"at the boundary", t0.Add(48 * time.Hour), nil},
		{"long past", t0.Add(500 * time.Hour), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ProjectCountdown(t0, tt.now))
		})
	}
}

func TestProjectCountdown_PartialSecondRoundsUp(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// 500ms of lock left still displays as one second.
	remaining := ProjectCountdown(t0, t0.Add(48*time.Hour-500*time.Millisecond))
	require.NotNil(t, remaining)
	assert.Equal(t, &Remaining{Hours: 0, Minutes: 0, Seconds: 1}, remaining)
}

func TestProjectCountdown_NeverNegative(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for elapsed := 48 * time.Hour; elapsed < 52*time.Hour; elapsed += time.Hour {
		assert.Nil(t, ProjectCountdown(t0, t0.Add(elapsed)))
	}
}

func TestRunCountdown_ClosesOnElapsedLock(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(t0.Add(48 * time.Hour))

	out := make(chan *Remaining, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunCountdown(context.Background(), t0, clk, out)
	}()

	// On an elapsed lock the driver emits one nil and closes.
	v, ok := <-out
	require.True(t, ok)
	assert.Nil(t, v)

	_, ok = <-out
	assert.False(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop after the lock elapsed")
	}
}

func TestRunCountdown_StopsOnCancel(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(t0) // lock never elapses under a fixed clock

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan *Remaining)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunCountdown(ctx, t0, clk, out)
	}()

	v := <-out
	require.NotNil(t, v)
	assert.Equal(t, 48, v.Hours)

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown did not stop on cancel")
	}
}
