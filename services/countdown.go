package services

import (
	"context"
	"time"

	"redemption-system/internal/clock"
)

// Remaining is the time left on a holding's time lock, broken out for
// display. Hours can exceed 23 (the lock is 48h).
type Remaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// ProjectCountdown returns the time remaining until the holding unlocks,
// or nil once the lock has elapsed. Never negative: at exactly the 48h
// boundary it settles to nil. Pure; any driving tick is the caller's job.
func ProjectCountdown(acquiredAt, now time.Time) *Remaining {
	remaining := acquiredAt.Add(TimeLock).Sub(now)
	if remaining <= 0 {
		return nil
	}

	secs := int(remaining.Seconds())
	// Partial seconds still count as a displayed second.
	if remaining%time.Second != 0 {
		secs++
	}

	return &Remaining{
		Hours:   secs / 3600,
		Minutes: secs % 3600 / 60,
		Seconds: secs % 60,
	}
}

// RunCountdown re-projects once per second and sends each value on out,
// closing it when the lock elapses or ctx is cancelled. The ticker stops
// with the ctx, so callers must cancel when the view goes away.
func RunCountdown(ctx context.Context, acquiredAt time.Time, clk clock.Clock, out chan<- *Remaining) {
	defer close(out)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		remaining := ProjectCountdown(acquiredAt, clk.Now())

		select {
		case out <- remaining:
		case <-ctx.Done():
			return
		}

		if remaining == nil {
			return
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
