package provider

import (
	"context"
	"time"
)

// Sleeper abstracts the cooldown wait between credential rounds so rotation
// logic can be exercised in tests without real delay.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper waits on the real clock and returns early with the context
// error when the caller is cancelled mid-cooldown.
type ClockSleeper struct{}

func (ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
