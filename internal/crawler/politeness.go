package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// TimerPauser sleeps on a timer and returns early when the context ends.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// NopPauser never sleeps.
type NopPauser struct{}

// Pause returns immediately.
func (NopPauser) Pause(context.Context, time.Duration) {}

// RandomDelay picks a duration uniformly from [lo, hi].
func RandomDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}
