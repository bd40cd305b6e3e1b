package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPauserHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	TimerPauser{}.Pause(ctx, 5*time.Second)
	require.Less(t, time.Since(start), time.Second, "pause should exit immediately when context is done")
}

func TestRandomDelayStaysInRange(t *testing.T) {
	lo, hi := 500*time.Millisecond, time.Second
	for range 200 {
		d := RandomDelay(lo, hi)
		require.GreaterOrEqual(t, d, lo)
		require.LessOrEqual(t, d, hi)
	}
	require.Equal(t, lo, RandomDelay(lo, lo))
	require.Equal(t, lo, RandomDelay(lo, lo/2))
}
