package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJitterPacerDelayBounds(t *testing.T) {
	p := NewJitterPacer(2*time.Second, 8*time.Second, 0)
	for i := 0; i < 200; i++ {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 8*time.Second)
	}

	fixed := NewJitterPacer(3*time.Second, time.Second, 0)
	assert.Equal(t, 3*time.Second, fixed.Delay(), "max below min collapses to min")
}

func TestJitterPacerHonoursCancellation(t *testing.T) {
	p := NewJitterPacer(time.Hour, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := p.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestJitterPacerRateCap(t *testing.T) {
	p := NewJitterPacer(0, 0, 1000)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
}
