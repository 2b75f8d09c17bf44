package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer blocks between two consecutive sends
type Pacer interface {
	Wait(ctx context.Context) error
}

// JitterPacer sleeps a uniform random delay in [min, max] and, when a limiter is
// set, waits for a token so bursts never exceed the provider's account rate
type JitterPacer struct {
	min     time.Duration
	max     time.Duration
	limiter *rate.Limiter
	int64N  func(n int64) int64
}

// NewJitterPacer builds a pacer. perSecond <= 0 disables the token bucket.
func NewJitterPacer(min, max time.Duration, perSecond float64) *JitterPacer {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	p := &JitterPacer{min: min, max: max, int64N: rand.Int64N}
	if perSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return p
}

// Delay returns the next jittered delay
func (p *JitterPacer) Delay() time.Duration {
	span := int64(p.max - p.min)
	if span <= 0 {
		return p.min
	}
	return p.min + time.Duration(p.int64N(span+1))
}

func (p *JitterPacer) Wait(ctx context.Context) error {
	if d := p.Delay(); d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if p.limiter != nil {
		return p.limiter.Wait(ctx)
	}
	return nil
}

// NoPacer never waits
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
