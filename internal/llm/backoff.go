package llm

import (
	"context"
	"time"
)

// Backoff is an exponential retry schedule for rate-limited attempts
type Backoff struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

// DefaultBackoff returns the 6s, 12s, 24s, 30s... schedule
func DefaultBackoff() Backoff {
	return Backoff{
		Base:       6 * time.Second,
		Multiplier: 2,
		Max:        30 * time.Second,
	}
}

// Delay returns the wait before retry number n (0-based). A provider hint
// longer than the schedule wins, still bounded by Max.
func (b Backoff) Delay(n int, hint time.Duration) time.Duration {
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(b.Base)
	for i := 0; i < n; i++ {
		d *= mult
		if b.Max > 0 && d >= float64(b.Max) {
			break
		}
	}
	delay := time.Duration(d)
	if hint > delay {
		delay = hint
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}
	return delay
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
