package auth

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker(limit int) (*QuotaTracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	q := NewQuotaTracker(limit, time.Hour)
	q.SetClock(clock.Now)
	return q, clock
}

func TestQuotaTracker_ExactlyLimitPerWindow(t *testing.T) {
	q, clock := newTestTracker(100)
	firstReset := clock.Now().Add(time.Hour)

	for i := 1; i <= 100; i++ {
		got := q.Check("k")
		require.True(t, got.Allowed, "request %d should be allowed", i)
		assert.Equal(t, 100-i, got.Remaining)
		assert.Equal(t, firstReset, got.ResetAt)
		clock.Advance(time.Second)
	}

	rejected := q.Check("k")
	assert.False(t, rejected.Allowed)
	assert.Equal(t, 0, rejected.Remaining)
	assert.Equal(t, firstReset, rejected.ResetAt, "reset time must equal the first request's window expiry")

	clock.Advance(time.Minute)
	again := q.Check("k")
	assert.False(t, again.Allowed)
	assert.Equal(t, firstReset, again.ResetAt)
}

func TestQuotaTracker_ResetsAfterWindow(t *testing.T) {
	q, clock := newTestTracker(2)

	q.Check("k")
	q.Check("k")
	require.False(t, q.Check("k").Allowed)

	clock.Advance(time.Hour)
	got := q.Check("k")
	assert.True(t, got.Allowed)
	assert.Equal(t, 1, got.Remaining)
	assert.Equal(t, clock.Now().Add(time.Hour), got.ResetAt)
}

func TestQuotaTracker_KeysAreIndependent(t *testing.T) {
	q, _ := newTestTracker(1)

	assert.True(t, q.Check("a").Allowed)
	assert.False(t, q.Check("a").Allowed)
	assert.True(t, q.Check("b").Allowed)
}

func TestQuotaTracker_PeekDoesNotConsume(t *testing.T) {
	q, _ := newTestTracker(3)

	q.Check("k")
	for i := 0; i < 5; i++ {
		assert.Equal(t, 2, q.Peek("k").Remaining)
	}
}

func TestQuotaTracker_PeekDoesNotOpenWindow(t *testing.T) {
	q, clock := newTestTracker(3)

	peek := q.Peek("k")
	assert.Equal(t, 3, peek.Remaining)

	clock.Advance(30 * time.Minute)
	first := q.Check("k")
	assert.True(t, first.ResetAt.Equal(clock.Now().Add(time.Hour)), "window starts at the first check")
}

func TestQuotaTracker_Override(t *testing.T) {
	q, _ := newTestTracker(1)
	q.SetLimit("vip", 3)

	for i := 0; i < 3; i++ {
		assert.True(t, q.Check("vip").Allowed)
	}
	assert.False(t, q.Check("vip").Allowed)
	assert.Equal(t, 3, q.Peek("vip").Limit)
}

func TestQuotaTracker_ConcurrentChecks(t *testing.T) {
	q, _ := newTestTracker(50)

	var (
		allowed atomic.Int64
		wg      sync.WaitGroup
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.Check("shared").Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), allowed.Load())
}
