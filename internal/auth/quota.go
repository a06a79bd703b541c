package auth

import (
	"sync"
	"time"
)

// Quota is the state of a key's window after a check
type Quota struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`

	// Unlimited is set when authentication is disabled
	Unlimited bool `json:"unlimited,omitempty"`
}

type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

// QuotaTracker enforces a fixed request budget per key per window. Each
// key's window has its own lock so unrelated keys never contend.
type QuotaTracker struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	windows   map[string]*window
	overrides map[string]int
}

// NewQuotaTracker creates a tracker allowing limit requests per period
func NewQuotaTracker(limit int, period time.Duration) *QuotaTracker {
	if limit <= 0 {
		limit = 100
	}
	if period <= 0 {
		period = time.Hour
	}
	return &QuotaTracker{
		limit:     limit,
		period:    period,
		now:       time.Now,
		windows:   make(map[string]*window),
		overrides: make(map[string]int),
	}
}

// SetClock replaces the time source
func (q *QuotaTracker) SetClock(now func() time.Time) {
	q.now = now
}

// SetLimit overrides the default limit for one key
func (q *QuotaTracker) SetLimit(key string, limit int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.overrides[key] = limit
}

func (q *QuotaTracker) limitFor(key string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if l, ok := q.overrides[key]; ok {
		return l
	}
	return q.limit
}

func (q *QuotaTracker) window(key string) *window {
	q.mu.RLock()
	w, ok := q.windows[key]
	q.mu.RUnlock()
	if ok {
		return w
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if w, ok := q.windows[key]; ok {
		return w
	}
	w = &window{}
	q.windows[key] = w
	return w
}

// Check consumes one request from the key's window. Once the limit is
// reached requests are rejected with the unchanged reset time until it passes.
func (q *QuotaTracker) Check(key string) Quota {
	return q.check(key, true)
}

// Peek reports the key's window without consuming a request
func (q *QuotaTracker) Peek(key string) Quota {
	return q.check(key, false)
}

func (q *QuotaTracker) check(key string, consume bool) Quota {
	limit := q.limitFor(key)
	w := q.window(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := q.now()
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		if !consume {
			// a peek never opens a window
			return Quota{Allowed: limit > 0, Limit: limit, Remaining: limit, ResetAt: now.Add(q.period)}
		}
		w.count = 0
		w.resetAt = now.Add(q.period)
	}

	if w.count >= limit {
		return Quota{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.resetAt}
	}
	if consume {
		w.count++
	}
	return Quota{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.resetAt}
}
