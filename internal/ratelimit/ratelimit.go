package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Budget is the outbound call allowance for one platform: at most
// MaxRequests calls inside any trailing Window.
type Budget struct {
	MaxRequests int
	Window      time.Duration
}

// Limiter is a delay-based sliding-window throttle. Acquire never rejects;
// it suspends the caller until a slot frees up inside the window. This is a
// different policy from the reject-based throttle at the HTTP route layer.
type Limiter struct {
	mu      sync.Mutex
	budgets map[string]Budget
	calls   map[string][]time.Time

	// now is swappable for tests
	now func() time.Time
}

func New(budgets map[string]Budget) *Limiter {
	return &Limiter{
		budgets: budgets,
		calls:   make(map[string][]time.Time),
		now:     time.Now,
	}
}

// NewSingle builds a limiter guarding one platform. The registry hands each
// adapter instance its own limiter so stores never contend on a shared lock.
func NewSingle(platform string, maxRequests int, window time.Duration) *Limiter {
	return New(map[string]Budget{
		platform: {MaxRequests: maxRequests, Window: window},
	})
}

// Acquire blocks until a call slot is available for the platform, then
// records the call. A platform without a configured budget proceeds
// immediately. If ctx is cancelled mid-wait the call is still recorded
// before returning, so the window stays accurate for concurrent waiters.
func (l *Limiter) Acquire(ctx context.Context, platform string) error {
	budget, ok := l.budgets[platform]
	if !ok || budget.MaxRequests <= 0 {
		return nil
	}

	for {
		l.mu.Lock()
		now := l.now()
		window := l.pruneLocked(platform, now, budget.Window)
		if len(window) < budget.MaxRequests {
			l.calls[platform] = append(window, now)
			l.mu.Unlock()
			return nil
		}
		wait := window[0].Add(budget.Window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
			// re-check under lock; another waiter may have taken the slot
		case <-ctx.Done():
			timer.Stop()
			l.mu.Lock()
			now := l.now()
			l.calls[platform] = append(l.pruneLocked(platform, now, budget.Window), now)
			l.mu.Unlock()
			return ctx.Err()
		}
	}
}

// Pending reports how many calls are currently inside the window.
func (l *Limiter) Pending(platform string) int {
	budget, ok := l.budgets[platform]
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	window := l.pruneLocked(platform, l.now(), budget.Window)
	l.calls[platform] = window
	return len(window)
}

func (l *Limiter) pruneLocked(platform string, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	calls := l.calls[platform]
	kept := calls[:0]
	for _, ts := range calls {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
