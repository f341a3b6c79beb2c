// Package ratelimit bounds outbound request count and weight over a sliding window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultWindow      = time.Minute
	DefaultMaxRequests = 1200
	DefaultMaxWeight   = 2400
)

type entry struct {
	at     time.Time
	weight int
}

// Limiter admits requests while the trailing window stays under both caps.
// Admit blocks instead of failing; the only error is context cancellation.
type Limiter struct {
	mu      sync.Mutex
	entries []entry

	window      time.Duration
	maxRequests int
	maxWeight   int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithCaps overrides the request and weight caps. Non-positive values keep the defaults.
func WithCaps(maxRequests, maxWeight int) Option {
	return func(l *Limiter) {
		if maxRequests > 0 {
			l.maxRequests = maxRequests
		}
		if maxWeight > 0 {
			l.maxWeight = maxWeight
		}
	}
}

// WithClock overrides the time source and sleeper (primarily for testing).
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New constructs a limiter with Binance futures defaults.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		window:      DefaultWindow,
		maxRequests: DefaultMaxRequests,
		maxWeight:   DefaultMaxWeight,
		now:         time.Now,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit waits until a request of the given weight fits in the window and records it.
func (l *Limiter) Admit(ctx context.Context, weight int) error {
	if weight < 1 {
		weight = 1
	}
	for {
		wait, ok := l.tryAdmit(weight)
		if ok {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (l *Limiter) tryAdmit(weight int) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purgeLocked(now)

	if len(l.entries) == 0 {
		l.entries = append(l.entries, entry{at: now, weight: weight})
		return 0, true
	}
	if len(l.entries) < l.maxRequests && l.weightLocked()+weight <= l.maxWeight {
		l.entries = append(l.entries, entry{at: now, weight: weight})
		return 0, true
	}
	wait := l.entries[0].at.Add(l.window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (l *Limiter) purgeLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.entries) && !l.entries[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.entries = append(l.entries[:0], l.entries[idx:]...)
	}
}

func (l *Limiter) weightLocked() int {
	total := 0
	for _, e := range l.entries {
		total += e.weight
	}
	return total
}

// Usage reports the request count and weight currently inside the window.
func (l *Limiter) Usage() (requests, weight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.purgeLocked(l.now())
	return len(l.entries), l.weightLocked()
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
