package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiterAdmitsUnderCaps(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(5, 100), WithClock(clock.Now, clock.Sleep))

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(context.Background(), 10))
	}
	requests, weight := l.Usage()
	require.Equal(t, 5, requests)
	require.Equal(t, 50, weight)
	require.Empty(t, clock.sleeps)
}

func TestLimiterWaitsForOldestEntryOnRequestCap(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(3, 1000), WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx, 1))
	clock.Advance(10 * time.Second)
	require.NoError(t, l.Admit(ctx, 1))
	require.NoError(t, l.Admit(ctx, 1))

	require.NoError(t, l.Admit(ctx, 1))
	require.Equal(t, []time.Duration{50 * time.Second}, clock.sleeps)

	requests, _ := l.Usage()
	require.Equal(t, 3, requests)
}

func TestLimiterWeightCap(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(100, 10), WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx, 6))
	require.NoError(t, l.Admit(ctx, 4))
	require.Empty(t, clock.sleeps)

	require.NoError(t, l.Admit(ctx, 1))
	require.Len(t, clock.sleeps, 1)
	_, weight := l.Usage()
	require.Equal(t, 1, weight)
}

func TestLimiterOversizedWeightAdmittedWhenWindowEmpty(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(10, 5), WithClock(clock.Now, clock.Sleep))

	require.NoError(t, l.Admit(context.Background(), 40))
	require.Empty(t, clock.sleeps)
}

func TestLimiterNeverExceedsCapsInAnyWindow(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(7, 20), WithClock(clock.Now, clock.Sleep))
	ctx := context.Background()

	var admitted []entry
	weights := []int{1, 5, 3, 2, 1, 4, 1, 1, 6, 2, 3, 1, 1, 1, 2, 5, 1, 3}
	for i := 0; i < 60; i++ {
		w := weights[i%len(weights)]
		require.NoError(t, l.Admit(ctx, w))
		admitted = append(admitted, entry{at: clock.Now(), weight: w})
		clock.Advance(time.Duration(i%4) * time.Second)
	}

	for i := range admitted {
		start := admitted[i].at
		count, sum := 0, 0
		for _, e := range admitted {
			if !e.at.Before(start) && e.at.Before(start.Add(DefaultWindow)) {
				count++
				sum += e.weight
			}
		}
		require.LessOrEqualf(t, count, 7, "window starting %s", start)
		require.LessOrEqualf(t, sum, 20, "window starting %s", start)
	}
}

func TestLimiterCancelledContext(t *testing.T) {
	clock := newFakeClock()
	l := New(WithCaps(1, 100), WithClock(clock.Now, clock.Sleep))

	require.NoError(t, l.Admit(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Admit(ctx, 1), context.Canceled)
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(context.Background(), time.Millisecond))
}
