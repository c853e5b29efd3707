package transport

import (
	"sync"
	"time"
)

// Clock abstracts the monotonic clock used by polling loops. It also
// satisfies the retry.Clock interface.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the real monotonic clock
type SystemClock struct{}

// Now returns the current time (monotonic reading included)
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// After waits for d on the real clock
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// FakeClock is a deterministic clock. Sleep advances it, and every Now call
// advances it by Step so busy-poll loops make progress.
type FakeClock struct {
	mu    sync.Mutex
	now   time.Time
	Step  time.Duration
	slept time.Duration
}

// NewFakeClock returns a fake clock starting at a fixed instant
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(1_700_000_000, 0)}
}

// Now returns the fake time and advances it by Step
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.Step)
	return t
}

// Sleep advances the fake time by d without blocking
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

// After behaves like Sleep and returns an already-fired channel
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.Sleep(d)
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Slept returns the total time passed to Sleep
func (c *FakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
