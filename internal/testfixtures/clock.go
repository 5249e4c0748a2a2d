package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manually driven time source. Services take its NowFunc so tests
// can walk a meeting through expiry, the cancellation cutoff and completion.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the clock time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Current is an alias of Now for assertions.
func (c *Clock) Current() time.Time {
	return c.Now()
}

// NowFunc returns Now for injection. A nil clock yields time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// AdvanceTo moves the clock to the next day, strictly after today, that falls
// on weekday, at hour:minute in the clock's location.
func (c *Clock) AdvanceTo(weekday time.Weekday, hour, minute int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	days := (int(weekday) - int(c.current.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := c.current.Date()
	c.current = time.Date(y, m, d+days, hour, minute, 0, 0, c.current.Location())
	return c.current
}
