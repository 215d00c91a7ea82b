package testfixtures

import (
	"sync"
	"time"
)

// Clock is a controllable time source shared by services under test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock set to start, or to ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock is set to.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for constructors that take a func() time.Time.
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

// Today returns the clock's calendar date in the booking wire format.
func (c *Clock) Today(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format("2006-01-02")
}

// DaysFromNow returns the booking date offset by days from the clock.
func (c *Clock) DaysFromNow(days int, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).AddDate(0, 0, days).Format("2006-01-02")
}
