// Package clock abstracts time so cache expiry can be tested deterministically.
package clock

import "time"

// Clock is an interface for obtaining the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now. The readings carry Go's monotonic
// component, so elapsed time is immune to wall-clock adjustments.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Mock is a Clock for tests whose time only moves when told to.
// It is not safe for concurrent use.
type Mock struct {
	current time.Time
}

// NewMock creates a Mock initialized to t. A zero t starts at a fixed,
// non-zero instant.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0) // 2001-09-09
	}
	return &Mock{current: t}
}

// Now returns the mock's current time.
func (m *Mock) Now() time.Time {
	return m.current
}

// Advance moves the clock forward. Panics if d is negative.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}
