package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
)

// MockClock is a mock implementation of Clock for testing.
// It is backed by a clockwork fake clock so tickers advance with it.
type MockClock struct {
	*clockwork.FakeClock
}

// Ensure MockClock implements Clock and Ticking
var (
	_ clock.Clock   = (*MockClock)(nil)
	_ clock.Ticking = (*MockClock)(nil)
)

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{FakeClock: clockwork.NewFakeClockAt(t)}
}

// Set moves the clock to the given time. Moving backwards is ignored.
func (c *MockClock) Set(t time.Time) {
	if d := t.Sub(c.Now()); d > 0 {
		c.Advance(d)
	}
}
