package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock provides time operations that can be mocked for testing
type Clock interface {
	Now() time.Time
}

// Ticking is a Clock that can also drive tickers and timers
type Ticking interface {
	Clock
	NewTicker(d time.Duration) clockwork.Ticker
	NewTimer(d time.Duration) clockwork.Timer
}

// RealClock implements Clock and Ticking using the system clock
type RealClock struct {
	clockwork.Clock
}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{Clock: clockwork.NewRealClock()}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return c.Clock.Now()
}
