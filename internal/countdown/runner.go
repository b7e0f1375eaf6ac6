package countdown

import (
	"sync"
	"time"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
)

// TickInterval is how often a running countdown consumes a second
const TickInterval = time.Second

// Runner drives an Engine from a ticker. It owns at most one tick loop at a
// time: a new turn or a pause toggle stops and drains the previous loop
// before a new one starts.
type Runner struct {
	clock clock.Ticking

	// lifecycle serializes loop starts and stops
	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}

	mu      sync.Mutex
	engine  Engine
	updates chan Snapshot
	closed  bool
}

// NewRunner creates a stopped Runner
func NewRunner(clk clock.Ticking) *Runner {
	return &Runner{
		clock:   clk,
		updates: make(chan Snapshot, 1),
	}
}

// Updates delivers snapshots. The channel holds only the latest value, so a
// slow reader skips intermediate seconds rather than falling behind.
func (r *Runner) Updates() <-chan Snapshot {
	return r.updates
}

// Snapshot returns the current state
func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Snapshot()
}

// Reseed applies authoritative values, restarting the tick loop when the
// key changes so the new turn gets a full first second
func (r *Runner) Reseed(key string, buffer, base int) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := r.engine.Reseed(key, buffer, base)
	advancing := r.engine.Snapshot().Advancing
	r.publishLocked()
	r.mu.Unlock()

	if changed && advancing {
		r.stopLoop()
		r.startLoop()
	}
}

// SetAdvancing starts or freezes the countdown
func (r *Runner) SetAdvancing(advancing bool) {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	changed := r.engine.SetAdvancing(advancing)
	r.publishLocked()
	r.mu.Unlock()

	if !changed {
		return
	}
	r.stopLoop()
	if advancing {
		r.startLoop()
	}
}

// Running reports whether a tick loop is live
func (r *Runner) Running() bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()
	return r.stop != nil
}

// Close stops the tick loop. The Runner ignores further calls.
func (r *Runner) Close() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.stopLoop()
}

// startLoop must be called with lifecycle held
func (r *Runner) startLoop() {
	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done

	ticker := r.clock.NewTicker(TickInterval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				r.tick()
			}
		}
	}()
}

// stopLoop must be called with lifecycle held. It waits for the loop to exit.
func (r *Runner) stopLoop() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	<-r.done
	r.stop, r.done = nil, nil
}

func (r *Runner) tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.engine.Tick() {
		r.publishLocked()
	}
}

// publishLocked replaces any unread snapshot with the current one
func (r *Runner) publishLocked() {
	snap := r.engine.Snapshot()
	select {
	case <-r.updates:
	default:
	}
	r.updates <- snap
}
