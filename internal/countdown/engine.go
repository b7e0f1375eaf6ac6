// Package countdown implements the local turn clock: a buffer (grace) phase
// followed by the player's own time bank, ticking down once per second.
package countdown

// Snapshot is the live state of a countdown
type Snapshot struct {
	Key       string
	Current   int // seconds left in the player's bank
	Buffer    int // grace seconds left before the bank starts draining
	Advancing bool
}

// Expired reports whether both the buffer and the bank are exhausted
func (s Snapshot) Expired() bool {
	return s.Current <= 0 && s.Buffer <= 0
}

// InBuffer reports whether the grace phase is still running
func (s Snapshot) InBuffer() bool {
	return s.Buffer > 0
}

// Engine is the pure countdown state machine. It has no notion of time;
// callers invoke Tick once per elapsed second.
type Engine struct {
	key       string
	seeded    bool
	base      int
	current   int
	buffer    int
	advancing bool
}

// Reseed applies authoritative values. A new key starts a fresh turn and
// resets both counters. The same key with a different base replaces the
// bank but keeps the remaining buffer, so pausing loses no grace time.
// Reports whether the key changed.
func (e *Engine) Reseed(key string, buffer, base int) bool {
	buffer = max(buffer, 0)
	base = max(base, 0)

	if !e.seeded || key != e.key {
		e.seeded = true
		e.key = key
		e.base = base
		e.current = base
		e.buffer = buffer
		return true
	}

	if base != e.base {
		e.base = base
		e.current = base
	}
	return false
}

// SetAdvancing starts or freezes the countdown. Reports whether the flag changed.
func (e *Engine) SetAdvancing(advancing bool) bool {
	if e.advancing == advancing {
		return false
	}
	e.advancing = advancing
	return true
}

// Tick consumes one second, draining the buffer before the bank. Both
// counters stop at zero. Reports whether anything changed.
func (e *Engine) Tick() bool {
	if !e.advancing {
		return false
	}
	switch {
	case e.buffer > 0:
		e.buffer--
	case e.current > 0:
		e.current--
	default:
		return false
	}
	return true
}

// Snapshot returns the current state
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Key:       e.key,
		Current:   e.current,
		Buffer:    e.buffer,
		Advancing: e.advancing,
	}
}
