package countdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func tickN(e *Engine, n int) {
	for i := 0; i < n; i++ {
		e.Tick()
	}
}

func TestEngineDrainsBufferThenBank(t *testing.T) {
	var e Engine
	e.Reseed("a#1", 20, 30)
	e.SetAdvancing(true)

	tickN(&e, 20)
	snap := e.Snapshot()
	assert.Equal(t, 0, snap.Buffer)
	assert.Equal(t, 30, snap.Current)

	tickN(&e, 30)
	snap = e.Snapshot()
	assert.Equal(t, 0, snap.Current)
	assert.True(t, snap.Expired())

	assert.False(t, e.Tick(), "expired countdown should not change")
	assert.Equal(t, 0, e.Snapshot().Current)
}

func TestEngineFrozenWhenNotAdvancing(t *testing.T) {
	var e Engine
	e.Reseed("a#1", 5, 10)

	tickN(&e, 3)
	assert.Equal(t, Snapshot{Key: "a#1", Current: 10, Buffer: 5}, e.Snapshot())

	e.SetAdvancing(true)
	tickN(&e, 2)
	e.SetAdvancing(false)
	tickN(&e, 10)
	assert.Equal(t, 3, e.Snapshot().Buffer)

	e.SetAdvancing(true)
	e.Tick()
	assert.Equal(t, 2, e.Snapshot().Buffer)
}

func TestEngineSameKeyKeepsBuffer(t *testing.T) {
	var e Engine
	e.Reseed("a#1", 20, 600)
	e.SetAdvancing(true)
	tickN(&e, 25)
	assert.Equal(t, 595, e.Snapshot().Current)

	// paused snapshot arrives with the saved bank
	changed := e.Reseed("a#1", 20, 595)
	assert.False(t, changed)
	assert.Equal(t, 0, e.Snapshot().Buffer)
	assert.Equal(t, 595, e.Snapshot().Current)

	e.Reseed("a#1", 20, 400)
	assert.Equal(t, 400, e.Snapshot().Current)
	assert.Equal(t, 0, e.Snapshot().Buffer)
}

func TestEngineNewKeyResets(t *testing.T) {
	var e Engine
	e.Reseed("a#1", 20, 600)
	e.SetAdvancing(true)
	tickN(&e, 30)

	changed := e.Reseed("b#2", 20, 300)
	assert.True(t, changed)
	assert.Equal(t, Snapshot{Key: "b#2", Current: 300, Buffer: 20, Advancing: true}, e.Snapshot())
}

func TestEngineEdgeSeeds(t *testing.T) {
	tests := []struct {
		name       string
		buffer     int
		base       int
		wantExpiry bool
		wantBuffer bool
	}{
		{name: "zero base is already expired", buffer: 0, base: 0, wantExpiry: true},
		{name: "zero base with buffer still has grace", buffer: 5, base: 0, wantBuffer: true},
		{name: "zero buffer skips grace", buffer: 0, base: 30},
		{name: "negative values are floored", buffer: -3, base: -1, wantExpiry: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Engine
			e.Reseed("k", tt.buffer, tt.base)
			snap := e.Snapshot()
			assert.Equal(t, tt.wantExpiry, snap.Expired())
			assert.Equal(t, tt.wantBuffer, snap.InBuffer())
		})
	}
}

func TestEngineZeroBufferDrainsBankImmediately(t *testing.T) {
	var e Engine
	e.Reseed("k", 0, 30)
	e.SetAdvancing(true)
	e.Tick()
	assert.Equal(t, 29, e.Snapshot().Current)
}
