package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seats(ids ...string) TurnOrder {
	order := make(TurnOrder, 0, len(ids))
	for _, id := range ids {
		order = append(order, RoomPlayer{ID: PlayerID(id), Name: id, Seconds: 60})
	}
	return order
}

func TestTurnOrderNextWraps(t *testing.T) {
	order := seats("a", "b", "c")

	tests := []struct {
		from string
		want PlayerID
	}{
		{"a", "b"},
		{"b", "c"},
		{"c", "a"},
		{"missing", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			next, ok := order.Next(PlayerID(tt.from))
			require.True(t, ok)
			assert.Equal(t, tt.want, next.ID)
		})
	}
}

func TestTurnOrderPreviousWraps(t *testing.T) {
	order := seats("a", "b", "c")

	tests := []struct {
		from string
		want PlayerID
	}{
		{"a", "c"},
		{"b", "a"},
		{"c", "b"},
		{"missing", "c"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			prev, ok := order.Previous(PlayerID(tt.from))
			require.True(t, ok)
			assert.Equal(t, tt.want, prev.ID)
		})
	}
}

func TestTurnOrderFullCycleReturnsToStart(t *testing.T) {
	for n := 1; n <= 6; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		order := seats(ids...)

		current := order[0].ID
		for i := 0; i < n; i++ {
			next, _ := order.Next(current)
			current = next.ID
		}
		assert.Equal(t, order[0].ID, current, "cycle of %d seats", n)
	}
}

func TestTurnOrderPreviousInvertsNext(t *testing.T) {
	order := seats("a", "b", "c", "d")
	for _, p := range order {
		next, _ := order.Next(p.ID)
		back, _ := order.Previous(next.ID)
		assert.Equal(t, p.ID, back.ID)
	}
}

func TestTurnOrderEmpty(t *testing.T) {
	var order TurnOrder

	_, ok := order.Next("a")
	assert.False(t, ok)
	_, ok = order.Previous("a")
	assert.False(t, ok)
	assert.Nil(t, order.Get("a"))
}

func TestTurnOrderWithoutKeepsOrder(t *testing.T) {
	order := seats("a", "b", "c")

	rest := order.Without("b")

	assert.Equal(t, []PlayerID{"a", "c"}, []PlayerID{rest[0].ID, rest[1].ID})
	assert.Len(t, order, 3)
}

func TestTurnOrderGetIsMutable(t *testing.T) {
	order := seats("a", "b")

	order.Get("b").Seconds = 5

	assert.Equal(t, 5, order[1].Seconds)
}
