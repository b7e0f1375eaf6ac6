package model

// TurnOrder is the seating of a room. Array position is turn order and
// next/previous wrap around the ends.
type TurnOrder []RoomPlayer

// Len returns the number of seated players
func (t TurnOrder) Len() int {
	return len(t)
}

// IndexOf returns the seat index of the player, or -1 if not seated
func (t TurnOrder) IndexOf(id PlayerID) int {
	for i := range t {
		if t[i].ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether the player is seated
func (t TurnOrder) Contains(id PlayerID) bool {
	return t.IndexOf(id) >= 0
}

// Get returns a pointer to the player's seat, or nil if not seated
func (t TurnOrder) Get(id PlayerID) *RoomPlayer {
	i := t.IndexOf(id)
	if i < 0 {
		return nil
	}
	return &t[i]
}

// Next returns the seat after the given player.
// An unseated id counts as index -1, so the first seat is returned.
func (t TurnOrder) Next(id PlayerID) (RoomPlayer, bool) {
	if len(t) == 0 {
		return RoomPlayer{}, false
	}
	return t[wrap(t.IndexOf(id)+1, len(t))], true
}

// Previous returns the seat before the given player.
// An unseated id counts as index -1, so the last seat is returned.
func (t TurnOrder) Previous(id PlayerID) (RoomPlayer, bool) {
	if len(t) == 0 {
		return RoomPlayer{}, false
	}
	i := t.IndexOf(id)
	if i < 0 {
		return t[len(t)-1], true
	}
	return t[wrap(i-1, len(t))], true
}

// Without returns a copy of the order with the player removed
func (t TurnOrder) Without(id PlayerID) TurnOrder {
	out := make(TurnOrder, 0, len(t))
	for _, p := range t {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a copy of the order
func (t TurnOrder) Clone() TurnOrder {
	if t == nil {
		return nil
	}
	out := make(TurnOrder, len(t))
	copy(out, t)
	return out
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}
