package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a session-level participant
type Player struct {
	ID          PlayerID
	DisplayName string
	IsGuest     bool // true for unregistered players
	CreatedAt   time.Time
}

// Ref returns the compact form of the player embedded in rooms
func (p Player) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.DisplayName}
}

// RegisteredPlayer extends Player with authentication data
// Stored separately for security (password never in memory with session)
type RegisteredPlayer struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PlayerRef is a player as recorded inside a room
type PlayerRef struct {
	ID   PlayerID
	Name string
}

// IsZero reports whether the reference carries no identity
func (p PlayerRef) IsZero() bool {
	return p.ID == ""
}

// RoomPlayer is a player seated in a room together with their time bank
type RoomPlayer struct {
	ID      PlayerID
	Name    string
	Seconds int
}

// Ref returns the player reference for the seat
func (p RoomPlayer) Ref() PlayerRef {
	return PlayerRef{ID: p.ID, Name: p.Name}
}
