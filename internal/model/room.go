package model

import "time"

// RoomID identifies a room
type RoomID string

// Command is the kind of an operation applied to a room
type Command string

const (
	CommandStartGame    Command = "StartGame"
	CommandEndTurn      Command = "EndTurn"
	CommandStopTime     Command = "StopTime"
	CommandPreviousTurn Command = "PreviousTurn"
	CommandResetTime    Command = "ResetTime"
	CommandSetTime      Command = "SetTime"
)

// MovesTurn reports whether the command passes the clock to another seat
func (c Command) MovesTurn() bool {
	switch c {
	case CommandStartGame, CommandEndTurn, CommandResetTime, CommandPreviousTurn:
		return true
	}
	return false
}

// Operation is one entry of a room's audit log
type Operation struct {
	Command Command
	SentBy  PlayerRef
	At      time.Time
}

// Room configuration limits
const (
	MinMinutes    = 1
	MaxMinutes    = 40
	MaxBuffer     = 180
	MaxIncrement  = 180
	SecondsStep   = 5
	MaxRoomSize   = 20
	MinStartSize  = 2
	DefaultBuffer = 20
)

// RoomConfig holds the clock settings chosen when creating a room
type RoomConfig struct {
	Minutes   int
	Buffer    int
	Increment int
}

// DefaultRoomConfig returns the default room configuration
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		Minutes:   10,
		Buffer:    DefaultBuffer,
		Increment: 0,
	}
}

// Validate checks the configuration against the room limits
func (c RoomConfig) Validate() error {
	if c.Minutes < MinMinutes || c.Minutes > MaxMinutes {
		return ErrInvalidConfig
	}
	if c.Buffer < 0 || c.Buffer > MaxBuffer || c.Buffer%SecondsStep != 0 {
		return ErrInvalidConfig
	}
	if c.Increment < 0 || c.Increment > MaxIncrement || c.Increment%SecondsStep != 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Seconds returns the starting time bank of each player
func (c RoomConfig) Seconds() int {
	return c.Minutes * 60
}

// Room is the authoritative state of one game session
type Room struct {
	ID             RoomID
	Name           string
	Admin          PlayerRef
	Players        TurnOrder
	PlayerTurn     PlayerRef
	Operations     []Operation // newest first
	Seconds        int
	Buffer         int
	Increment      int
	IsPaused       bool
	HasGameStarted bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CurrentPlayer returns the seat holding the clock, or nil if the turn
// holder is no longer seated
func (r *Room) CurrentPlayer() *RoomPlayer {
	return r.Players.Get(r.PlayerTurn.ID)
}

// IsAdmin reports whether the player created the room
func (r *Room) IsAdmin(id PlayerID) bool {
	return r.Admin.ID == id
}

// HasOperation reports whether the command appears in the log
func (r *Room) HasOperation(cmd Command) bool {
	for _, op := range r.Operations {
		if op.Command == cmd {
			return true
		}
	}
	return false
}

// TurnSerial counts the logged operations that moved the clock
func (r *Room) TurnSerial() int {
	n := 0
	for _, op := range r.Operations {
		if op.Command.MovesTurn() {
			n++
		}
	}
	return n
}

// Prepend adds an operation to the head of the log
func (r *Room) Prepend(op Operation) {
	r.Operations = append([]Operation{op}, r.Operations...)
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.Players = r.Players.Clone()
	if r.Operations != nil {
		c.Operations = make([]Operation, len(r.Operations))
		copy(c.Operations, r.Operations)
	}
	return &c
}
