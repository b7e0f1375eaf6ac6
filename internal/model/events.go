package model

import "time"

// RoomEventKind identifies the type of a room event
type RoomEventKind string

const (
	RoomEventUpdated RoomEventKind = "room_updated"
	RoomEventDeleted RoomEventKind = "room_deleted"
)

// RoomEvent is delivered to room subscribers. Room is set for updates and
// nil for deletions.
type RoomEvent struct {
	Kind      RoomEventKind
	RoomID    RoomID
	Room      *Room
	Timestamp time.Time
}

// RoomUpdated builds an update event for the room
func RoomUpdated(room *Room, at time.Time) RoomEvent {
	return RoomEvent{Kind: RoomEventUpdated, RoomID: room.ID, Room: room, Timestamp: at}
}

// RoomDeleted builds a deletion event
func RoomDeleted(id RoomID, at time.Time) RoomEvent {
	return RoomEvent{Kind: RoomEventDeleted, RoomID: id, Timestamp: at}
}

// CommandEvent records a command applied by the room controller
type CommandEvent struct {
	RoomID    RoomID
	Command   string // room command name, e.g. "JoinRoom" or "EndTurn"
	SentBy    PlayerRef
	Version   int64
	Timestamp time.Time
}
