package model

import "time"

// RecordKind tags the persisted record variants
type RecordKind string

const (
	RecordKindRoom     RecordKind = "room"
	RecordKindPresence RecordKind = "presence"
)

// Record is a persisted document. The set of implementations is closed:
// *Room and *Presence.
type Record interface {
	Kind() RecordKind
	RecordID() string
	isRecord()
}

// Kind implements Record
func (r *Room) Kind() RecordKind { return RecordKindRoom }

// RecordID implements Record
func (r *Room) RecordID() string { return string(r.ID) }

func (r *Room) isRecord() {}

// RoomMembership describes the room a player currently sits in
type RoomMembership struct {
	RoomID   RoomID
	RoomName string
	JoinedAt time.Time
}

// Presence indexes which room a player is in
type Presence struct {
	Player PlayerRef
	InRoom *RoomMembership // nil when not in a room
}

// Kind implements Record
func (p *Presence) Kind() RecordKind { return RecordKindPresence }

// RecordID implements Record
func (p *Presence) RecordID() string { return string(p.Player.ID) }

func (p *Presence) isRecord() {}
