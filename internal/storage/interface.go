package storage

import (
	"context"

	"github.com/mcoot/turnclock/internal/model"
)

// RoomMutator applies a change to a freshly read room. Returning an error
// aborts the update and leaves the stored room untouched.
type RoomMutator func(room *model.Room) error

// MaxUpdateAttempts bounds how often a conditional update is retried after
// losing a race before ErrVersionConflict is returned
const MaxUpdateAttempts = 5

// Storage defines the interface for data persistence
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)

	// Registered player operations
	SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error
	GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error)
	GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error)

	// Presence operations
	SavePresence(ctx context.Context, presence *model.Presence) error
	GetPresence(ctx context.Context, playerID model.PlayerID) (*model.Presence, error)

	// Room operations

	// CreateRoom stores a new room, assigning an id when room.ID is empty.
	// Returns ErrRoomExists if the id is taken.
	CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error)
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	ListRooms(ctx context.Context) ([]*model.Room, error)
	// UpdateRoom re-reads the room, applies fn and commits only if the room
	// did not change in between. The version is bumped on every commit.
	UpdateRoom(ctx context.Context, id model.RoomID, fn RoomMutator) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	// SubscribeRoom streams changes to the room until ctx is cancelled.
	// The current state is delivered first.
	SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error)
}
