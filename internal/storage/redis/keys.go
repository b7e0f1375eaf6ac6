package redis

import (
	"fmt"

	"github.com/mcoot/turnclock/internal/model"
)

// Key prefix for all turnclock data
const keyPrefix = "tclock"

// recordKey returns the Redis key for a persisted record of the given kind
func recordKey(kind model.RecordKind, id string) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, kind, id)
}

// roomKey returns the Redis key for a Room
func roomKey(id model.RoomID) string {
	return recordKey(model.RecordKindRoom, string(id))
}

// presenceKey returns the Redis key for a player's Presence
func presenceKey(id model.PlayerID) string {
	return recordKey(model.RecordKindPresence, string(id))
}

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// registeredPlayerKey returns the Redis key for a RegisteredPlayer
func registeredPlayerKey(playerID model.PlayerID) string {
	return fmt.Sprintf("%s:registered_player:%s", keyPrefix, playerID)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// roomsIndexKey returns the Redis key for the SET of room ids
func roomsIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", keyPrefix)
}

// roomChannel returns the Pub/Sub channel carrying a room's events
func roomChannel(id model.RoomID) string {
	return fmt.Sprintf("%s:events:room:%s", keyPrefix, id)
}
