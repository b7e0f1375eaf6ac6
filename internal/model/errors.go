package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound   = errors.New("player not found")
	ErrPresenceNotFound = errors.New("player presence not found")
	ErrIdentityRequired = errors.New("caller identity missing")

	// Room errors
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExists          = errors.New("room already exists")
	ErrRoomFull            = errors.New("room is full")
	ErrAlreadyInRoom       = errors.New("player is already in room")
	ErrNotInRoom           = errors.New("player is not in room")
	ErrNotAdmin            = errors.New("player is not the room admin")
	ErrGameStarted         = errors.New("game has already started")
	ErrGameNotStarted      = errors.New("game has not started")
	ErrNoPlayers           = errors.New("room has no players")
	ErrInsufficientPlayers = errors.New("insufficient players to start game")
	ErrInvalidConfig       = errors.New("invalid room configuration")
	ErrInvalidSeconds      = errors.New("seconds must not be negative")

	// Turn errors
	ErrNotPlayerTurn = errors.New("not this player's turn")
	ErrTimeUp        = errors.New("time is up")

	// Storage errors
	ErrVersionConflict = errors.New("room was modified concurrently")
)
