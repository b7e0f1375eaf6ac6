// Package client keeps a local turn clock in step with a room's
// authoritative state and gates the actions a player may take on it.
package client

import (
	"context"

	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/services/room"
)

// RoomCommands issues room commands on behalf of the session's player
type RoomCommands interface {
	StartGame(ctx context.Context, id model.RoomID) (*model.Room, error)
	EndTurn(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error)
	StopOrStartTimer(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error)
	ResetTime(ctx context.Context, id model.RoomID) (*model.Room, error)
	PreviousTurn(ctx context.Context, id model.RoomID) (*model.Room, error)
	LeaveRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
}

// RoomFeed streams authoritative room state. The current state is
// delivered first and the channel closes when ctx is done.
type RoomFeed interface {
	SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error)
}

// Local runs commands against an in-process room controller as the
// provider's current user
type Local struct {
	controller *room.Controller
	identity   identity.Provider
}

// Ensure Local implements RoomCommands
var _ RoomCommands = (*Local)(nil)

// NewLocal creates a Local command adapter
func NewLocal(controller *room.Controller, provider identity.Provider) *Local {
	return &Local{controller: controller, identity: provider}
}

func (l *Local) StartGame(ctx context.Context, id model.RoomID) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.StartGame(ctx, id, caller)
}

func (l *Local) EndTurn(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.EndTurn(ctx, id, caller, seconds)
}

func (l *Local) StopOrStartTimer(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.StopOrStartTimer(ctx, id, caller, seconds)
}

func (l *Local) ResetTime(ctx context.Context, id model.RoomID) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.ResetTime(ctx, id, caller)
}

func (l *Local) PreviousTurn(ctx context.Context, id model.RoomID) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.PreviousTurn(ctx, id, caller)
}

func (l *Local) LeaveRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return nil, err
	}
	return l.controller.LeaveRoom(ctx, id, caller)
}

func (l *Local) DeleteRoom(ctx context.Context, id model.RoomID) error {
	caller, err := identity.Require(l.identity)
	if err != nil {
		return err
	}
	return l.controller.DeleteRoom(ctx, id, caller)
}
