package room

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/dependencies/random"
	"github.com/mcoot/turnclock/internal/events"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage"
)

// Command names used in published events for commands that are not logged
// as room operations
const (
	commandCreateRoom = "CreateRoom"
	commandJoinRoom   = "JoinRoom"
	commandLeaveRoom  = "LeaveRoom"
	commandDeleteRoom = "DeleteRoom"
)

// rejections are the precondition failures a command can report. They leave
// the room untouched and are logged as warnings.
var rejections = []error{
	model.ErrIdentityRequired,
	model.ErrRoomNotFound,
	model.ErrRoomExists,
	model.ErrRoomFull,
	model.ErrAlreadyInRoom,
	model.ErrNotInRoom,
	model.ErrNotAdmin,
	model.ErrGameStarted,
	model.ErrGameNotStarted,
	model.ErrNoPlayers,
	model.ErrInvalidConfig,
	model.ErrInvalidSeconds,
	model.ErrVersionConflict,
}

// Controller applies room commands. Every command is a conditional
// read-modify-write through storage.UpdateRoom.
type Controller struct {
	storage   storage.Storage
	publisher events.Publisher
	clock     clock.Clock
	random    random.Random
	logger    *slog.Logger
}

// NewController creates a new room Controller
func NewController(
	storage storage.Storage,
	publisher events.Publisher,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Controller{
		storage:   storage,
		publisher: publisher,
		clock:     clock,
		random:    random,
		logger:    logger.With(slog.String("component", "room_controller")),
	}
}

// CreateRoom creates a room with the caller as admin and only player
func (c *Controller) CreateRoom(ctx context.Context, caller model.PlayerRef, cfg model.RoomConfig) (*model.Room, error) {
	if caller.IsZero() {
		c.reject(commandCreateRoom, "", caller, model.ErrIdentityRequired)
		return nil, model.ErrIdentityRequired
	}
	if err := cfg.Validate(); err != nil {
		c.reject(commandCreateRoom, "", caller, err)
		return nil, err
	}

	now := c.clock.Now()
	seconds := cfg.Seconds()
	room := &model.Room{
		ID:         model.RoomID(c.random.ID()),
		Name:       GenerateName(c.random),
		Admin:      caller,
		Players:    model.TurnOrder{{ID: caller.ID, Name: caller.Name, Seconds: seconds}},
		PlayerTurn: caller,
		Operations: []model.Operation{},
		Seconds:    seconds,
		Buffer:     cfg.Buffer,
		Increment:  cfg.Increment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	id, err := c.storage.CreateRoom(ctx, room)
	if err != nil {
		c.reject(commandCreateRoom, room.ID, caller, err)
		return nil, err
	}
	room.ID = id

	c.enterRoom(ctx, caller, room)
	c.publish(ctx, room.ID, commandCreateRoom, caller, room.Version)

	c.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("room_name", room.Name),
		slog.String("admin_id", string(caller.ID)))
	return room, nil
}

// GetRoom retrieves a room by id
func (c *Controller) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return c.storage.GetRoom(ctx, id)
}

// ListRooms returns every stored room
func (c *Controller) ListRooms(ctx context.Context) ([]*model.Room, error) {
	return c.storage.ListRooms(ctx)
}

// GetPresence returns the room the player is currently in, if any. A
// player who never sat in a room has an empty presence.
func (c *Controller) GetPresence(ctx context.Context, playerID model.PlayerID) (*model.Presence, error) {
	presence, err := c.storage.GetPresence(ctx, playerID)
	if errors.Is(err, model.ErrPresenceNotFound) {
		return &model.Presence{Player: model.PlayerRef{ID: playerID}}, nil
	}
	return presence, err
}

// JoinRoom seats the caller at the end of the turn order
func (c *Controller) JoinRoom(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error) {
	room, err := c.apply(ctx, id, commandJoinRoom, caller, func(r *model.Room) error {
		if r.HasGameStarted {
			return model.ErrGameStarted
		}
		if r.Players.Contains(caller.ID) {
			return model.ErrAlreadyInRoom
		}
		if r.Players.Len() >= model.MaxRoomSize {
			return model.ErrRoomFull
		}
		r.Players = append(r.Players, model.RoomPlayer{ID: caller.ID, Name: caller.Name, Seconds: r.Seconds})
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.enterRoom(ctx, caller, room)
	return room, nil
}

// errCloseRoom aborts a leave that has to remove the whole room
var errCloseRoom = errors.New("room closes on leave")

// LeaveRoom removes the caller from the room. If the caller held the turn
// of a running game, the turn passes to the next player. The admin leaving,
// or the last player leaving, deletes the room; the returned room is nil
// in that case.
func (c *Controller) LeaveRoom(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error) {
	if caller.IsZero() {
		c.reject(commandLeaveRoom, id, caller, model.ErrIdentityRequired)
		return nil, model.ErrIdentityRequired
	}

	room, err := c.storage.UpdateRoom(ctx, id, func(r *model.Room) error {
		if !r.Players.Contains(caller.ID) {
			return model.ErrNotInRoom
		}
		if r.IsAdmin(caller.ID) || r.Players.Len() == 1 {
			return errCloseRoom
		}
		if r.HasGameStarted && r.PlayerTurn.ID == caller.ID {
			if next, ok := r.Players.Next(caller.ID); ok {
				r.PlayerTurn = next.Ref()
			}
		}
		r.Players = r.Players.Without(caller.ID)
		r.UpdatedAt = c.clock.Now()
		return nil
	})
	if errors.Is(err, errCloseRoom) {
		if err := c.closeRoom(ctx, id, commandLeaveRoom, caller); err != nil && !errors.Is(err, model.ErrRoomNotFound) {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		c.reject(commandLeaveRoom, id, caller, err)
		return nil, err
	}

	c.publish(ctx, id, commandLeaveRoom, caller, room.Version)
	c.exitRoom(ctx, caller)
	return room, nil
}

// DeleteRoom removes the room. Subscribers are notified of the deletion.
func (c *Controller) DeleteRoom(ctx context.Context, id model.RoomID, caller model.PlayerRef) error {
	return c.closeRoom(ctx, id, commandDeleteRoom, caller)
}

// closeRoom deletes the room and clears the presence of everyone seated in it
func (c *Controller) closeRoom(ctx context.Context, id model.RoomID, command string, caller model.PlayerRef) error {
	room, err := c.storage.GetRoom(ctx, id)
	if err != nil {
		c.reject(command, id, caller, err)
		return err
	}

	if err := c.storage.DeleteRoom(ctx, id); err != nil {
		c.reject(command, id, caller, err)
		return err
	}

	for _, p := range room.Players {
		c.exitRoom(ctx, p.Ref())
	}
	c.publish(ctx, id, commandDeleteRoom, caller, 0)

	c.logger.Info("room deleted",
		slog.String("room_id", string(id)),
		slog.String("command", command),
		slog.String("player_id", string(caller.ID)))
	return nil
}

// StartGame starts the clock for the player holding the turn
func (c *Controller) StartGame(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error) {
	return c.apply(ctx, id, string(model.CommandStartGame), caller, func(r *model.Room) error {
		if r.HasGameStarted {
			return model.ErrGameStarted
		}
		if r.Players.Len() == 0 {
			return model.ErrNoPlayers
		}
		if r.CurrentPlayer() == nil {
			r.PlayerTurn = r.Players[0].Ref()
		}
		r.HasGameStarted = true
		c.logOperation(r, model.CommandStartGame, caller)
		return nil
	})
}

// EndTurn banks the remaining seconds plus the increment for the current
// player and passes the turn to the next player
func (c *Controller) EndTurn(ctx context.Context, id model.RoomID, caller model.PlayerRef, remaining int) (*model.Room, error) {
	if remaining < 0 {
		c.reject(string(model.CommandEndTurn), id, caller, model.ErrInvalidSeconds)
		return nil, model.ErrInvalidSeconds
	}

	return c.apply(ctx, id, string(model.CommandEndTurn), caller, func(r *model.Room) error {
		if err := requireStarted(r); err != nil {
			return err
		}
		if current := r.CurrentPlayer(); current != nil {
			current.Seconds = remaining + r.Increment
		}
		next, _ := r.Players.Next(r.PlayerTurn.ID)
		r.PlayerTurn = next.Ref()
		c.logOperation(r, model.CommandEndTurn, caller)
		return nil
	})
}

// StopOrStartTimer saves the current player's remaining seconds and toggles
// the pause flag
func (c *Controller) StopOrStartTimer(ctx context.Context, id model.RoomID, caller model.PlayerRef, remaining int) (*model.Room, error) {
	if remaining < 0 {
		c.reject(string(model.CommandStopTime), id, caller, model.ErrInvalidSeconds)
		return nil, model.ErrInvalidSeconds
	}

	return c.apply(ctx, id, string(model.CommandStopTime), caller, func(r *model.Room) error {
		if err := requireStarted(r); err != nil {
			return err
		}
		if current := r.CurrentPlayer(); current != nil {
			current.Seconds = remaining
		}
		r.IsPaused = !r.IsPaused
		c.logOperation(r, model.CommandStopTime, caller)
		return nil
	})
}

// ResetTime restores the current player's bank to the room default and
// passes the turn to the next player
func (c *Controller) ResetTime(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error) {
	return c.apply(ctx, id, string(model.CommandResetTime), caller, func(r *model.Room) error {
		if err := requireStarted(r); err != nil {
			return err
		}
		if current := r.CurrentPlayer(); current != nil {
			current.Seconds = r.Seconds
		}
		next, _ := r.Players.Next(r.PlayerTurn.ID)
		r.PlayerTurn = next.Ref()
		c.logOperation(r, model.CommandResetTime, caller)
		return nil
	})
}

// PreviousTurn moves the turn back one seat without touching any bank
func (c *Controller) PreviousTurn(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error) {
	return c.apply(ctx, id, string(model.CommandPreviousTurn), caller, func(r *model.Room) error {
		if err := requireStarted(r); err != nil {
			return err
		}
		prev, _ := r.Players.Previous(r.PlayerTurn.ID)
		r.PlayerTurn = prev.Ref()
		c.logOperation(r, model.CommandPreviousTurn, caller)
		return nil
	})
}

// SetTime lets the admin correct any player's bank
func (c *Controller) SetTime(ctx context.Context, id model.RoomID, caller model.PlayerRef, target model.PlayerID, seconds int) (*model.Room, error) {
	if seconds < 0 {
		c.reject(string(model.CommandSetTime), id, caller, model.ErrInvalidSeconds)
		return nil, model.ErrInvalidSeconds
	}

	return c.apply(ctx, id, string(model.CommandSetTime), caller, func(r *model.Room) error {
		if err := requireStarted(r); err != nil {
			return err
		}
		if !r.IsAdmin(caller.ID) {
			return model.ErrNotAdmin
		}
		p := r.Players.Get(target)
		if p == nil {
			return model.ErrNotInRoom
		}
		p.Seconds = seconds
		c.logOperation(r, model.CommandSetTime, caller)
		return nil
	})
}

func requireStarted(r *model.Room) error {
	if !r.HasGameStarted {
		return model.ErrGameNotStarted
	}
	if r.Players.Len() == 0 {
		return model.ErrNoPlayers
	}
	return nil
}

// apply runs fn as a conditional update and publishes the result
func (c *Controller) apply(ctx context.Context, id model.RoomID, command string, caller model.PlayerRef, fn storage.RoomMutator) (*model.Room, error) {
	if caller.IsZero() {
		c.reject(command, id, caller, model.ErrIdentityRequired)
		return nil, model.ErrIdentityRequired
	}

	room, err := c.storage.UpdateRoom(ctx, id, func(r *model.Room) error {
		if err := fn(r); err != nil {
			return err
		}
		r.UpdatedAt = c.clock.Now()
		return nil
	})
	if err != nil {
		c.reject(command, id, caller, err)
		return nil, err
	}

	c.publish(ctx, id, command, caller, room.Version)
	return room, nil
}

func (c *Controller) logOperation(r *model.Room, cmd model.Command, caller model.PlayerRef) {
	r.Prepend(model.Operation{Command: cmd, SentBy: caller, At: c.clock.Now()})
}

func (c *Controller) reject(command string, id model.RoomID, caller model.PlayerRef, err error) {
	attrs := []any{
		slog.String("command", command),
		slog.String("room_id", string(id)),
		slog.String("player_id", string(caller.ID)),
		slog.String("error", err.Error()),
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			c.logger.Warn("room command rejected", attrs...)
			return
		}
	}
	c.logger.Error("room command failed", attrs...)
}

func (c *Controller) publish(ctx context.Context, id model.RoomID, command string, caller model.PlayerRef, version int64) {
	err := c.publisher.Publish(ctx, model.CommandEvent{
		RoomID:    id,
		Command:   command,
		SentBy:    caller,
		Version:   version,
		Timestamp: c.clock.Now(),
	})
	if err != nil {
		c.logger.Warn("failed to publish room event",
			slog.String("room_id", string(id)),
			slog.String("command", command),
			slog.String("error", err.Error()))
	}
}

// enterRoom records the player's membership. The presence index is
// best-effort and never fails the command.
func (c *Controller) enterRoom(ctx context.Context, player model.PlayerRef, room *model.Room) {
	c.savePresence(ctx, &model.Presence{
		Player: player,
		InRoom: &model.RoomMembership{RoomID: room.ID, RoomName: room.Name, JoinedAt: c.clock.Now()},
	})
}

func (c *Controller) exitRoom(ctx context.Context, player model.PlayerRef) {
	c.savePresence(ctx, &model.Presence{Player: player})
}

func (c *Controller) savePresence(ctx context.Context, presence *model.Presence) {
	if err := c.storage.SavePresence(ctx, presence); err != nil {
		c.logger.Warn("failed to update presence",
			slog.String("player_id", string(presence.Player.ID)),
			slog.String("error", err.Error()))
	}
}
