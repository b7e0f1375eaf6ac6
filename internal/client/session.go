package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/turnclock/internal/countdown"
	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
)

// Signal tells the caller that the player should be moved elsewhere
type Signal string

const (
	// SignalRoomGone is raised when the room was deleted or never existed
	SignalRoomGone Signal = "room_gone"
	// SignalNotMember is raised when the player is not seated in the room
	SignalNotMember Signal = "not_member"
	// SignalGameStarted is raised the first time a StartGame is seen
	SignalGameStarted Signal = "game_started"
)

const signalBuffer = 8

// Session follows one room for one player
type Session struct {
	roomID   model.RoomID
	commands RoomCommands
	feed     RoomFeed
	identity identity.Provider
	runner   *countdown.Runner
	logger   *slog.Logger

	// applyMu serializes reconciliation so the clock follows room order
	applyMu sync.Mutex

	mu          sync.Mutex
	room        *model.Room
	gone        bool
	startedSeen bool
	notMember   bool

	signals chan Signal
}

// NewSession creates a session for the room. Run must be called to start
// following it.
func NewSession(
	roomID model.RoomID,
	commands RoomCommands,
	feed RoomFeed,
	provider identity.Provider,
	clk clock.Ticking,
	logger *slog.Logger,
) *Session {
	return &Session{
		roomID:   roomID,
		commands: commands,
		feed:     feed,
		identity: provider,
		runner:   countdown.NewRunner(clk),
		logger:   logger.With(slog.String("component", "session"), slog.String("room_id", string(roomID))),
		signals:  make(chan Signal, signalBuffer),
	}
}

// Run follows the room until ctx is done or the room is gone. The local
// clock stops when Run returns.
func (s *Session) Run(ctx context.Context) error {
	defer s.runner.Close()

	events, err := s.feed.SubscribeRoom(ctx, s.roomID)
	if err != nil {
		return fmt.Errorf("subscribe room: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("room feed closed")
			}
			s.handle(ev)
			if s.Gone() {
				return nil
			}
		}
	}
}

func (s *Session) handle(ev model.RoomEvent) {
	if ev.Kind == model.RoomEventDeleted || ev.Room == nil {
		s.markGone()
		return
	}
	s.apply(ev.Room)
}

func (s *Session) markGone() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.gone {
		s.mu.Unlock()
		return
	}
	s.gone = true
	s.mu.Unlock()

	s.runner.SetAdvancing(false)
	s.logger.Info("room gone")
	s.emit(SignalRoomGone)
}

// apply reconciles the local clock with an authoritative room. Rooms older
// than the one already applied are ignored.
func (s *Session) apply(room *model.Room) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.gone || (s.room != nil && room.Version < s.room.Version) {
		s.mu.Unlock()
		return
	}
	s.room = room.Clone()

	var raise []Signal
	if room.HasOperation(model.CommandStartGame) && !s.startedSeen {
		s.startedSeen = true
		raise = append(raise, SignalGameStarted)
	}
	if me, ok := s.identity.CurrentUser(); ok {
		member := room.Players.Contains(me.ID)
		if !member && !s.notMember {
			raise = append(raise, SignalNotMember)
		}
		s.notMember = !member
	}
	s.mu.Unlock()

	if current := room.CurrentPlayer(); current != nil {
		s.runner.Reseed(turnKey(room, current), room.Buffer, current.Seconds)
		s.runner.SetAdvancing(room.HasGameStarted && !room.IsPaused)
	} else {
		s.runner.SetAdvancing(false)
	}

	for _, sig := range raise {
		s.emit(sig)
	}
}

// turnKey identifies one turn. The serial changes on every turn-moving
// command, so a player getting the clock back starts a fresh turn.
func turnKey(room *model.Room, current *model.RoomPlayer) string {
	return fmt.Sprintf("%s#%d", current.ID, room.TurnSerial())
}

func (s *Session) emit(sig Signal) {
	select {
	case s.signals <- sig:
	default:
		s.logger.Warn("signal dropped", slog.String("signal", string(sig)))
	}
}

// Signals delivers navigation signals
func (s *Session) Signals() <-chan Signal {
	return s.signals
}

// Updates delivers local clock snapshots
func (s *Session) Updates() <-chan countdown.Snapshot {
	return s.runner.Updates()
}

// Room returns a copy of the latest applied room, or nil
func (s *Session) Room() *model.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return nil
	}
	return s.room.Clone()
}

// Gone reports whether the room has been deleted
func (s *Session) Gone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gone
}

// Clock returns the local countdown
func (s *Session) Clock() countdown.Snapshot {
	return s.runner.Snapshot()
}

// View derives display values from the latest room and local clock
func (s *Session) View() View {
	me, _ := s.identity.CurrentUser()
	return NewView(s.Room(), s.runner.Snapshot(), me.ID)
}
