package client

import (
	"context"

	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
)

// NextTurn banks the local clock and passes the turn on
func (s *Session) NextTurn(ctx context.Context) error {
	snap, err := s.gateTurn(true)
	if err != nil {
		return err
	}
	return s.result(s.commands.EndTurn(ctx, s.roomID, snap.Current))
}

// PreviousTurn hands the clock back to the previous player
func (s *Session) PreviousTurn(ctx context.Context) error {
	if _, err := s.gateTurn(true); err != nil {
		return err
	}
	return s.result(s.commands.PreviousTurn(ctx, s.roomID))
}

// TogglePause saves the local clock and pauses or resumes the room
func (s *Session) TogglePause(ctx context.Context) error {
	snap, err := s.gateTurn(false)
	if err != nil {
		return err
	}
	return s.result(s.commands.StopOrStartTimer(ctx, s.roomID, snap.Current))
}

// ResetTime restores the player's bank and passes the turn on
func (s *Session) ResetTime(ctx context.Context) error {
	if _, err := s.gateTurn(false); err != nil {
		return err
	}
	return s.result(s.commands.ResetTime(ctx, s.roomID))
}

// StartGame starts the clock. Only the admin may start, and only with at
// least two players seated.
func (s *Session) StartGame(ctx context.Context) error {
	room, me, err := s.known()
	if err != nil {
		return err
	}
	if !room.IsAdmin(me.ID) {
		return model.ErrNotAdmin
	}
	if room.HasGameStarted {
		return model.ErrGameStarted
	}
	if room.Players.Len() < model.MinStartSize {
		return model.ErrInsufficientPlayers
	}
	return s.result(s.commands.StartGame(ctx, s.roomID))
}

// Leave gives up the player's seat. The admin leaving closes the room.
func (s *Session) Leave(ctx context.Context) error {
	room, me, err := s.known()
	if err != nil {
		return err
	}
	if room.IsAdmin(me.ID) {
		return s.Quit(ctx)
	}
	_, err = s.commands.LeaveRoom(ctx, s.roomID)
	return err
}

// Quit deletes the room for everyone
func (s *Session) Quit(ctx context.Context) error {
	if _, _, err := s.known(); err != nil {
		return err
	}
	if err := s.commands.DeleteRoom(ctx, s.roomID); err != nil {
		return err
	}
	s.markGone()
	return nil
}

func (s *Session) known() (*model.Room, model.PlayerRef, error) {
	room := s.Room()
	if room == nil || s.Gone() {
		return nil, model.PlayerRef{}, model.ErrRoomNotFound
	}
	me, err := identity.Require(s.identity)
	if err != nil {
		return nil, model.PlayerRef{}, err
	}
	return room, me, nil
}

// gateTurn checks that the player holds the clock of a running game
func (s *Session) gateTurn(refuseTimeUp bool) (snapshot, error) {
	room, me, err := s.known()
	if err != nil {
		return snapshot{}, err
	}
	if !room.HasGameStarted {
		return snapshot{}, model.ErrGameNotStarted
	}
	if room.PlayerTurn.ID != me.ID {
		return snapshot{}, model.ErrNotPlayerTurn
	}
	snap := snapshot{s.runner.Snapshot()}
	if refuseTimeUp && snap.timeUp() {
		return snapshot{}, model.ErrTimeUp
	}
	return snap, nil
}

// result applies the room a command returned so the local clock does not
// wait for the push
func (s *Session) result(room *model.Room, err error) error {
	if err != nil {
		return err
	}
	if room != nil {
		s.apply(room)
	}
	return nil
}
