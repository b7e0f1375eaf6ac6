package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnclock/internal/dependencies/mocks"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage/memory"
	"github.com/mcoot/turnclock/internal/testutil"
)

var (
	alice = model.PlayerRef{ID: "player-a", Name: "Alice"}
	bob   = model.PlayerRef{ID: "player-b", Name: "Bob"}
	carol = model.PlayerRef{ID: "player-c", Name: "Carol"}
)

type ControllerSuite struct {
	suite.Suite
	storage    *memory.Storage
	clock      *mocks.MockClock
	random     *mocks.MockRandom
	publisher  *mocks.MockPublisher
	logs       *testutil.LogBuffer
	controller *Controller
	ctx        context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.publisher = mocks.NewMockPublisher()

	logger, logs := testutil.CaptureLogger()
	s.logs = logs
	s.controller = NewController(s.storage, s.publisher, s.clock, s.random, logger)
	s.ctx = context.Background()
}

// Helper to create a room with the given config and seat the other players
func (s *ControllerSuite) createRoom(cfg model.RoomConfig, others ...model.PlayerRef) *model.Room {
	s.random.QueueID("room-1")
	room, err := s.controller.CreateRoom(s.ctx, alice, cfg)
	s.Require().NoError(err)

	for _, p := range others {
		room, err = s.controller.JoinRoom(s.ctx, room.ID, p)
		s.Require().NoError(err)
	}
	return room
}

func (s *ControllerSuite) startedRoom(others ...model.PlayerRef) *model.Room {
	room := s.createRoom(model.RoomConfig{Minutes: 10, Buffer: 20, Increment: 15}, others...)
	room, err := s.controller.StartGame(s.ctx, room.ID, alice)
	s.Require().NoError(err)
	return room
}

// CreateRoom tests

func (s *ControllerSuite) TestCreateRoomSeatsAdmin() {
	s.random.QueueID("room-1")
	s.random.QueueIntn(2, 3)

	room, err := s.controller.CreateRoom(s.ctx, alice, model.RoomConfig{Minutes: 10, Buffer: 20, Increment: 15})
	s.Require().NoError(err)

	s.Equal(model.RoomID("room-1"), room.ID)
	s.Equal("Crimson Comet", room.Name)
	s.Equal(alice, room.Admin)
	s.Equal(alice, room.PlayerTurn)
	s.Equal(model.TurnOrder{{ID: alice.ID, Name: alice.Name, Seconds: 600}}, room.Players)
	s.Equal(600, room.Seconds)
	s.Equal(20, room.Buffer)
	s.Equal(15, room.Increment)
	s.False(room.HasGameStarted)
	s.False(room.IsPaused)
	s.Empty(room.Operations)
	s.Equal(int64(1), room.Version)
}

func (s *ControllerSuite) TestCreateRoomRequiresIdentity() {
	_, err := s.controller.CreateRoom(s.ctx, model.PlayerRef{}, model.DefaultRoomConfig())
	s.ErrorIs(err, model.ErrIdentityRequired)
	s.Contains(s.logs.String(), "room command rejected")
}

func (s *ControllerSuite) TestCreateRoomValidatesConfig() {
	_, err := s.controller.CreateRoom(s.ctx, alice, model.RoomConfig{Minutes: 41})
	s.ErrorIs(err, model.ErrInvalidConfig)

	rooms, err := s.controller.ListRooms(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *ControllerSuite) TestCreateRoomRecordsPresence() {
	room := s.createRoom(model.DefaultRoomConfig())

	presence, err := s.controller.GetPresence(s.ctx, alice.ID)
	s.Require().NoError(err)
	s.Require().NotNil(presence.InRoom)
	s.Equal(room.ID, presence.InRoom.RoomID)
	s.Equal(room.Name, presence.InRoom.RoomName)
}

func (s *ControllerSuite) TestPresenceOfNewPlayerIsEmpty() {
	presence, err := s.controller.GetPresence(s.ctx, bob.ID)
	s.Require().NoError(err)
	s.Equal(bob.ID, presence.Player.ID)
	s.Nil(presence.InRoom)
}

// JoinRoom tests

func (s *ControllerSuite) TestJoinRoomAppendsWithRoomSeconds() {
	room := s.createRoom(model.RoomConfig{Minutes: 5, Buffer: 0, Increment: 0}, bob)

	s.Require().Len(room.Players, 2)
	s.Equal(model.RoomPlayer{ID: bob.ID, Name: bob.Name, Seconds: 300}, room.Players[1])
}

func (s *ControllerSuite) TestJoinRoomTwiceIsRejected() {
	room := s.createRoom(model.DefaultRoomConfig(), bob)

	_, err := s.controller.JoinRoom(s.ctx, room.ID, bob)
	s.ErrorIs(err, model.ErrAlreadyInRoom)

	stored, err := s.controller.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Len(stored.Players, 2)
	s.Equal(room.Version, stored.Version)
}

func (s *ControllerSuite) TestJoinRoomAfterStartIsRejected() {
	room := s.startedRoom(bob)

	_, err := s.controller.JoinRoom(s.ctx, room.ID, carol)
	s.ErrorIs(err, model.ErrGameStarted)
}

func (s *ControllerSuite) TestJoinRoomMissing() {
	_, err := s.controller.JoinRoom(s.ctx, "nope", bob)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestJoinRoomFull() {
	room := s.createRoom(model.DefaultRoomConfig())
	for i := 1; i < model.MaxRoomSize; i++ {
		p := model.PlayerRef{ID: model.PlayerID("p" + string(rune('a'+i))), Name: "P"}
		_, err := s.controller.JoinRoom(s.ctx, room.ID, p)
		s.Require().NoError(err)
	}

	_, err := s.controller.JoinRoom(s.ctx, room.ID, carol)
	s.ErrorIs(err, model.ErrRoomFull)
}

// LeaveRoom tests

func (s *ControllerSuite) TestLeaveRoomRemovesPlayer() {
	room := s.createRoom(model.DefaultRoomConfig(), bob, carol)

	room, err := s.controller.LeaveRoom(s.ctx, room.ID, bob)
	s.Require().NoError(err)
	s.False(room.Players.Contains(bob.ID))
	s.Len(room.Players, 2)

	presence, err := s.controller.GetPresence(s.ctx, bob.ID)
	s.Require().NoError(err)
	s.Nil(presence.InRoom)
}

func (s *ControllerSuite) TestLeaveRoomNotMember() {
	room := s.createRoom(model.DefaultRoomConfig())

	_, err := s.controller.LeaveRoom(s.ctx, room.ID, bob)
	s.ErrorIs(err, model.ErrNotInRoom)
}

func (s *ControllerSuite) TestLeaveRoomByTurnHolderPassesTurn() {
	room := s.startedRoom(bob, carol)
	room, err := s.controller.EndTurn(s.ctx, room.ID, alice, 100)
	s.Require().NoError(err)
	s.Equal(bob.ID, room.PlayerTurn.ID)

	room, err = s.controller.LeaveRoom(s.ctx, room.ID, bob)
	s.Require().NoError(err)
	s.Equal(carol.ID, room.PlayerTurn.ID)
	s.Require().Len(room.Players, 2)
	s.Equal(alice.ID, room.Players[0].ID)
	s.Equal(carol.ID, room.Players[1].ID)
}

func (s *ControllerSuite) TestLeaveRoomByAdminDeletesRoom() {
	room := s.startedRoom(bob, carol)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.storage.SubscribeRoom(ctx, room.ID)
	s.Require().NoError(err)
	<-ch // initial state

	left, err := s.controller.LeaveRoom(s.ctx, room.ID, alice)
	s.Require().NoError(err)
	s.Nil(left)

	_, err = s.controller.GetRoom(s.ctx, room.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)

	ev := <-ch
	s.Equal(model.RoomEventDeleted, ev.Kind)

	for _, p := range []model.PlayerRef{alice, bob, carol} {
		presence, err := s.controller.GetPresence(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Nil(presence.InRoom, "presence of %s", p.ID)
	}
}

func (s *ControllerSuite) TestLeaveRoomLastPlayerDeletesRoom() {
	room := s.createRoom(model.DefaultRoomConfig())

	left, err := s.controller.LeaveRoom(s.ctx, room.ID, alice)
	s.Require().NoError(err)
	s.Nil(left)

	_, err = s.controller.GetRoom(s.ctx, room.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// DeleteRoom tests

func (s *ControllerSuite) TestDeleteRoomNotifiesSubscribers() {
	room := s.createRoom(model.DefaultRoomConfig(), bob)

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	ch, err := s.storage.SubscribeRoom(ctx, room.ID)
	s.Require().NoError(err)
	<-ch // initial state

	s.Require().NoError(s.controller.DeleteRoom(s.ctx, room.ID, alice))

	select {
	case ev := <-ch:
		s.Equal(model.RoomEventDeleted, ev.Kind)
	case <-time.After(2 * time.Second):
		s.FailNow("no deletion event")
	}

	presence, err := s.controller.GetPresence(s.ctx, bob.ID)
	s.Require().NoError(err)
	s.Nil(presence.InRoom)
}

func (s *ControllerSuite) TestDeleteRoomMissing() {
	err := s.controller.DeleteRoom(s.ctx, "nope", alice)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// StartGame tests

func (s *ControllerSuite) TestStartGameLogsOperation() {
	room := s.startedRoom(bob)

	s.True(room.HasGameStarted)
	s.Require().Len(room.Operations, 1)
	s.Equal(model.CommandStartGame, room.Operations[0].Command)
	s.Equal(alice, room.Operations[0].SentBy)
	s.Equal(s.clock.Now(), room.Operations[0].At)
}

func (s *ControllerSuite) TestStartGameTwiceIsRejected() {
	room := s.startedRoom(bob)

	_, err := s.controller.StartGame(s.ctx, room.ID, alice)
	s.ErrorIs(err, model.ErrGameStarted)

	stored, _ := s.controller.GetRoom(s.ctx, room.ID)
	s.Len(stored.Operations, 1)
}

// Turn command tests

func (s *ControllerSuite) TestEndTurnAndPauseScenario() {
	room := s.startedRoom(bob)

	room, err := s.controller.EndTurn(s.ctx, room.ID, alice, 580)
	s.Require().NoError(err)
	s.Equal(595, room.Players[0].Seconds)
	s.Equal(bob, room.PlayerTurn)
	s.Equal(model.CommandEndTurn, room.Operations[0].Command)

	room, err = s.controller.StopOrStartTimer(s.ctx, room.ID, bob, 600)
	s.Require().NoError(err)
	s.Equal(600, room.Players[1].Seconds)
	s.True(room.IsPaused)
	s.Equal(model.CommandStopTime, room.Operations[0].Command)

	room, err = s.controller.StopOrStartTimer(s.ctx, room.ID, bob, 600)
	s.Require().NoError(err)
	s.False(room.IsPaused)
	s.Len(room.Operations, 4)
}

func (s *ControllerSuite) TestEndTurnWrapsAround() {
	room := s.startedRoom(bob, carol)

	var err error
	order := []model.PlayerID{bob.ID, carol.ID, alice.ID, bob.ID}
	for _, want := range order {
		room, err = s.controller.EndTurn(s.ctx, room.ID, room.PlayerTurn, 100)
		s.Require().NoError(err)
		s.Equal(want, room.PlayerTurn.ID)
	}
}

func (s *ControllerSuite) TestPreviousTurnWrapsAndKeepsSeconds() {
	room := s.startedRoom(bob, carol)
	before := room.Players.Clone()

	room, err := s.controller.PreviousTurn(s.ctx, room.ID, alice)
	s.Require().NoError(err)
	s.Equal(carol.ID, room.PlayerTurn.ID)
	s.Equal(before, room.Players)

	room, err = s.controller.PreviousTurn(s.ctx, room.ID, carol)
	s.Require().NoError(err)
	s.Equal(bob.ID, room.PlayerTurn.ID)
}

func (s *ControllerSuite) TestPreviousUndoesEndTurnHolder() {
	room := s.startedRoom(bob, carol)

	room, err := s.controller.EndTurn(s.ctx, room.ID, alice, 500)
	s.Require().NoError(err)
	room, err = s.controller.PreviousTurn(s.ctx, room.ID, bob)
	s.Require().NoError(err)
	s.Equal(alice.ID, room.PlayerTurn.ID)
}

func (s *ControllerSuite) TestResetTimeTargetsCurrentPlayer() {
	room := s.startedRoom(bob)

	room, err := s.controller.EndTurn(s.ctx, room.ID, alice, 100)
	s.Require().NoError(err)
	s.Equal(115, room.Players[0].Seconds)

	room, err = s.controller.EndTurn(s.ctx, room.ID, bob, 50)
	s.Require().NoError(err)
	s.Equal(alice.ID, room.PlayerTurn.ID)

	room, err = s.controller.ResetTime(s.ctx, room.ID, alice)
	s.Require().NoError(err)
	s.Equal(600, room.Players[0].Seconds)
	s.Equal(65, room.Players[1].Seconds)
	s.Equal(bob.ID, room.PlayerTurn.ID)
	s.Equal(model.CommandResetTime, room.Operations[0].Command)
}

func (s *ControllerSuite) TestTurnCommandsRequireStartedGame() {
	room := s.createRoom(model.DefaultRoomConfig(), bob)

	_, err := s.controller.EndTurn(s.ctx, room.ID, alice, 100)
	s.ErrorIs(err, model.ErrGameNotStarted)
	_, err = s.controller.StopOrStartTimer(s.ctx, room.ID, alice, 100)
	s.ErrorIs(err, model.ErrGameNotStarted)
	_, err = s.controller.ResetTime(s.ctx, room.ID, alice)
	s.ErrorIs(err, model.ErrGameNotStarted)
	_, err = s.controller.PreviousTurn(s.ctx, room.ID, alice)
	s.ErrorIs(err, model.ErrGameNotStarted)

	stored, _ := s.controller.GetRoom(s.ctx, room.ID)
	s.Equal(room.Version, stored.Version)
	s.Contains(s.logs.String(), `"error":"game has not started"`)
}

func (s *ControllerSuite) TestTurnCommandsOnMissingRoom() {
	_, err := s.controller.EndTurn(s.ctx, "nope", alice, 1)
	s.ErrorIs(err, model.ErrRoomNotFound)
	_, err = s.controller.PreviousTurn(s.ctx, "nope", alice)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *ControllerSuite) TestEndTurnRejectsNegativeSeconds() {
	room := s.startedRoom(bob)

	_, err := s.controller.EndTurn(s.ctx, room.ID, alice, -1)
	s.ErrorIs(err, model.ErrInvalidSeconds)
}

func (s *ControllerSuite) TestSetTimeAdminOnly() {
	room := s.startedRoom(bob)

	_, err := s.controller.SetTime(s.ctx, room.ID, bob, alice.ID, 10)
	s.ErrorIs(err, model.ErrNotAdmin)

	_, err = s.controller.SetTime(s.ctx, room.ID, alice, carol.ID, 10)
	s.ErrorIs(err, model.ErrNotInRoom)

	room, err = s.controller.SetTime(s.ctx, room.ID, alice, bob.ID, 42)
	s.Require().NoError(err)
	s.Equal(42, room.Players[1].Seconds)
	s.Equal(model.CommandSetTime, room.Operations[0].Command)
}

// Concurrency and events

func (s *ControllerSuite) TestConcurrentEndTurnsAreNotLost() {
	room := s.startedRoom(bob)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.controller.EndTurn(s.ctx, room.ID, alice, 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(errors.Is(err, model.ErrVersionConflict), "unexpected error: %v", err)
	}

	stored, err := s.controller.GetRoom(s.ctx, room.ID)
	s.Require().NoError(err)
	s.Equal(1+succeeded, stored.TurnSerial())
}

func (s *ControllerSuite) TestCommandsArePublished() {
	room := s.startedRoom(bob)
	_, err := s.controller.EndTurn(s.ctx, room.ID, alice, 100)
	s.Require().NoError(err)

	s.Equal([]string{"CreateRoom", "JoinRoom", "StartGame", "EndTurn"}, s.publisher.Commands())

	evs := s.publisher.Events()
	last := evs[len(evs)-1]
	s.Equal(room.ID, last.RoomID)
	s.Equal(alice, last.SentBy)
	s.Equal(int64(4), last.Version)
}

func (s *ControllerSuite) TestPublishFailureDoesNotFailCommand() {
	s.publisher.Err = errors.New("broker down")
	room := s.createRoom(model.DefaultRoomConfig())

	s.NotEmpty(room.ID)
	s.Contains(s.logs.String(), "failed to publish room event")
}

func (s *ControllerSuite) TestRejectedCommandsAreNotPublished() {
	room := s.createRoom(model.DefaultRoomConfig())
	_, _ = s.controller.EndTurn(s.ctx, room.ID, alice, 1)

	s.Equal([]string{"CreateRoom"}, s.publisher.Commands())
}
