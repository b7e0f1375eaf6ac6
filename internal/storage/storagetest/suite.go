// Package storagetest holds the behavioral test suite every storage backend
// must pass.
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage"
)

// eventTimeout bounds how long a test waits for a subscription event
const eventTimeout = 2 * time.Second

// Suite exercises a storage.Storage implementation
type Suite struct {
	suite.Suite

	// NewStorage returns a fresh, empty storage for each test
	NewStorage func(t *testing.T) storage.Storage

	Store storage.Storage
	Ctx   context.Context
}

func (s *Suite) SetupTest() {
	s.Store = s.NewStorage(s.T())
	s.Ctx = context.Background()
}

func (s *Suite) newRoom(id model.RoomID) *model.Room {
	admin := model.PlayerRef{ID: "admin", Name: "Admin"}
	return &model.Room{
		ID:         id,
		Name:       "Test Room",
		Admin:      admin,
		Players:    model.TurnOrder{{ID: admin.ID, Name: admin.Name, Seconds: 600}},
		PlayerTurn: admin,
		Operations: []model.Operation{},
		Seconds:    600,
		Buffer:     20,
		Increment:  5,
		CreatedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *Suite) nextEvent(ch <-chan model.RoomEvent) model.RoomEvent {
	s.T().Helper()
	select {
	case ev, ok := <-ch:
		s.Require().True(ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(eventTimeout):
		s.FailNow("timed out waiting for room event")
		return model.RoomEvent{}
	}
}

// Player tests

func (s *Suite) TestSaveAndGetPlayer() {
	player := &model.Player{ID: "player-1", DisplayName: "Alice", IsGuest: true}

	s.Require().NoError(s.Store.SavePlayer(s.Ctx, player))

	got, err := s.Store.GetPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("Alice", got.DisplayName)
	s.True(got.IsGuest)
}

func (s *Suite) TestGetPlayerNotFound() {
	_, err := s.Store.GetPlayer(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestRegisteredPlayerByUsername() {
	rp := &model.RegisteredPlayer{PlayerID: "player-1", Username: "alice", PasswordHash: "hash"}
	s.Require().NoError(s.Store.SaveRegisteredPlayer(s.Ctx, rp))

	got, err := s.Store.GetRegisteredPlayerByUsername(s.Ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), got.PlayerID)

	byID, err := s.Store.GetRegisteredPlayer(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("alice", byID.Username)

	_, err = s.Store.GetRegisteredPlayerByUsername(s.Ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Presence tests

func (s *Suite) TestSaveAndGetPresence() {
	presence := &model.Presence{
		Player: model.PlayerRef{ID: "player-1", Name: "Alice"},
		InRoom: &model.RoomMembership{RoomID: "room-1", RoomName: "Room", JoinedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	s.Require().NoError(s.Store.SavePresence(s.Ctx, presence))

	got, err := s.Store.GetPresence(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Require().NotNil(got.InRoom)
	s.Equal(model.RoomID("room-1"), got.InRoom.RoomID)

	presence.InRoom = nil
	s.Require().NoError(s.Store.SavePresence(s.Ctx, presence))

	got, err = s.Store.GetPresence(s.Ctx, "player-1")
	s.Require().NoError(err)
	s.Nil(got.InRoom)
}

func (s *Suite) TestGetPresenceNotFound() {
	_, err := s.Store.GetPresence(s.Ctx, "nobody")
	s.ErrorIs(err, model.ErrPresenceNotFound)
}

// Room tests

func (s *Suite) TestCreateRoomAssignsID() {
	room := s.newRoom("")

	id, err := s.Store.CreateRoom(s.Ctx, room)
	s.Require().NoError(err)
	s.NotEmpty(id)

	got, err := s.Store.GetRoom(s.Ctx, id)
	s.Require().NoError(err)
	s.Equal(id, got.ID)
	s.Equal(int64(1), got.Version)
	s.Equal("Test Room", got.Name)
	s.Len(got.Players, 1)
}

func (s *Suite) TestCreateRoomWithTakenID() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	_, err = s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.ErrorIs(err, model.ErrRoomExists)
}

func (s *Suite) TestGetRoomNotFound() {
	_, err := s.Store.GetRoom(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *Suite) TestListRooms() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)
	_, err = s.Store.CreateRoom(s.Ctx, s.newRoom("room-2"))
	s.Require().NoError(err)

	rooms, err := s.Store.ListRooms(s.Ctx)
	s.Require().NoError(err)
	s.Len(rooms, 2)
}

func (s *Suite) TestUpdateRoomBumpsVersion() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	updated, err := s.Store.UpdateRoom(s.Ctx, "room-1", func(room *model.Room) error {
		room.HasGameStarted = true
		return nil
	})
	s.Require().NoError(err)
	s.Equal(int64(2), updated.Version)
	s.True(updated.HasGameStarted)

	got, err := s.Store.GetRoom(s.Ctx, "room-1")
	s.Require().NoError(err)
	s.True(got.HasGameStarted)
	s.Equal(int64(2), got.Version)
}

func (s *Suite) TestUpdateRoomAbortsOnMutatorError() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	_, err = s.Store.UpdateRoom(s.Ctx, "room-1", func(room *model.Room) error {
		room.Name = "changed"
		return model.ErrGameNotStarted
	})
	s.ErrorIs(err, model.ErrGameNotStarted)

	got, err := s.Store.GetRoom(s.Ctx, "room-1")
	s.Require().NoError(err)
	s.Equal("Test Room", got.Name)
	s.Equal(int64(1), got.Version)
}

func (s *Suite) TestUpdateRoomNotFound() {
	_, err := s.Store.UpdateRoom(s.Ctx, "missing", func(room *model.Room) error { return nil })
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *Suite) TestConcurrentUpdatesAreNotLost() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Store.UpdateRoom(s.Ctx, "room-1", func(room *model.Room) error {
				room.Players[0].Seconds++
				return nil
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			s.ErrorIs(err, model.ErrVersionConflict)
		}()
	}
	wg.Wait()

	got, err := s.Store.GetRoom(s.Ctx, "room-1")
	s.Require().NoError(err)
	s.Positive(succeeded)
	s.Equal(600+succeeded, got.Players[0].Seconds)
	s.Equal(int64(1+succeeded), got.Version)
}

func (s *Suite) TestDeleteRoom() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	s.Require().NoError(s.Store.DeleteRoom(s.Ctx, "room-1"))

	_, err = s.Store.GetRoom(s.Ctx, "room-1")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *Suite) TestDeleteRoomNotFound() {
	err := s.Store.DeleteRoom(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

// Subscription tests

func (s *Suite) TestSubscribeDeliversCurrentStateThenChanges() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	events, err := s.Store.SubscribeRoom(ctx, "room-1")
	s.Require().NoError(err)

	initial := s.nextEvent(events)
	s.Equal(model.RoomEventUpdated, initial.Kind)
	s.Equal(int64(1), initial.Room.Version)

	_, err = s.Store.UpdateRoom(s.Ctx, "room-1", func(room *model.Room) error {
		room.IsPaused = true
		return nil
	})
	s.Require().NoError(err)

	update := s.nextEvent(events)
	s.Equal(model.RoomEventUpdated, update.Kind)
	s.True(update.Room.IsPaused)
	s.Equal(int64(2), update.Room.Version)

	s.Require().NoError(s.Store.DeleteRoom(s.Ctx, "room-1"))

	deleted := s.nextEvent(events)
	s.Equal(model.RoomEventDeleted, deleted.Kind)
	s.Equal(model.RoomID("room-1"), deleted.RoomID)
	s.Nil(deleted.Room)
}

func (s *Suite) TestSubscribeToMissingRoomReportsDeleted() {
	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	events, err := s.Store.SubscribeRoom(ctx, "missing")
	s.Require().NoError(err)

	ev := s.nextEvent(events)
	s.Equal(model.RoomEventDeleted, ev.Kind)
}

func (s *Suite) TestSubscriptionClosesOnCancel() {
	_, err := s.Store.CreateRoom(s.Ctx, s.newRoom("room-1"))
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.Ctx)
	events, err := s.Store.SubscribeRoom(ctx, "room-1")
	s.Require().NoError(err)
	_ = s.nextEvent(events)

	cancel()

	s.Eventually(func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, eventTimeout, 10*time.Millisecond)
}
