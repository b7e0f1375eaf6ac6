package cli

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnclock/internal/api"
	"github.com/mcoot/turnclock/internal/api/request"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/client"
	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/factory"
	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/testutil"
)

func TestReadSSE(t *testing.T) {
	stream := "retry: 3000\n\n" +
		"event: connected\ndata: {}\n\n" +
		": keepalive\n\n" +
		"event: room-updated\ndata: line one\ndata: line two\n\n" +
		"event: room-deleted\ndata: {}\n\n" +
		"event: never\ndata: {}\n\n"

	var names, data []string
	err := readSSE(strings.NewReader(stream), func(name, d string) bool {
		names = append(names, name)
		data = append(data, d)
		return name != "room-deleted"
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"connected", "room-updated", "room-deleted"}, names)
	assert.Equal(t, "line one\nline two", data[1])
}

type RemoteSuite struct {
	suite.Suite
	app    *factory.TestApp
	server *httptest.Server
}

func TestRemoteSuite(t *testing.T) {
	suite.Run(t, new(RemoteSuite))
}

func (s *RemoteSuite) SetupTest() {
	s.app = factory.NewTestApp()
	s.server = httptest.NewServer(api.NewRouter(api.RouterConfig{
		Logger:         testutil.NopLogger(),
		AuthService:    s.app.AuthService,
		RoomController: s.app.RoomController,
		HubManager:     s.app.HubManager,
		SocketServer:   s.app.SocketServer,
	}))
}

func (s *RemoteSuite) TearDownTest() {
	s.app.HubManager.Close()
	s.server.Close()
}

// remoteAs creates a guest and returns a RemoteRoom acting as them
func (s *RemoteSuite) remoteAs(name string) *RemoteRoom {
	ctx := context.Background()
	c := NewClient(s.server.URL, "")

	var auth response.AuthResponse
	s.Require().NoError(c.Post(ctx, "/api/v1/players/guest", request.CreateGuestRequest{DisplayName: name}, &auth))
	c.SetToken(auth.SessionToken)

	return NewRemoteRoom(c, &Config{ServerURL: s.server.URL, Token: auth.SessionToken})
}

func (s *RemoteSuite) createRoom(admin *RemoteRoom) model.RoomID {
	var room response.Room
	s.Require().NoError(admin.api.Post(context.Background(), "/api/v1/rooms", request.CreateRoomRequest{}, &room))
	return model.RoomID(room.ID)
}

func (s *RemoteSuite) TestCommandsRoundTrip() {
	ctx := context.Background()
	alice := s.remoteAs("Alice")
	bob := s.remoteAs("Bob")
	id := s.createRoom(alice)

	var joined response.Room
	s.Require().NoError(bob.api.Post(ctx, roomPath(id, "join"), nil, &joined))

	room, err := alice.StartGame(ctx, id)
	s.Require().NoError(err)
	s.True(room.HasGameStarted)

	room, err = alice.EndTurn(ctx, id, 500)
	s.Require().NoError(err)
	s.Equal(500+room.Increment, room.Players[0].Seconds)
	s.Equal(model.PlayerID(joined.Players[1].ID), room.PlayerTurn.ID)

	room, err = bob.StopOrStartTimer(ctx, id, 400)
	s.Require().NoError(err)
	s.True(room.IsPaused)

	room, err = bob.PreviousTurn(ctx, id)
	s.Require().NoError(err)
	s.Equal(room.Admin.ID, room.PlayerTurn.ID)

	room, err = alice.ResetTime(ctx, id)
	s.Require().NoError(err)
	s.Equal(room.Seconds, room.Players[0].Seconds)

	room, err = bob.LeaveRoom(ctx, id)
	s.Require().NoError(err)
	s.Equal(1, room.Players.Len())

	s.Require().NoError(alice.DeleteRoom(ctx, id))
}

func (s *RemoteSuite) TestErrorsMatchRoomErrors() {
	ctx := context.Background()
	alice := s.remoteAs("Alice")
	bob := s.remoteAs("Bob")
	id := s.createRoom(alice)

	_, err := alice.EndTurn(ctx, id, 10)
	s.ErrorIs(err, model.ErrGameNotStarted)

	_, err = bob.LeaveRoom(ctx, id)
	s.ErrorIs(err, model.ErrNotInRoom)

	_, err = alice.StartGame(ctx, "missing")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *RemoteSuite) TestSubscribeRoomFollowsChanges() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.remoteAs("Alice")
	bob := s.remoteAs("Bob")
	id := s.createRoom(alice)

	events, err := alice.SubscribeRoom(ctx, id)
	s.Require().NoError(err)

	first := s.next(events)
	s.Equal(model.RoomEventUpdated, first.Kind)
	s.Require().NotNil(first.Room)
	s.Equal(1, first.Room.Players.Len())

	var joined response.Room
	s.Require().NoError(bob.api.Post(ctx, roomPath(id, "join"), nil, &joined))

	ev := s.next(events)
	s.Require().NotNil(ev.Room)
	s.Equal(2, ev.Room.Players.Len())

	s.Require().NoError(alice.DeleteRoom(ctx, id))
	s.Equal(model.RoomEventDeleted, s.next(events).Kind)

	_, open := <-events
	s.False(open)
}

func (s *RemoteSuite) TestSubscribeMissingRoomReportsDeleted() {
	alice := s.remoteAs("Alice")

	events, err := alice.SubscribeRoom(context.Background(), "missing")
	s.Require().NoError(err)

	ev := s.next(events)
	s.Equal(model.RoomEventDeleted, ev.Kind)
	s.Equal(model.RoomID("missing"), ev.RoomID)

	_, open := <-events
	s.False(open)
}

func (s *RemoteSuite) TestSessionOnMissingRoomSignalsGone() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := s.remoteAs("Alice")
	session := client.NewSession("missing", alice, alice,
		identity.NewStatic(model.PlayerRef{ID: "player-a", Name: "Alice"}),
		clock.New(), testutil.NopLogger())

	s.Require().NoError(session.Run(ctx))
	s.True(session.Gone())

	select {
	case sig := <-session.Signals():
		s.Equal(client.SignalRoomGone, sig)
	default:
		s.Fail("expected a room gone signal")
	}
}

func (s *RemoteSuite) next(events <-chan model.RoomEvent) model.RoomEvent {
	select {
	case ev, ok := <-events:
		s.Require().True(ok, "event stream closed")
		return ev
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for room event")
		return model.RoomEvent{}
	}
}
