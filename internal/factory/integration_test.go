package factory

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/turnclock/internal/client"
	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/testutil"
	"github.com/mcoot/turnclock/internal/web/sse"
)

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	ctx    context.Context
	cancel context.CancelFunc
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx, s.cancel = context.WithCancel(context.Background())
}

func (s *IntegrationSuite) TearDownTest() {
	s.cancel()
	s.app.Close(testutil.NopLogger())
}

func (s *IntegrationSuite) createPlayer(name string) model.PlayerRef {
	session, err := s.app.AuthService.CreateGuestPlayer(s.ctx, name)
	s.Require().NoError(err)
	return session.Player.Ref()
}

func (s *IntegrationSuite) session(who model.PlayerRef, id model.RoomID) *client.Session {
	provider := identity.NewStatic(who)
	sess := client.NewSession(id, client.NewLocal(s.app.RoomController, provider), s.app.Storage, provider, s.app.MockClock, testutil.NopLogger())
	go func() { _ = sess.Run(s.ctx) }()
	s.Require().Eventually(func() bool { return sess.Room() != nil }, 2*time.Second, 5*time.Millisecond)
	return sess
}

// Test: Complete game flow from room creation to deletion
func (s *IntegrationSuite) TestCompleteGameFlow() {
	s.app.MockRandom.QueueID("room-1")

	// Step 1: Create a room and seat a second player
	host := s.createPlayer("Host")
	guest := s.createPlayer("Guest")

	rm, err := s.app.RoomController.CreateRoom(s.ctx, host, model.RoomConfig{Minutes: 10, Buffer: 20, Increment: 15})
	s.Require().NoError(err)
	s.Equal(model.RoomID("room-1"), rm.ID)

	_, err = s.app.RoomController.JoinRoom(s.ctx, rm.ID, guest)
	s.Require().NoError(err)

	// Step 2: Both players follow the room
	hostSession := s.session(host, rm.ID)
	guestSession := s.session(guest, rm.ID)

	// Step 3: Host starts, ends a turn, guest pauses
	s.Require().Eventually(func() bool { return hostSession.Room().Players.Len() == 2 }, 2*time.Second, 5*time.Millisecond)
	s.Require().NoError(hostSession.StartGame(s.ctx))
	s.Require().NoError(hostSession.NextTurn(s.ctx))

	s.Require().Eventually(func() bool { return guestSession.View().IsMyTurn }, 2*time.Second, 5*time.Millisecond)
	s.Require().NoError(guestSession.TogglePause(s.ctx))

	stored, err := s.app.RoomController.GetRoom(s.ctx, rm.ID)
	s.Require().NoError(err)
	s.Equal(615, stored.Players.Get(host.ID).Seconds)
	s.Equal(guest, stored.PlayerTurn)
	s.True(stored.IsPaused)

	// Step 4: Every command was published in order
	s.Equal([]string{"CreateRoom", "JoinRoom", "StartGame", "EndTurn", "StopTime"}, s.app.MockPublisher.Commands())

	// Step 5: Host quits and the guest is told
	s.Require().NoError(hostSession.Quit(s.ctx))
	s.Require().Eventually(guestSession.Gone, 2*time.Second, 5*time.Millisecond)

	presence, err := s.app.RoomController.GetPresence(s.ctx, guest.ID)
	s.Require().NoError(err)
	s.Nil(presence.InRoom)
}

// Test: Room changes reach SSE clients through the hub manager
func (s *IntegrationSuite) TestHubRelaysRoomChanges() {
	host := s.createPlayer("Host")
	rm, err := s.app.RoomController.CreateRoom(s.ctx, host, model.DefaultRoomConfig())
	s.Require().NoError(err)

	hub, err := s.app.HubManager.Acquire(rm.ID)
	s.Require().NoError(err)
	defer s.app.HubManager.Release(rm.ID)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sse.ServeSSE(w, r, hub, host.ID)
	}))
	defer ts.Close()

	req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, ts.URL, nil)
	s.Require().NoError(err)
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer func() { _ = resp.Body.Close() }()

	_, err = s.app.RoomController.StartGame(s.ctx, rm.ID, host)
	s.Require().NoError(err)

	found := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if strings.Contains(scanner.Text(), `"has_game_started":true`) {
				close(found)
				return
			}
		}
	}()

	select {
	case <-found:
	case <-time.After(2 * time.Second):
		s.FailNow("room update not streamed")
	}
}

// Test: Players leaving keeps the room until the host leaves
func (s *IntegrationSuite) TestHostLeavingDeletesRoom() {
	host := s.createPlayer("Host")
	guest := s.createPlayer("Guest")

	rm, err := s.app.RoomController.CreateRoom(s.ctx, host, model.DefaultRoomConfig())
	s.Require().NoError(err)
	_, err = s.app.RoomController.JoinRoom(s.ctx, rm.ID, guest)
	s.Require().NoError(err)
	_, err = s.app.RoomController.StartGame(s.ctx, rm.ID, host)
	s.Require().NoError(err)

	left, err := s.app.RoomController.LeaveRoom(s.ctx, rm.ID, guest)
	s.Require().NoError(err)
	s.Require().NotNil(left)
	s.Equal(host.ID, left.PlayerTurn.ID)

	left, err = s.app.RoomController.LeaveRoom(s.ctx, rm.ID, host)
	s.Require().NoError(err)
	s.Nil(left)

	_, err = s.app.RoomController.GetRoom(s.ctx, rm.ID)
	s.ErrorIs(err, model.ErrRoomNotFound)
}
