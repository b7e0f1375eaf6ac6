package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Rooms are copied on the way in and out so callers never share state.
type Storage struct {
	mu sync.RWMutex

	players           map[model.PlayerID]*model.Player
	registeredPlayers map[model.PlayerID]*model.RegisteredPlayer
	usernameIndex     map[string]model.PlayerID
	presence          map[model.PlayerID]*model.Presence
	rooms             map[model.RoomID]*model.Room

	clock  clock.Clock
	fanout *storage.Fanout
}

// New creates a new in-memory storage instance on the system clock
func New() *Storage {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new in-memory storage instance. Room events are
// stamped with clk.
func NewWithClock(clk clock.Clock) *Storage {
	return &Storage{
		players:           make(map[model.PlayerID]*model.Player),
		registeredPlayers: make(map[model.PlayerID]*model.RegisteredPlayer),
		usernameIndex:     make(map[string]model.PlayerID),
		presence:          make(map[model.PlayerID]*model.Presence),
		rooms:             make(map[model.RoomID]*model.Room),
		clock:             clk,
		fanout:            storage.NewFanout(),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *player
	s.players[player.ID] = &p
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	p := *player
	return &p, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *rp
	s.registeredPlayers[rp.PlayerID] = &r
	s.usernameIndex[rp.Username] = rp.PlayerID
	return nil
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.registeredPlayers[playerID]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	r := *rp
	return &r, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	s.mu.RLock()
	playerID, ok := s.usernameIndex[username]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return s.GetRegisteredPlayer(ctx, playerID)
}

// Presence operations

func (s *Storage) SavePresence(ctx context.Context, presence *model.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[presence.Player.ID] = clonePresence(presence)
	return nil
}

func (s *Storage) GetPresence(ctx context.Context, playerID model.PlayerID) (*model.Presence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[playerID]
	if !ok {
		return nil, model.ErrPresenceNotFound
	}
	return clonePresence(p), nil
}

func clonePresence(p *model.Presence) *model.Presence {
	c := *p
	if p.InRoom != nil {
		in := *p.InRoom
		c.InRoom = &in
	}
	return &c
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error) {
	s.mu.Lock()
	if room.ID == "" {
		room.ID = model.RoomID(uuid.NewString())
	}
	if _, ok := s.rooms[room.ID]; ok {
		s.mu.Unlock()
		return "", model.ErrRoomExists
	}
	room.Version = 1
	stored := room.Clone()
	s.rooms[room.ID] = stored
	s.mu.Unlock()

	s.fanout.Publish(model.RoomUpdated(stored.Clone(), s.clock.Now()))
	return room.ID, nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room.Clone(), nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rooms := make([]*model.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room.Clone())
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// UpdateRoom holds the write lock across read, mutate and commit, which
// makes every update conditional by construction
func (s *Storage) UpdateRoom(ctx context.Context, id model.RoomID, fn storage.RoomMutator) (*model.Room, error) {
	s.mu.Lock()
	current, ok := s.rooms[id]
	if !ok {
		s.mu.Unlock()
		return nil, model.ErrRoomNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	working.ID = id
	working.Version = current.Version + 1
	s.rooms[id] = working
	result := working.Clone()
	s.mu.Unlock()

	s.fanout.Publish(model.RoomUpdated(working.Clone(), s.clock.Now()))
	return result, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	if _, ok := s.rooms[id]; !ok {
		s.mu.Unlock()
		return model.ErrRoomNotFound
	}
	delete(s.rooms, id)
	s.mu.Unlock()

	s.fanout.Publish(model.RoomDeleted(id, s.clock.Now()))
	return nil
}

func (s *Storage) SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error) {
	return s.fanout.Subscribe(ctx, id, func() (model.RoomEvent, error) {
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrRoomNotFound) {
				return model.RoomDeleted(id, s.clock.Now()), nil
			}
			return model.RoomEvent{}, err
		}
		return model.RoomUpdated(room, s.clock.Now()), nil
	})
}
