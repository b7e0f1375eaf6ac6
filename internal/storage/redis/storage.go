package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Room updates use WATCH/MULTI and changes are announced on a per-room
// Pub/Sub channel.
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
	clock  clock.Clock

	fanout *storage.Fanout

	mu     sync.Mutex
	relays map[model.RoomID]*relay
}

// relay forwards one room's Pub/Sub channel into the local fanout
type relay struct {
	refs   int
	pubsub *redis.PubSub
	cancel context.CancelFunc
}

// New creates a new Redis storage instance
func New(cfg Config, clk clock.Clock, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewWithClient(client, cfg, clk, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, clk clock.Clock, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis_storage")),
		clock:  clk,
		fanout: storage.NewFanout(),
		relays: make(map[model.RoomID]*relay),
	}
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	s.mu.Lock()
	for id, r := range s.relays {
		r.cancel()
		_ = r.pubsub.Close()
		delete(s.relays, id)
	}
	s.mu.Unlock()
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Apply TTL only for guest players
	var ttl time.Duration
	if player.IsGuest {
		ttl = s.cfg.GuestPlayerTTL
	}
	return s.client.Set(ctx, playerKey(player.ID), data, ttl).Err()
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := s.getJSON(ctx, s.client, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	data, err := json.Marshal(rp)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, registeredPlayerKey(rp.PlayerID), data, 0)
	pipe.Set(ctx, usernameIndexKey(rp.Username), string(rp.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var rp model.RegisteredPlayer
	if err := s.getJSON(ctx, s.client, registeredPlayerKey(playerID), &rp, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	playerIDStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetRegisteredPlayer(ctx, model.PlayerID(playerIDStr))
}

// Presence operations

func (s *Storage) SavePresence(ctx context.Context, presence *model.Presence) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, presenceKey(presence.Player.ID), data, s.cfg.PresenceTTL).Err()
}

func (s *Storage) GetPresence(ctx context.Context, playerID model.PlayerID) (*model.Presence, error) {
	var presence model.Presence
	if err := s.getJSON(ctx, s.client, presenceKey(playerID), &presence, model.ErrPresenceNotFound); err != nil {
		return nil, err
	}
	return &presence, nil
}

// Room operations

func (s *Storage) CreateRoom(ctx context.Context, room *model.Room) (model.RoomID, error) {
	if room.ID == "" {
		room.ID = model.RoomID(uuid.NewString())
	}
	room.Version = 1

	data, err := json.Marshal(room)
	if err != nil {
		return "", err
	}

	created, err := s.client.SetNX(ctx, roomKey(room.ID), data, s.cfg.RoomTTL).Result()
	if err != nil {
		return "", err
	}
	if !created {
		return "", model.ErrRoomExists
	}

	if err := s.client.SAdd(ctx, roomsIndexKey(), string(room.ID)).Err(); err != nil {
		return "", err
	}

	s.announce(ctx, model.RoomUpdated(room.Clone(), s.clock.Now()))
	return room.ID, nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return s.getRoom(ctx, s.client, id)
}

func (s *Storage) getRoom(ctx context.Context, r reader, id model.RoomID) (*model.Room, error) {
	var room model.Room
	if err := s.getJSON(ctx, r, roomKey(id), &room, model.ErrRoomNotFound); err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	ids, err := s.client.SMembers(ctx, roomsIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []*model.Room{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(model.RoomID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	rooms := make([]*model.Room, 0, len(values))
	var expired []any
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var room model.Room
		if err := json.Unmarshal([]byte(str), &room); err != nil {
			continue // Skip invalid data
		}
		rooms = append(rooms, &room)
	}

	if len(expired) > 0 {
		_ = s.client.SRem(ctx, roomsIndexKey(), expired...).Err()
	}

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})
	return rooms, nil
}

// UpdateRoom runs fn inside WATCH/MULTI on the room key. A concurrent write
// aborts the transaction and the update is retried against fresh state.
func (s *Storage) UpdateRoom(ctx context.Context, id model.RoomID, fn storage.RoomMutator) (*model.Room, error) {
	key := roomKey(id)

	for attempt := 0; attempt < storage.MaxUpdateAttempts; attempt++ {
		var updated *model.Room

		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			room, err := s.getRoom(ctx, tx, id)
			if err != nil {
				return err
			}

			version := room.Version
			if err := fn(room); err != nil {
				return err
			}
			room.ID = id
			room.Version = version + 1

			data, err := json.Marshal(room)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.cfg.RoomTTL)
				return nil
			})
			if err != nil {
				return err
			}

			updated = room
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("room update lost race, retrying",
				slog.String("room_id", string(id)),
				slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.announce(ctx, model.RoomUpdated(updated.Clone(), s.clock.Now()))
		return updated, nil
	}

	return nil, model.ErrVersionConflict
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, roomKey(id))
	pipe.SRem(ctx, roomsIndexKey(), string(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if del.Val() == 0 {
		return model.ErrRoomNotFound
	}

	s.announce(ctx, model.RoomDeleted(id, s.clock.Now()))
	return nil
}

// SubscribeRoom shares one Pub/Sub subscription per room between all local
// subscribers
func (s *Storage) SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error) {
	if err := s.acquireRelay(ctx, id); err != nil {
		return nil, err
	}

	events, err := s.fanout.Subscribe(ctx, id, func() (model.RoomEvent, error) {
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrRoomNotFound) {
				return model.RoomDeleted(id, s.clock.Now()), nil
			}
			return model.RoomEvent{}, err
		}
		return model.RoomUpdated(room, s.clock.Now()), nil
	})
	if err != nil {
		s.releaseRelay(id)
		return nil, err
	}

	go func() {
		<-ctx.Done()
		s.releaseRelay(id)
	}()

	return events, nil
}

func (s *Storage) acquireRelay(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.relays[id]; ok {
		r.refs++
		return nil
	}

	pubsub := s.client.Subscribe(ctx, roomChannel(id))
	// Wait for the subscription to be confirmed so no later publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	relayCtx, cancel := context.WithCancel(context.Background())
	s.relays[id] = &relay{refs: 1, pubsub: pubsub, cancel: cancel}
	go s.runRelay(relayCtx, id, pubsub)
	return nil
}

func (s *Storage) releaseRelay(id model.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.relays[id]
	if !ok {
		return
	}
	r.refs--
	if r.refs > 0 {
		return
	}
	r.cancel()
	_ = r.pubsub.Close()
	delete(s.relays, id)
}

func (s *Storage) runRelay(ctx context.Context, id model.RoomID, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev model.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.Warn("discarding malformed room event",
					slog.String("room_id", string(id)),
					slog.String("error", err.Error()))
				continue
			}
			s.fanout.Publish(ev)
		}
	}
}

// announce publishes a room event to every instance subscribed to the room
func (s *Storage) announce(ctx context.Context, ev model.RoomEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode room event", slog.String("error", err.Error()))
		return
	}
	if err := s.client.Publish(ctx, roomChannel(ev.RoomID), data).Err(); err != nil {
		s.logger.Warn("failed to publish room event",
			slog.String("room_id", string(ev.RoomID)),
			slog.String("error", err.Error()))
	}
}

// reader is satisfied by both *redis.Client and *redis.Tx
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Storage) getJSON(ctx context.Context, r reader, key string, dst any, notFound error) error {
	data, err := r.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, dst)
}
