package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage"
)

// Storage is a PostgreSQL implementation of the storage interface. Every
// record lives in one table keyed by (kind, id); rooms are updated with a
// version compare-and-swap and changes are announced with NOTIFY.
type Storage struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger

	clock  clock.Clock
	fanout *storage.Fanout

	listenMu   sync.Mutex
	stopListen context.CancelFunc
}

// roomNotification is the NOTIFY payload. Rooms are re-read on receipt since
// payloads are size limited.
type roomNotification struct {
	RoomID  model.RoomID `json:"room_id"`
	Deleted bool         `json:"deleted"`
}

// New connects to PostgreSQL and ensures the schema exists
func New(ctx context.Context, cfg Config, clk clock.Clock, logger *slog.Logger) (*Storage, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := NewWithPool(pool, cfg, clk, logger)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool creates a storage on an existing pool
func NewWithPool(pool *pgxpool.Pool, cfg Config, clk clock.Clock, logger *slog.Logger) *Storage {
	defaults := DefaultConfig()
	if cfg.Channel == "" {
		cfg.Channel = defaults.Channel
	}
	if cfg.ListenRetryMin <= 0 {
		cfg.ListenRetryMin = defaults.ListenRetryMin
	}
	if cfg.ListenRetryMax < cfg.ListenRetryMin {
		cfg.ListenRetryMax = max(defaults.ListenRetryMax, cfg.ListenRetryMin)
	}
	return &Storage{
		pool:   pool,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "postgres_storage")),
		clock:  clk,
		fanout: storage.NewFanout(),
	}
}

// Migrate creates the records table if it does not exist
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close stops the notification listener and closes the pool
func (s *Storage) Close() error {
	s.listenMu.Lock()
	if s.stopListen != nil {
		s.stopListen()
	}
	s.listenMu.Unlock()
	s.pool.Close()
	return nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	return s.upsert(ctx, s.pool, kindPlayer, string(player.ID), player)
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if _, err := s.get(ctx, s.pool, kindPlayer, string(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

// Registered player operations

func (s *Storage) SaveRegisteredPlayer(ctx context.Context, rp *model.RegisteredPlayer) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.upsert(ctx, tx, kindRegisteredPlayer, string(rp.PlayerID), rp); err != nil {
			return err
		}
		return s.upsert(ctx, tx, kindUsername, rp.Username, rp.PlayerID)
	})
}

func (s *Storage) GetRegisteredPlayer(ctx context.Context, playerID model.PlayerID) (*model.RegisteredPlayer, error) {
	var rp model.RegisteredPlayer
	if _, err := s.get(ctx, s.pool, kindRegisteredPlayer, string(playerID), &rp, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &rp, nil
}

func (s *Storage) GetRegisteredPlayerByUsername(ctx context.Context, username string) (*model.RegisteredPlayer, error) {
	var playerID model.PlayerID
	if _, err := s.get(ctx, s.pool, kindUsername, username, &playerID, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return s.GetRegisteredPlayer(ctx, playerID)
}

// Presence operations

func (s *Storage) SavePresence(ctx context.Context, presence *model.Presence) error {
	return s.upsert(ctx, s.pool, presence.Kind(), presence.RecordID(), presence)
}

func (s *Storage) GetPresence(ctx context.Context, playerID model.PlayerID) (*model.Presence, error) {
	var presence model.Presence
	if _, err := s.get(ctx, s.pool, model.RecordKindPresence, string(playerID), &presence, model.ErrPresenceNotFound); err != nil {
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

	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertRecordSQL, room.Kind(), room.RecordID(), string(data))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrRoomExists
		}
		return s.notify(ctx, tx, roomNotification{RoomID: room.ID})
	})
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	var room model.Room
	version, err := s.get(ctx, s.pool, model.RecordKindRoom, string(id), &room, model.ErrRoomNotFound)
	if err != nil {
		return nil, err
	}
	room.Version = version
	return &room, nil
}

func (s *Storage) ListRooms(ctx context.Context) ([]*model.Room, error) {
	rows, err := s.pool.Query(ctx, selectKindSQL, model.RecordKindRoom)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []*model.Room{}
	for rows.Next() {
		var (
			data    []byte
			version int64
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, err
		}
		var room model.Room
		if err := json.Unmarshal(data, &room); err != nil {
			continue // Skip invalid data
		}
		room.Version = version
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// UpdateRoom reads the room and its version, applies fn, and writes back only
// if the version is unchanged. A lost race re-reads and retries.
func (s *Storage) UpdateRoom(ctx context.Context, id model.RoomID, fn storage.RoomMutator) (*model.Room, error) {
	for attempt := 0; attempt < storage.MaxUpdateAttempts; attempt++ {
		room, err := s.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}

		expected := room.Version
		if err := fn(room); err != nil {
			return nil, err
		}
		room.ID = id
		room.Version = expected + 1

		data, err := json.Marshal(room)
		if err != nil {
			return nil, err
		}

		committed := false
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, casRecordSQL, model.RecordKindRoom, string(id), string(data), expected)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			committed = true
			return s.notify(ctx, tx, roomNotification{RoomID: id})
		})
		if err != nil {
			return nil, err
		}
		if committed {
			return room, nil
		}

		s.logger.Debug("room update lost race, retrying",
			slog.String("room_id", string(id)),
			slog.Int("attempt", attempt+1))
	}

	return nil, model.ErrVersionConflict
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteRecordSQL, model.RecordKindRoom, string(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return model.ErrRoomNotFound
		}
		return s.notify(ctx, tx, roomNotification{RoomID: id, Deleted: true})
	})
}

func (s *Storage) SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error) {
	if err := s.ensureListener(); err != nil {
		return nil, err
	}

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

// ensureListener starts the shared LISTEN connection and waits until it is
// listening. A failed start is retried by the next subscription.
func (s *Storage) ensureListener() error {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	if s.stopListen != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := s.acquireListener(ctx)
	if err != nil {
		cancel()
		return err
	}

	s.stopListen = cancel
	go s.listen(ctx, conn)
	return nil
}

func (s *Storage) acquireListener(ctx context.Context) (*pgxpool.Conn, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.cfg.Channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}
	return conn, nil
}

// listen relays notifications until ctx is done. A dropped connection is
// replaced with exponential backoff, and every subscribed room is reloaded
// once listening again since notifications sent in between are lost.
func (s *Storage) listen(ctx context.Context, conn *pgxpool.Conn) {
	for {
		err := s.relay(ctx, conn)
		conn.Release()
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("room listener disconnected", slog.String("error", err.Error()))

		conn = s.reconnect(ctx)
		if conn == nil {
			return
		}
		s.logger.Info("room listener reconnected")
		for _, id := range s.fanout.Rooms() {
			s.reload(ctx, id)
		}
	}
}

// reconnect re-establishes the LISTEN connection, returning nil once ctx
// is done
func (s *Storage) reconnect(ctx context.Context) *pgxpool.Conn {
	wait := s.cfg.ListenRetryMin
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		conn, err := s.acquireListener(ctx)
		if err == nil {
			return conn
		}
		if ctx.Err() != nil {
			return nil
		}
		wait = min(wait*2, s.cfg.ListenRetryMax)
		s.logger.Warn("room listener reconnect failed",
			slog.String("error", err.Error()),
			slog.Duration("retry_in", wait))
	}
}

// relay forwards notifications from conn until it fails
func (s *Storage) relay(ctx context.Context, conn *pgxpool.Conn) error {
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}

		var note roomNotification
		if err := json.Unmarshal([]byte(n.Payload), &note); err != nil {
			s.logger.Warn("discarding malformed notification", slog.String("error", err.Error()))
			continue
		}

		if s.fanout.Count(note.RoomID) == 0 {
			continue
		}

		if note.Deleted {
			s.fanout.Publish(model.RoomDeleted(note.RoomID, s.clock.Now()))
			continue
		}
		s.reload(ctx, note.RoomID)
	}
}

// reload publishes the stored state of a room to its subscribers
func (s *Storage) reload(ctx context.Context, id model.RoomID) {
	room, err := s.GetRoom(ctx, id)
	if errors.Is(err, model.ErrRoomNotFound) {
		s.fanout.Publish(model.RoomDeleted(id, s.clock.Now()))
		return
	}
	if err != nil {
		s.logger.Warn("failed to reload notified room",
			slog.String("room_id", string(id)),
			slog.String("error", err.Error()))
		return
	}
	s.fanout.Publish(model.RoomUpdated(room, s.clock.Now()))
}

func (s *Storage) notify(ctx context.Context, tx pgx.Tx, note roomNotification) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, notifySQL, s.cfg.Channel, string(payload))
	return err
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Storage) upsert(ctx context.Context, q querier, kind model.RecordKind, id string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, upsertRecordSQL, kind, id, string(data))
	return err
}

func (s *Storage) get(ctx context.Context, q querier, kind model.RecordKind, id string, dst any, notFound error) (int64, error) {
	var (
		data    []byte
		version int64
	)
	if err := q.QueryRow(ctx, selectRecordSQL, kind, id).Scan(&data, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, notFound
		}
		return 0, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return 0, err
	}
	return version, nil
}
