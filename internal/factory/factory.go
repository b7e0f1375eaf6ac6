package factory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/dependencies/random"
	"github.com/mcoot/turnclock/internal/events"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/services/auth"
	"github.com/mcoot/turnclock/internal/services/room"
	"github.com/mcoot/turnclock/internal/storage"
	"github.com/mcoot/turnclock/internal/storage/memory"
	pgstorage "github.com/mcoot/turnclock/internal/storage/postgres"
	redisstorage "github.com/mcoot/turnclock/internal/storage/redis"
	"github.com/mcoot/turnclock/internal/web/sse"
	"github.com/mcoot/turnclock/internal/web/ws"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	Random    random.Random
	Publisher events.Publisher

	// Services
	RoomController *room.Controller
	AuthService    *auth.Service
	HubManager     *sse.HubManager
	SocketServer   *ws.Server

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "postgres")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// PostgresConfig holds database settings (required if StorageType is "postgres")
	PostgresConfig *pgstorage.Config
	// JetStreamConfig enables publishing room commands to NATS JetStream (optional)
	JetStreamConfig *events.JetStreamConfig
	// WebSocketConfig overrides the WebSocket defaults (optional)
	WebSocketConfig *ws.Config
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()

	store, err := newStorage(ctx, cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.JetStreamConfig != nil {
		js, err := events.NewJetStreamPublisher(ctx, *cfg.JetStreamConfig, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, fmt.Errorf("connect jetstream: %w", err)
		}
		publisher = js
		closers = append(closers, js)
	}

	// Use default auth config if not provided
	authCfg := cfg.AuthConfig
	if authCfg.SessionDuration == 0 {
		authCfg.SessionDuration = auth.DefaultConfig().SessionDuration
	}

	wsCfg := ws.DefaultConfig()
	if cfg.WebSocketConfig != nil {
		wsCfg = *cfg.WebSocketConfig
	}

	app := newWithDependencies(store, publisher, clk, random.New(), authCfg, wsCfg, logger)
	app.closers = closers
	return app, nil
}

func newStorage(ctx context.Context, cfg Config, clk clock.Clock, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.NewWithClock(clk), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig, clk, logger)
	case StorageTypePostgres:
		if cfg.PostgresConfig == nil {
			return nil, errors.New("PostgresConfig required when StorageType is postgres")
		}
		return pgstorage.New(ctx, *cfg.PostgresConfig, clk, logger)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory', 'redis' or 'postgres'")
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	publisher events.Publisher,
	clk clock.Clock,
	rnd random.Random,
	authCfg auth.Config,
	wsCfg ws.Config,
	logger *slog.Logger,
) *App {
	roomController := room.NewController(store, publisher, clk, rnd, logger)
	authService := auth.New(store, clk, authCfg)
	broadcaster := sse.NewBroadcaster(store, response.EncodeRoomEvent, logger)
	hubManager := sse.NewHubManager(broadcaster, logger)
	socketServer := ws.NewServer(store, encodeSocketEvent, wsCfg, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Publisher:      publisher,
		RoomController: roomController,
		AuthService:    authService,
		HubManager:     hubManager,
		SocketServer:   socketServer,
	}
}

func encodeSocketEvent(ev model.RoomEvent) (json.RawMessage, error) {
	if ev.Room == nil {
		return json.Marshal(map[string]string{"room_id": string(ev.RoomID)})
	}
	return json.Marshal(response.RoomFromModel(ev.Room))
}

// Pinger is implemented by backends that can check their connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// Pinger returns the storage health check, or nil if the backend has none
func (a *App) Pinger() Pinger {
	if p, ok := a.Storage.(Pinger); ok {
		return p
	}
	return nil
}

// Close stops push hubs and releases backend connections
func (a *App) Close(logger *slog.Logger) {
	a.HubManager.Close()
	closeAll(a.closers, logger)
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("failed to close dependency", slog.String("error", err.Error()))
		}
	}
}
