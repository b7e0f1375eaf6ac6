// Package ws pushes room changes to WebSocket clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/turnclock/internal/model"
)

// Config holds configuration for WebSocket connections
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConfig returns default WebSocket configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Message is the envelope of every frame sent to clients
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Feed streams changes to a room
type Feed interface {
	SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error)
}

// Encoder renders the data of a room event
type Encoder func(ev model.RoomEvent) (json.RawMessage, error)

// Server upgrades requests and streams a room's events to each connection
type Server struct {
	feed     Feed
	encode   Encoder
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a new Server
func NewServer(feed Feed, encode Encoder, config Config, logger *slog.Logger) *Server {
	return &Server{
		feed:   feed,
		encode: encode,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger.With(slog.String("component", "ws")),
	}
}

// Serve upgrades the request and streams the room until the client goes
// away or the room is deleted
func (s *Server) Serve(w http.ResponseWriter, r *http.Request, roomID model.RoomID, playerID model.PlayerID) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context is not cancelled when a hijacked connection drops,
	// so the read pump owns cancellation.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := s.feed.SubscribeRoom(ctx, roomID)
	if err != nil {
		s.logger.Error("failed to subscribe room",
			slog.String("room_id", string(roomID)),
			slog.String("error", err.Error()),
		)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""),
			time.Now().Add(s.config.WriteTimeout))
		_ = conn.Close()
		return
	}

	c := &connection{
		server:   s,
		conn:     conn,
		roomID:   roomID,
		playerID: playerID,
		send:     make(chan []byte, 16),
		logger: s.logger.With(
			slog.String("room_id", string(roomID)),
			slog.String("player_id", string(playerID)),
		),
	}

	c.logger.Info("websocket connected")
	go c.readPump(cancel)
	go c.forward(ctx, events)
	c.writePump(cancel)
	c.logger.Info("websocket disconnected")
}

type connection struct {
	server   *Server
	conn     *websocket.Conn
	roomID   model.RoomID
	playerID model.PlayerID
	send     chan []byte
	logger   *slog.Logger
}

// forward encodes room events onto the send channel. It is the only sender
// and closes the channel when the subscription ends or the room is deleted.
func (c *connection) forward(ctx context.Context, events <-chan model.RoomEvent) {
	defer close(c.send)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg, err := c.message(ev)
			if err != nil {
				c.logger.Error("failed to encode room event", slog.String("error", err.Error()))
				continue
			}
			select {
			case c.send <- msg:
			case <-ctx.Done():
				return
			}
			if ev.Kind == model.RoomEventDeleted {
				return
			}
		}
	}
}

func (c *connection) message(ev model.RoomEvent) ([]byte, error) {
	data, err := c.server.encode(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: string(ev.Kind), Data: data})
}

func (c *connection) writePump(cancel context.CancelFunc) {
	cfg := c.server.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		cancel()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to send ping", slog.String("error", err.Error()))
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed, and
// cancels the connection once the client goes away
func (c *connection) readPump(cancel context.CancelFunc) {
	defer cancel()

	cfg := c.server.config
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}

		c.logger.Debug("ignoring client message", slog.Int("size", len(message)))
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
