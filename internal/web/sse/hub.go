package sse

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mcoot/turnclock/internal/model"
)

// Hub manages SSE clients for a single room
type Hub struct {
	roomID  model.RoomID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// last is replayed to clients that register after it was broadcast
	last []byte

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a room
func NewHub(roomID model.RoomID, logger *slog.Logger) *Hub {
	return &Hub{
		roomID:     roomID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("room_id", string(roomID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Info("sse hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			if h.last != nil {
				client.send <- h.last
			}
			h.mu.Unlock()
			h.logger.Info("sse client registered",
				slog.String("player_id", string(client.playerID)),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("sse client unregistered",
					slog.String("player_id", string(client.playerID)),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.send(message)

		case <-h.done:
			// flush anything broadcast before Close so a final room-deleted
			// event still reaches clients
			for pending := true; pending; {
				select {
				case message := <-h.broadcast:
					h.send(message)
				default:
					pending = false
				}
			}

			h.mu.Lock()
			clientCount := len(h.clients)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("sse hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

func (h *Hub) send(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = message

	sentCount := 0
	droppedCount := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sentCount++
		default:
			droppedCount++
			h.logger.Warn("sse message dropped - client buffer full",
				slog.String("player_id", string(client.playerID)))
		}
	}
	if droppedCount > 0 {
		h.logger.Warn("sse broadcast partial failure",
			slog.Int("sent", sentCount),
			slog.Int("dropped", droppedCount))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.send)
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends a message to all clients
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("sse broadcast dropped - hub buffer full")
	}
}

// BroadcastEvent sends an SSE event with a name and data
func (h *Hub) BroadcastEvent(eventName, data string) {
	h.Broadcast(formatSSEMessage(eventName, data))
}

// Close shuts down the hub
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed when the hub shuts down
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// formatSSEMessage formats an SSE message with event name and data
// Multi-line data is properly formatted with "data: " prefix on each line
func formatSSEMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}

// HubManager manages hubs for all rooms. A hub lives while at least one
// client holds it and is fed by a store subscription for its room.
type HubManager struct {
	hubs        map[model.RoomID]*managedHub
	mu          sync.Mutex
	broadcaster *Broadcaster
	logger      *slog.Logger
}

type managedHub struct {
	hub  *Hub
	refs int
	stop func()
}

// NewHubManager creates a new HubManager
func NewHubManager(broadcaster *Broadcaster, logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:        make(map[model.RoomID]*managedHub),
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "sse")),
	}
}

// Acquire returns the hub for a room, creating and feeding one if needed.
// Every Acquire must be paired with a Release.
func (m *HubManager) Acquire(roomID model.RoomID) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mh, ok := m.hubs[roomID]; ok {
		mh.refs++
		return mh.hub, nil
	}

	hub := NewHub(roomID, m.logger)
	go hub.Run()

	stop, err := m.broadcaster.Relay(hub)
	if err != nil {
		hub.Close()
		return nil, err
	}

	m.hubs[roomID] = &managedHub{hub: hub, refs: 1, stop: stop}
	return hub, nil
}

// Release drops a reference taken by Acquire. The last release closes the hub.
func (m *HubManager) Release(roomID model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mh, ok := m.hubs[roomID]
	if !ok {
		return
	}
	mh.refs--
	if mh.refs > 0 {
		return
	}
	m.removeLocked(roomID, mh)
}

// GetHub returns the hub for a room, or nil if it doesn't exist
func (m *HubManager) GetHub(roomID model.RoomID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mh, ok := m.hubs[roomID]; ok {
		return mh.hub
	}
	return nil
}

// RemoveHub closes a hub regardless of references
func (m *HubManager) RemoveHub(roomID model.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mh, ok := m.hubs[roomID]; ok {
		m.removeLocked(roomID, mh)
	}
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hubs)
}

// Close shuts every hub down
func (m *HubManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, mh := range m.hubs {
		m.removeLocked(id, mh)
	}
}

func (m *HubManager) removeLocked(roomID model.RoomID, mh *managedHub) {
	mh.stop()
	mh.hub.Close()
	delete(m.hubs, roomID)
	m.logger.Info("sse hub removed", slog.String("room_id", string(roomID)))
}
