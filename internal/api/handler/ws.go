package handler

import (
	"net/http"

	"github.com/mcoot/turnclock/internal/api/apierr"
	"github.com/mcoot/turnclock/internal/api/middleware"
	"github.com/mcoot/turnclock/internal/services/room"
	"github.com/mcoot/turnclock/internal/web/ws"
)

// SocketHandler streams room changes over WebSocket
type SocketHandler struct {
	rooms  *room.Controller
	server *ws.Server
}

// NewSocketHandler creates a new WebSocket handler
func NewSocketHandler(rooms *room.Controller, server *ws.Server) *SocketHandler {
	return &SocketHandler{rooms: rooms, server: server}
}

// Connect handles GET /api/v1/rooms/{id}/ws
func (h *SocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := roomID(r)

	if _, err := h.rooms.GetRoom(r.Context(), id); err != nil {
		apierr.WriteError(w, err)
		return
	}

	h.server.Serve(w, r, id, player.ID)
}
