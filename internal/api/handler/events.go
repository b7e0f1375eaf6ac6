package handler

import (
	"net/http"

	"github.com/mcoot/turnclock/internal/api/apierr"
	"github.com/mcoot/turnclock/internal/api/middleware"
	"github.com/mcoot/turnclock/internal/services/room"
	"github.com/mcoot/turnclock/internal/web/sse"
)

// EventsHandler streams room changes over Server-Sent Events
type EventsHandler struct {
	rooms *room.Controller
	hubs  *sse.HubManager
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(rooms *room.Controller, hubs *sse.HubManager) *EventsHandler {
	return &EventsHandler{rooms: rooms, hubs: hubs}
}

// Stream handles GET /api/v1/rooms/{id}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	id := roomID(r)

	if _, err := h.rooms.GetRoom(r.Context(), id); err != nil {
		apierr.WriteError(w, err)
		return
	}

	hub, err := h.hubs.Acquire(id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	defer h.hubs.Release(id)

	sse.ServeSSE(w, r, hub, player.ID)
}
