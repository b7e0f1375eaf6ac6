package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/turnclock/internal/api/apierr"
	"github.com/mcoot/turnclock/internal/api/request"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/services/room"
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	controller *room.Controller
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(controller *room.Controller) *RoomHandler {
	return &RoomHandler{controller: controller}
}

func roomID(r *http.Request) model.RoomID {
	return model.RoomID(mux.Vars(r)["id"])
}

func caller(r *http.Request) (model.PlayerRef, error) {
	return identity.Require(identity.FromContext(r.Context()))
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.controller.ListRooms(r.Context())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	out := response.RoomList{Rooms: make([]response.RoomSummary, len(rooms))}
	for i, rm := range rooms {
		out.Rooms[i] = response.RoomSummaryFromModel(rm)
	}
	response.JSON(w, http.StatusOK, out)
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}

	cfg := model.DefaultRoomConfig()
	if req.Minutes != nil {
		cfg.Minutes = *req.Minutes
	}
	if req.Buffer != nil {
		cfg.Buffer = *req.Buffer
	}
	if req.Increment != nil {
		cfg.Increment = *req.Increment
	}

	rm, err := h.controller.CreateRoom(r.Context(), player, cfg)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.WriteRoom(w, http.StatusCreated, rm)
}

// Get handles GET /api/v1/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	rm, err := h.controller.GetRoom(r.Context(), roomID(r))
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.WriteRoom(w, http.StatusOK, rm)
}

// Delete handles DELETE /api/v1/rooms/{id}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	if err := h.controller.DeleteRoom(r.Context(), roomID(r), player); err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Join handles POST /api/v1/rooms/{id}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.controller.JoinRoom)
}

// Leave handles POST /api/v1/rooms/{id}/leave. The last player leaving
// deletes the room, in which case there is no room to return.
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	rm, err := h.controller.LeaveRoom(r.Context(), roomID(r), player)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	if rm == nil {
		response.NoContent(w)
		return
	}

	response.WriteRoom(w, http.StatusOK, rm)
}

// Start handles POST /api/v1/rooms/{id}/start
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.controller.StartGame)
}

// EndTurn handles POST /api/v1/rooms/{id}/end-turn
func (h *RoomHandler) EndTurn(w http.ResponseWriter, r *http.Request) {
	h.secondsCommand(w, r, h.controller.EndTurn)
}

// TogglePause handles POST /api/v1/rooms/{id}/toggle-pause
func (h *RoomHandler) TogglePause(w http.ResponseWriter, r *http.Request) {
	h.secondsCommand(w, r, h.controller.StopOrStartTimer)
}

// ResetTime handles POST /api/v1/rooms/{id}/reset-time
func (h *RoomHandler) ResetTime(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.controller.ResetTime)
}

// PreviousTurn handles POST /api/v1/rooms/{id}/previous-turn
func (h *RoomHandler) PreviousTurn(w http.ResponseWriter, r *http.Request) {
	h.command(w, r, h.controller.PreviousTurn)
}

// SetTime handles POST /api/v1/rooms/{id}/set-time
func (h *RoomHandler) SetTime(w http.ResponseWriter, r *http.Request) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req request.SetTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.PlayerID == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("player_id is required"))
		return
	}
	if req.Seconds == nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("seconds is required"))
		return
	}

	rm, err := h.controller.SetTime(r.Context(), roomID(r), player, model.PlayerID(req.PlayerID), *req.Seconds)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.WriteRoom(w, http.StatusOK, rm)
}

type roomCommand func(ctx context.Context, id model.RoomID, caller model.PlayerRef) (*model.Room, error)

type secondsCommand func(ctx context.Context, id model.RoomID, caller model.PlayerRef, seconds int) (*model.Room, error)

func (h *RoomHandler) command(w http.ResponseWriter, r *http.Request, cmd roomCommand) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	rm, err := cmd(r.Context(), roomID(r), player)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.WriteRoom(w, http.StatusOK, rm)
}

func (h *RoomHandler) secondsCommand(w http.ResponseWriter, r *http.Request, cmd secondsCommand) {
	player, err := caller(r)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	var req request.SecondsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
		return
	}
	if req.Seconds == nil {
		apierr.WriteError(w, apierr.NewInvalidRequestError("seconds is required"))
		return
	}

	rm, err := cmd(r.Context(), roomID(r), player, *req.Seconds)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.WriteRoom(w, http.StatusOK, rm)
}
