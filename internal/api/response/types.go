package response

import (
	"encoding/json"
	"time"

	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/services/auth"
)

// Player represents a player in API responses
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsGuest     bool   `json:"is_guest"`
}

// PlayerFromModel converts a model.Player to a response Player
func PlayerFromModel(p *model.Player) Player {
	return Player{
		ID:          string(p.ID),
		DisplayName: p.DisplayName,
		IsGuest:     p.IsGuest,
	}
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Player       Player    `json:"player"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Player:       PlayerFromModel(&s.Player),
		SessionToken: s.Token,
		ExpiresAt:    s.ExpiresAt,
	}
}

// PlayerRef is a player as referenced inside a room
type PlayerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PlayerRefFromModel converts model.PlayerRef
func PlayerRefFromModel(p model.PlayerRef) PlayerRef {
	return PlayerRef{ID: string(p.ID), Name: p.Name}
}

// ToModel converts back to model.PlayerRef
func (p PlayerRef) ToModel() model.PlayerRef {
	return model.PlayerRef{ID: model.PlayerID(p.ID), Name: p.Name}
}

// RoomPlayer is a seat with its time bank
type RoomPlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Seconds int    `json:"seconds"`
}

// Operation is one entry of a room's log
type Operation struct {
	Command string    `json:"command"`
	SentBy  PlayerRef `json:"sent_by"`
	At      time.Time `json:"at"`
}

// Room represents a room in API responses
type Room struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Admin          PlayerRef    `json:"admin"`
	Players        []RoomPlayer `json:"players"`
	PlayerTurn     PlayerRef    `json:"player_turn"`
	Operations     []Operation  `json:"operations"`
	Seconds        int          `json:"seconds"`
	Buffer         int          `json:"buffer"`
	Increment      int          `json:"increment"`
	IsPaused       bool         `json:"is_paused"`
	HasGameStarted bool         `json:"has_game_started"`
	Version        int64        `json:"version"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// RoomFromModel converts model.Room
func RoomFromModel(r *model.Room) Room {
	players := make([]RoomPlayer, len(r.Players))
	for i, p := range r.Players {
		players[i] = RoomPlayer{ID: string(p.ID), Name: p.Name, Seconds: p.Seconds}
	}

	ops := make([]Operation, len(r.Operations))
	for i, op := range r.Operations {
		ops[i] = Operation{
			Command: string(op.Command),
			SentBy:  PlayerRefFromModel(op.SentBy),
			At:      op.At,
		}
	}

	return Room{
		ID:             string(r.ID),
		Name:           r.Name,
		Admin:          PlayerRefFromModel(r.Admin),
		Players:        players,
		PlayerTurn:     PlayerRefFromModel(r.PlayerTurn),
		Operations:     ops,
		Seconds:        r.Seconds,
		Buffer:         r.Buffer,
		Increment:      r.Increment,
		IsPaused:       r.IsPaused,
		HasGameStarted: r.HasGameStarted,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ToModel converts the response back into a model.Room
func (r Room) ToModel() *model.Room {
	players := make(model.TurnOrder, len(r.Players))
	for i, p := range r.Players {
		players[i] = model.RoomPlayer{ID: model.PlayerID(p.ID), Name: p.Name, Seconds: p.Seconds}
	}

	ops := make([]model.Operation, len(r.Operations))
	for i, op := range r.Operations {
		ops[i] = model.Operation{
			Command: model.Command(op.Command),
			SentBy:  op.SentBy.ToModel(),
			At:      op.At,
		}
	}

	return &model.Room{
		ID:             model.RoomID(r.ID),
		Name:           r.Name,
		Admin:          r.Admin.ToModel(),
		Players:        players,
		PlayerTurn:     r.PlayerTurn.ToModel(),
		Operations:     ops,
		Seconds:        r.Seconds,
		Buffer:         r.Buffer,
		Increment:      r.Increment,
		IsPaused:       r.IsPaused,
		HasGameStarted: r.HasGameStarted,
		Version:        r.Version,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// RoomSummary is the compact form used in room listings
type RoomSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Admin          PlayerRef `json:"admin"`
	PlayerCount    int       `json:"player_count"`
	HasGameStarted bool      `json:"has_game_started"`
	CreatedAt      time.Time `json:"created_at"`
}

// RoomSummaryFromModel converts model.Room
func RoomSummaryFromModel(r *model.Room) RoomSummary {
	return RoomSummary{
		ID:             string(r.ID),
		Name:           r.Name,
		Admin:          PlayerRefFromModel(r.Admin),
		PlayerCount:    r.Players.Len(),
		HasGameStarted: r.HasGameStarted,
		CreatedAt:      r.CreatedAt,
	}
}

// RoomList is the response for room listings
type RoomList struct {
	Rooms []RoomSummary `json:"rooms"`
}

// Presence is the room a player currently sits in
type Presence struct {
	PlayerID string     `json:"player_id"`
	InRoom   *InRoom    `json:"in_room"`
}

// InRoom describes a room membership
type InRoom struct {
	RoomID   string    `json:"room_id"`
	RoomName string    `json:"room_name"`
	JoinedAt time.Time `json:"joined_at"`
}

// PresenceFromModel converts model.Presence
func PresenceFromModel(p *model.Presence) Presence {
	out := Presence{PlayerID: string(p.Player.ID)}
	if p.InRoom != nil {
		out.InRoom = &InRoom{
			RoomID:   string(p.InRoom.RoomID),
			RoomName: p.InRoom.RoomName,
			JoinedAt: p.InRoom.JoinedAt,
		}
	}
	return out
}

// RoomEvent is the push payload sent over SSE and WebSocket
type RoomEvent struct {
	Type      string    `json:"type"`
	RoomID    string    `json:"room_id"`
	Room      *Room     `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomEventFromModel converts model.RoomEvent
func RoomEventFromModel(ev model.RoomEvent) RoomEvent {
	out := RoomEvent{
		Type:      string(ev.Kind),
		RoomID:    string(ev.RoomID),
		Timestamp: ev.Timestamp,
	}
	if ev.Room != nil {
		room := RoomFromModel(ev.Room)
		out.Room = &room
	}
	return out
}

// ToModel converts the push payload back into a model.RoomEvent
func (e RoomEvent) ToModel() model.RoomEvent {
	ev := model.RoomEvent{
		Kind:      model.RoomEventKind(e.Type),
		RoomID:    model.RoomID(e.RoomID),
		Timestamp: e.Timestamp,
	}
	if e.Room != nil {
		ev.Room = e.Room.ToModel()
	}
	return ev
}

// Health is the health check response
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage,omitempty"`
}

// EncodeRoomEvent renders a room event as the JSON push payload
func EncodeRoomEvent(ev model.RoomEvent) (string, error) {
	data, err := json.Marshal(RoomEventFromModel(ev))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
