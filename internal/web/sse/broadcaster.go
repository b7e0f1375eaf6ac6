package sse

import (
	"context"
	"log/slog"

	"github.com/mcoot/turnclock/internal/model"
)

// SSE event names
const (
	EventRoomUpdated = "room-updated"
	EventRoomDeleted = "room-deleted"
)

// Feed streams changes to a room
type Feed interface {
	SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error)
}

// Encoder renders a room event as SSE data
type Encoder func(ev model.RoomEvent) (string, error)

// Broadcaster relays room events from a Feed into hubs
type Broadcaster struct {
	feed   Feed
	encode Encoder
	logger *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(feed Feed, encode Encoder, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		feed:   feed,
		encode: encode,
		logger: logger.With(slog.String("component", "sse-broadcaster")),
	}
}

// Relay subscribes to the hub's room and broadcasts every event until the
// returned stop function is called. A deleted room closes the hub once the
// deletion has been sent.
func (b *Broadcaster) Relay(hub *Hub) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	events, err := b.feed.SubscribeRoom(ctx, hub.roomID)
	if err != nil {
		cancel()
		return nil, err
	}

	go func() {
		for ev := range events {
			b.Broadcast(hub, ev)
			if ev.Kind == model.RoomEventDeleted {
				hub.Close()
			}
		}
	}()
	return cancel, nil
}

// Broadcast sends one room event to the hub's clients
func (b *Broadcaster) Broadcast(hub *Hub, ev model.RoomEvent) {
	data, err := b.encode(ev)
	if err != nil {
		b.logger.Error("sse failed to encode room event",
			slog.String("room_id", string(ev.RoomID)),
			slog.String("error", err.Error()))
		return
	}

	name := EventRoomUpdated
	if ev.Kind == model.RoomEventDeleted {
		name = EventRoomDeleted
	}
	hub.BroadcastEvent(name, data)
}
