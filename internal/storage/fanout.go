package storage

import (
	"context"
	"sync"

	"github.com/mcoot/turnclock/internal/model"
)

// subscriberBuffer is the number of undelivered events kept per subscriber.
// Events carry the full room, so the oldest are dropped when it fills.
const subscriberBuffer = 16

type subscriber struct {
	ch          chan model.RoomEvent
	lastVersion int64
	deleted     bool
}

// Fanout distributes room events to in-process subscribers. Backends use it
// to turn their change notifications into per-room channels.
type Fanout struct {
	mu   sync.Mutex
	subs map[model.RoomID]map[*subscriber]struct{}
}

// NewFanout creates an empty Fanout
func NewFanout() *Fanout {
	return &Fanout{subs: make(map[model.RoomID]map[*subscriber]struct{})}
}

// Subscribe registers a subscriber for the room. load is called after
// registration to produce the initial event, so no change is missed between
// the read and the subscription. The channel closes when ctx is done.
func (f *Fanout) Subscribe(ctx context.Context, id model.RoomID, load func() (model.RoomEvent, error)) (<-chan model.RoomEvent, error) {
	sub := &subscriber{ch: make(chan model.RoomEvent, subscriberBuffer)}

	f.mu.Lock()
	if f.subs[id] == nil {
		f.subs[id] = make(map[*subscriber]struct{})
	}
	f.subs[id][sub] = struct{}{}
	f.mu.Unlock()

	initial, err := load()
	if err != nil {
		f.remove(id, sub)
		return nil, err
	}

	f.mu.Lock()
	f.deliver(sub, initial)
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(id, sub)
	}()

	return sub.ch, nil
}

// Publish delivers the event to every subscriber of its room
func (f *Fanout) Publish(ev model.RoomEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs[ev.RoomID] {
		f.deliver(sub, ev)
	}
}

// Count returns the number of subscribers for the room
func (f *Fanout) Count(id model.RoomID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[id])
}

// Rooms returns the rooms that currently have subscribers
func (f *Fanout) Rooms() []model.RoomID {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]model.RoomID, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	return ids
}

// deliver must be called with f.mu held. Stale updates are skipped so a
// subscriber never sees the room go back in time. The last version survives
// a deletion, so an update committed before the delete but published after
// it is dropped too.
func (f *Fanout) deliver(sub *subscriber, ev model.RoomEvent) {
	switch ev.Kind {
	case model.RoomEventUpdated:
		if ev.Room == nil || ev.Room.Version <= sub.lastVersion {
			return
		}
		sub.lastVersion = ev.Room.Version
		sub.deleted = false
	case model.RoomEventDeleted:
		if sub.deleted {
			return
		}
		sub.deleted = true
	}

	for {
		select {
		case sub.ch <- ev:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func (f *Fanout) remove(id model.RoomID, sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id][sub]; !ok {
		return
	}
	delete(f.subs[id], sub)
	if len(f.subs[id]) == 0 {
		delete(f.subs, id)
	}
	close(sub.ch)
}
