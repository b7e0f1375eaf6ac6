package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnclock/internal/model"
)

var fanoutTime = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func roomAt(id model.RoomID, version int64) model.RoomEvent {
	return model.RoomUpdated(&model.Room{ID: id, Version: version}, fanoutTime)
}

func subscribeAt(t *testing.T, f *Fanout, id model.RoomID, version int64) <-chan model.RoomEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ch, err := f.Subscribe(ctx, id, func() (model.RoomEvent, error) {
		return roomAt(id, version), nil
	})
	require.NoError(t, err)

	initial := <-ch
	require.Equal(t, version, initial.Room.Version)
	return ch
}

func drain(ch <-chan model.RoomEvent) []model.RoomEvent {
	var events []model.RoomEvent
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestFanout_SkipsStaleUpdates(t *testing.T) {
	f := NewFanout()
	ch := subscribeAt(t, f, "room-1", 5)

	f.Publish(roomAt("room-1", 4))
	f.Publish(roomAt("room-1", 5))
	f.Publish(roomAt("room-1", 6))

	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, int64(6), events[0].Room.Version)
}

func TestFanout_NoUpdateAfterDelete(t *testing.T) {
	f := NewFanout()
	ch := subscribeAt(t, f, "room-1", 5)

	f.Publish(model.RoomDeleted("room-1", fanoutTime))
	f.Publish(roomAt("room-1", 5))
	f.Publish(model.RoomDeleted("room-1", fanoutTime))

	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, model.RoomEventDeleted, events[0].Kind)
}

func TestFanout_OtherRoomsAreIsolated(t *testing.T) {
	f := NewFanout()
	ch := subscribeAt(t, f, "room-1", 1)

	f.Publish(roomAt("room-2", 9))
	assert.Empty(t, drain(ch))
	assert.Equal(t, 1, f.Count("room-1"))
	assert.Equal(t, 0, f.Count("room-2"))
	assert.Equal(t, []model.RoomID{"room-1"}, f.Rooms())
}

func TestFanout_CancelClosesChannel(t *testing.T) {
	f := NewFanout()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.Subscribe(ctx, "room-1", func() (model.RoomEvent, error) {
		return roomAt("room-1", 1), nil
	})
	require.NoError(t, err)
	<-ch

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.Count("room-1"))
}
