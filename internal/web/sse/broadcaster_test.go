package sse

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage/memory"
	"github.com/mcoot/turnclock/internal/testutil"
)

func encodeVersion(ev model.RoomEvent) (string, error) {
	if ev.Room == nil {
		return `{}`, nil
	}
	b, err := json.Marshal(map[string]int64{"version": ev.Room.Version})
	return string(b), err
}

func newTestManager(t *testing.T) (*HubManager, *memory.Storage) {
	store := memory.New()
	broadcaster := NewBroadcaster(store, encodeVersion, testutil.NopLogger())
	manager := NewHubManager(broadcaster, testutil.NopLogger())
	t.Cleanup(manager.Close)
	return manager, store
}

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg, ok := <-client.send:
		require.True(t, ok, "client channel closed")
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
		return ""
	}
}

func TestHubManager_AcquireSharesHub(t *testing.T) {
	manager, store := newTestManager(t)
	id, err := store.CreateRoom(context.Background(), &model.Room{Name: "r"})
	require.NoError(t, err)

	hub1, err := manager.Acquire(id)
	require.NoError(t, err)
	hub2, err := manager.Acquire(id)
	require.NoError(t, err)
	assert.Same(t, hub1, hub2)
	assert.Equal(t, 1, manager.HubCount())

	manager.Release(id)
	assert.NotNil(t, manager.GetHub(id))
	manager.Release(id)
	assert.Nil(t, manager.GetHub(id))

	// releasing an unknown room is a no-op
	manager.Release("unknown")
}

func TestBroadcaster_RelaysStoreUpdates(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, &model.Room{Name: "r"})
	require.NoError(t, err)

	hub, err := manager.Acquire(id)
	require.NoError(t, err)
	defer manager.Release(id)

	client := NewClient(hub, "player1")
	hub.Register(client)

	msg := receive(t, client)
	assert.Contains(t, msg, "event: room-updated")
	assert.Contains(t, msg, `"version":1`)

	_, err = store.UpdateRoom(ctx, id, func(r *model.Room) error {
		r.IsPaused = true
		return nil
	})
	require.NoError(t, err)

	msg = receive(t, client)
	assert.Contains(t, msg, `"version":2`)
}

func TestBroadcaster_DeletionClosesHub(t *testing.T) {
	manager, store := newTestManager(t)
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, &model.Room{Name: "r"})
	require.NoError(t, err)

	hub, err := manager.Acquire(id)
	require.NoError(t, err)
	defer manager.Release(id)

	client := NewClient(hub, "player1")
	hub.Register(client)
	receive(t, client)

	require.NoError(t, store.DeleteRoom(ctx, id))

	var msgs []string
	for msg := range client.send {
		msgs = append(msgs, string(msg))
	}
	require.NotEmpty(t, msgs)
	assert.True(t, strings.HasPrefix(msgs[len(msgs)-1], "event: room-deleted"))
}

func TestBroadcaster_MissingRoomSendsDeleted(t *testing.T) {
	manager, _ := newTestManager(t)

	hub, err := manager.Acquire("missing")
	require.NoError(t, err)
	defer manager.Release("missing")

	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub for a missing room should close")
	}
}
