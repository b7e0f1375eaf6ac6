package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/turnclock/internal/model"
	"github.com/mcoot/turnclock/internal/storage/memory"
	"github.com/mcoot/turnclock/internal/testutil"
)

func encodeVersion(ev model.RoomEvent) (json.RawMessage, error) {
	if ev.Room == nil {
		return nil, nil
	}
	return json.Marshal(map[string]int64{"version": ev.Room.Version})
}

type versionData struct {
	Version int64 `json:"version"`
}

func dial(t *testing.T, store *memory.Storage, id model.RoomID) *websocket.Conn {
	t.Helper()
	server := NewServer(store, encodeVersion, DefaultConfig(), testutil.NopLogger())
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.Serve(w, r, id, "p1")
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServe_StreamsRoomUpdates(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, &model.Room{Name: "r"})
	require.NoError(t, err)

	conn := dial(t, store, id)

	msg := readMessage(t, conn)
	assert.Equal(t, string(model.RoomEventUpdated), msg.Type)
	var data versionData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int64(1), data.Version)

	_, err = store.UpdateRoom(ctx, id, func(r *model.Room) error {
		r.IsPaused = true
		return nil
	})
	require.NoError(t, err)

	msg = readMessage(t, conn)
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, int64(2), data.Version)
}

func TestServe_DeletionClosesConnection(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	id, err := store.CreateRoom(ctx, &model.Room{Name: "r"})
	require.NoError(t, err)

	conn := dial(t, store, id)
	readMessage(t, conn)

	require.NoError(t, store.DeleteRoom(ctx, id))

	msg := readMessage(t, conn)
	assert.Equal(t, string(model.RoomEventDeleted), msg.Type)

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServe_MissingRoomSendsDeleted(t *testing.T) {
	store := memory.New()
	conn := dial(t, store, "nope")

	msg := readMessage(t, conn)
	assert.Equal(t, string(model.RoomEventDeleted), msg.Type)
}
