package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mcoot/turnclock/internal/api/request"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/client"
	"github.com/mcoot/turnclock/internal/model"
)

// RemoteRoom issues room commands over the JSON API and follows rooms
// through their event stream
type RemoteRoom struct {
	api *Client
	cfg *Config
}

// Ensure RemoteRoom implements the session interfaces
var (
	_ client.RoomCommands = (*RemoteRoom)(nil)
	_ client.RoomFeed     = (*RemoteRoom)(nil)
)

// NewRemoteRoom creates a RemoteRoom
func NewRemoteRoom(api *Client, cfg *Config) *RemoteRoom {
	return &RemoteRoom{api: api, cfg: cfg}
}

func roomPath(id model.RoomID, action string) string {
	path := "/api/v1/rooms/" + url.PathEscape(string(id))
	if action != "" {
		path += "/" + action
	}
	return path
}

func (r *RemoteRoom) post(ctx context.Context, id model.RoomID, action string, body any) (*model.Room, error) {
	var result *response.Room
	if err := r.api.Post(ctx, roomPath(id, action), body, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.ToModel(), nil
}

func (r *RemoteRoom) StartGame(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.post(ctx, id, "start", nil)
}

func (r *RemoteRoom) EndTurn(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error) {
	return r.post(ctx, id, "end-turn", request.SecondsRequest{Seconds: &seconds})
}

func (r *RemoteRoom) StopOrStartTimer(ctx context.Context, id model.RoomID, seconds int) (*model.Room, error) {
	return r.post(ctx, id, "toggle-pause", request.SecondsRequest{Seconds: &seconds})
}

func (r *RemoteRoom) ResetTime(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.post(ctx, id, "reset-time", nil)
}

func (r *RemoteRoom) PreviousTurn(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.post(ctx, id, "previous-turn", nil)
}

func (r *RemoteRoom) LeaveRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.post(ctx, id, "leave", nil)
}

func (r *RemoteRoom) DeleteRoom(ctx context.Context, id model.RoomID) error {
	return r.api.Delete(ctx, roomPath(id, ""))
}

// SubscribeRoom follows the room's SSE stream. The channel closes when ctx
// is done, the stream ends or the room is deleted. A missing room yields a
// single deleted event.
func (r *RemoteRoom) SubscribeRoom(ctx context.Context, id model.RoomID) (<-chan model.RoomEvent, error) {
	body, err := openStream(ctx, r.cfg, roomPath(id, "events"))
	if errors.Is(err, model.ErrRoomNotFound) {
		out := make(chan model.RoomEvent, 1)
		out <- model.RoomDeleted(id, time.Now())
		close(out)
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(chan model.RoomEvent, 1)
	go func() {
		defer close(out)
		defer func() { _ = body.Close() }()

		_ = readSSE(body, func(name, data string) bool {
			if name == "connected" {
				return true
			}
			var payload response.RoomEvent
			if err := json.Unmarshal([]byte(data), &payload); err != nil {
				return true
			}
			ev := payload.ToModel()
			select {
			case out <- ev:
			case <-ctx.Done():
				return false
			}
			return ev.Kind != model.RoomEventDeleted
		})
	}()
	return out, nil
}

// openStream connects to an SSE endpoint. A 404 is reported as
// model.ErrRoomNotFound.
func openStream(ctx context.Context, cfg *Config, path string) (io.ReadCloser, error) {
	u := strings.TrimSuffix(cfg.ServerURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	// No timeout: the stream stays open until ctx is done
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, model.ErrRoomNotFound
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}

// readSSE parses an event stream, calling fn for each complete event until
// fn returns false or the stream ends
func readSSE(body io.Reader, fn func(name, data string) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var name string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			if name != "" {
				if !fn(name, strings.Join(dataLines, "\n")) {
					return nil
				}
			}
			name = ""
			dataLines = nil
		}
	}
	return scanner.Err()
}
