package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/client"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format, w: os.Stdout}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Player:
		o.printPlayer(v)
	case response.AuthResponse:
		o.printAuth(v)
	case response.Room:
		o.printRoom(v)
	case response.RoomList:
		o.printRoomList(v)
	case response.Presence:
		o.printPresence(v)
	case response.Health:
		o.printHealth(v)
	case client.View:
		o.printView(v)
	default:
		o.printJSON(data)
	}
}

func (o *Output) printPlayer(p response.Player) {
	guestStr := "no"
	if p.IsGuest {
		guestStr = "yes"
	}
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.DisplayName, p.ID)
	fmt.Fprintf(o.w, "Guest: %s\n", guestStr)
}

func (o *Output) printAuth(a response.AuthResponse) {
	o.printPlayer(a.Player)
	fmt.Fprintf(o.w, "Token: %s\n", a.SessionToken)
}

func (o *Output) printRoom(r response.Room) {
	fmt.Fprintf(o.w, "Room: %s (%s)\n", r.Name, r.ID)
	fmt.Fprintf(o.w, "Admin: %s\n", r.Admin.Name)
	fmt.Fprintf(o.w, "Clock: %s + %ds buffer, %ds increment\n",
		client.FormatSeconds(r.Seconds), r.Buffer, r.Increment)

	state := "waiting"
	switch {
	case r.HasGameStarted && r.IsPaused:
		state = "paused"
	case r.HasGameStarted:
		state = "running"
	}
	fmt.Fprintf(o.w, "State: %s\n", state)

	fmt.Fprintf(o.w, "Players (%d):\n", len(r.Players))
	for _, p := range r.Players {
		marker := "  "
		if p.ID == r.PlayerTurn.ID {
			marker = "> "
		}
		fmt.Fprintf(o.w, "%s%-20s %s\n", marker, p.Name, client.FormatSeconds(p.Seconds))
	}

	// Operations are newest first
	if len(r.Operations) > 0 {
		last := r.Operations[0]
		fmt.Fprintf(o.w, "Last: %s by %s\n", last.Command, last.SentBy.Name)
	}
}

func (o *Output) printRoomList(l response.RoomList) {
	if len(l.Rooms) == 0 {
		fmt.Fprintln(o.w, "No rooms")
		return
	}
	for _, r := range l.Rooms {
		started := ""
		if r.HasGameStarted {
			started = " [started]"
		}
		fmt.Fprintf(o.w, "%s  %-24s %d players, admin %s%s\n",
			r.ID, r.Name, r.PlayerCount, r.Admin.Name, started)
	}
}

func (o *Output) printPresence(p response.Presence) {
	if p.InRoom == nil {
		fmt.Fprintln(o.w, "Not in a room")
		return
	}
	fmt.Fprintf(o.w, "In room: %s (%s)\n", p.InRoom.RoomName, p.InRoom.RoomID)
	fmt.Fprintf(o.w, "Joined: %s\n", p.InRoom.JoinedAt.Format("2006-01-02 15:04:05"))
}

func (o *Output) printHealth(h response.Health) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Storage != "" {
		fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	}
}

func (o *Output) printView(v client.View) {
	if v.RoomName == "" {
		return
	}

	var flags []string
	switch {
	case !v.Started:
		flags = append(flags, "waiting")
	case v.Paused:
		flags = append(flags, "paused")
	}
	if v.InBuffer {
		flags = append(flags, "buffer")
	}
	if v.TimeUp {
		flags = append(flags, "time up")
	}
	if v.IsMyTurn {
		flags = append(flags, "your turn")
	}

	status := ""
	if len(flags) > 0 {
		status = " [" + strings.Join(flags, ", ") + "]"
	}
	fmt.Fprintf(o.w, "\r%s: %-6s %s%s\033[K", v.CurrentPlayer, v.Label, bar(v.TimeFraction, 20), status)
}

func bar(fraction float64, width int) string {
	filled := int(fraction*float64(width) + 0.5)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
