package client

import (
	"fmt"

	"github.com/mcoot/turnclock/internal/countdown"
	"github.com/mcoot/turnclock/internal/model"
)

type snapshot struct {
	countdown.Snapshot
}

// timeUp is true once the player's own bank is spent
func (s snapshot) timeUp() bool {
	return s.Current <= 0
}

// View holds display values for a room and its local clock
type View struct {
	RoomName       string
	CurrentPlayer  string
	Label          string
	TimeFraction   float64
	BufferFraction float64
	InBuffer       bool
	IsMyTurn       bool
	IsAdmin        bool
	TimeUp         bool
	Paused         bool
	Started        bool
}

// NewView derives the display values. A nil room yields the zero View.
func NewView(room *model.Room, clk countdown.Snapshot, me model.PlayerID) View {
	if room == nil {
		return View{}
	}

	v := View{
		RoomName:       room.Name,
		Label:          FormatSeconds(clk.Current),
		TimeFraction:   fraction(clk.Current, room.Seconds),
		BufferFraction: fraction(clk.Buffer-1, room.Buffer),
		InBuffer:       clk.InBuffer(),
		IsMyTurn:       me != "" && room.PlayerTurn.ID == me,
		IsAdmin:        me != "" && room.IsAdmin(me),
		TimeUp:         snapshot{clk}.timeUp(),
		Paused:         room.IsPaused,
		Started:        room.HasGameStarted,
	}
	if current := room.CurrentPlayer(); current != nil {
		v.CurrentPlayer = current.Name
	}
	return v
}

func fraction(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return min(max(float64(n)/float64(d), 0), 1)
}

// FormatSeconds renders m:ss, or bare seconds under a minute
func FormatSeconds(secs int) string {
	secs = max(secs, 0)
	if secs < 60 {
		return fmt.Sprintf("%d", secs)
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
