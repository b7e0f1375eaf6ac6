package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/client"
	"github.com/mcoot/turnclock/internal/dependencies/clock"
	"github.com/mcoot/turnclock/internal/identity"
	"github.com/mcoot/turnclock/internal/model"
)

const playHelp = `Keys (press Enter after each):
  n  end your turn
  b  hand the clock back to the previous player
  p  pause or resume
  r  reset the current player's time
  s  start the game (admin)
  l  leave the room
  q  close the room for everyone
  ?  show this help`

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play <room-id>",
		Short: "Follow a room with a live local clock",
		Long: `Follow a room and run its clock locally, one tick per second.

The local clock is re-seeded from the server whenever the room changes.
Turn commands report the seconds left on the local clock.

` + playHelp,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(cmd, model.RoomID(args[0]))
		},
	}
}

func play(cmd *cobra.Command, id model.RoomID) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var me response.Player
	if err := apiClient.Get(ctx, "/api/v1/players/me", &me); err != nil {
		return err
	}

	logLevel := slog.LevelWarn
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))

	remote := NewRemoteRoom(apiClient, cfg)
	provider := identity.NewStatic(model.PlayerRef{ID: model.PlayerID(me.ID), Name: me.DisplayName})
	session := client.NewSession(id, remote, remote, provider, clock.New(), logger)

	out := NewOutput("text")
	out.w = cmd.OutOrStdout()
	out.PrintMessage(playHelp)

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	keys := make(chan string)
	go readKeys(cmd.InOrStdin(), keys)

	for {
		select {
		case err := <-runErr:
			fmt.Fprintln(out.w)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err

		case <-session.Updates():
			out.Print(session.View())

		case sig := <-session.Signals():
			switch sig {
			case client.SignalRoomGone:
				out.PrintMessage("\nRoom closed")
				cancel()
			case client.SignalNotMember:
				out.PrintMessage("\nYou are not seated in this room")
			case client.SignalGameStarted:
				out.PrintMessage("\nGame started")
			}

		case key, ok := <-keys:
			if !ok {
				cancel()
				continue
			}
			if err := playKey(ctx, session, key, out); err != nil {
				out.PrintMessage("\n" + err.Error())
			}
			out.Print(session.View())
		}
	}
}

func playKey(ctx context.Context, session *client.Session, key string, out *Output) error {
	switch key {
	case "n":
		return session.NextTurn(ctx)
	case "b":
		return session.PreviousTurn(ctx)
	case "p":
		return session.TogglePause(ctx)
	case "r":
		return session.ResetTime(ctx)
	case "s":
		return session.StartGame(ctx)
	case "l":
		return session.Leave(ctx)
	case "q":
		return session.Quit(ctx)
	case "?", "h":
		out.PrintMessage("\n" + playHelp)
	case "":
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func readKeys(r io.Reader, keys chan<- string) {
	defer close(keys)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		keys <- strings.ToLower(strings.TrimSpace(scanner.Text()))
	}
}
