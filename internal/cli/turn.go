package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/turnclock/internal/api/request"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/model"
)

func newTurnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Raw clock commands",
		Long: `Send clock commands directly to the server.

These commands do not track a local countdown, so end-turn and pause
take the seconds you report explicitly. Use "tclock play" for a live
clock that reports its own time.`,
	}

	cmd.AddCommand(newSecondsCmd("end", "end-turn", "End your turn with the seconds left in your bank"))
	cmd.AddCommand(newSecondsCmd("pause", "toggle-pause", "Pause or resume the clock, saving the seconds left"))
	cmd.AddCommand(newBareTurnCmd("reset", "reset-time", "Give the current player their full time back"))
	cmd.AddCommand(newBareTurnCmd("previous", "previous-turn", "Hand the clock back to the previous player"))
	cmd.AddCommand(newSetTimeCmd())

	return cmd
}

func newSecondsCmd(use, action, short string) *cobra.Command {
	var seconds int

	cmd := &cobra.Command{
		Use:   use + " <room-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Room

			req := request.SecondsRequest{Seconds: &seconds}
			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), action), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&seconds, "seconds", 0, "Seconds left in your bank (required)")
	_ = cmd.MarkFlagRequired("seconds")

	return cmd
}

func newBareTurnCmd(use, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <room-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Room

			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), action), nil, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newSetTimeCmd() *cobra.Command {
	var playerID string
	var seconds int

	cmd := &cobra.Command{
		Use:   "set-time <room-id>",
		Short: "Set a player's time bank (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds < 0 {
				return fmt.Errorf("--seconds must not be negative")
			}

			var result response.Room
			req := request.SetTimeRequest{PlayerID: playerID, Seconds: &seconds}
			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), "set-time"), req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&playerID, "player", "", "Player ID (required)")
	cmd.Flags().IntVar(&seconds, "seconds", 0, "New time bank in seconds (required)")
	_ = cmd.MarkFlagRequired("player")
	_ = cmd.MarkFlagRequired("seconds")

	return cmd
}
