package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/turnclock/internal/api/request"
	"github.com/mcoot/turnclock/internal/api/response"
	"github.com/mcoot/turnclock/internal/model"
)

func newRoomCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "room",
		Short: "Room management commands",
	}

	cmd.AddCommand(newRoomListCmd())
	cmd.AddCommand(newRoomCreateCmd())
	cmd.AddCommand(newRoomGetCmd())
	cmd.AddCommand(newRoomJoinCmd())
	cmd.AddCommand(newRoomLeaveCmd())
	cmd.AddCommand(newRoomStartCmd())
	cmd.AddCommand(newRoomDeleteCmd())

	return cmd
}

// printRoom prints a room returned by a command, or msg when the command
// returned no body
func printRoom(result *response.Room, msg string) {
	out := NewOutput(cfg.Output)
	if result == nil {
		out.PrintMessage(msg)
		return
	}
	out.Print(*result)
}

func newRoomListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.RoomList

			if err := apiClient.Get(cmd.Context(), "/api/v1/rooms", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newRoomCreateCmd() *cobra.Command {
	var minutes, buffer, increment int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room and join it as admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.CreateRoomRequest{}
			if cmd.Flags().Changed("minutes") {
				req.Minutes = &minutes
			}
			if cmd.Flags().Changed("buffer") {
				req.Buffer = &buffer
			}
			if cmd.Flags().Changed("increment") {
				req.Increment = &increment
			}

			var result response.Room
			if err := apiClient.Post(cmd.Context(), "/api/v1/rooms", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&minutes, "minutes", 0, "Minutes per player (default: server default)")
	cmd.Flags().IntVar(&buffer, "buffer", 0, "Buffer seconds per turn (default: server default)")
	cmd.Flags().IntVar(&increment, "increment", 0, "Seconds added after each turn (default: server default)")

	return cmd
}

func newRoomGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get room details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Room

			if err := apiClient.Get(cmd.Context(), roomPath(model.RoomID(args[0]), ""), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newRoomJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <id>",
		Short: "Join a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *response.Room

			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), "join"), nil, &result); err != nil {
				return err
			}

			printRoom(result, "Joined")
			return nil
		},
	}
}

func newRoomLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <id>",
		Short: "Leave a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *response.Room

			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), "leave"), nil, &result); err != nil {
				return err
			}

			printRoom(result, "Left room; it was closed")
			return nil
		},
	}
}

func newRoomStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Start the game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result *response.Room

			if err := apiClient.Post(cmd.Context(), roomPath(model.RoomID(args[0]), "start"), nil, &result); err != nil {
				return err
			}

			printRoom(result, "Started")
			return nil
		},
	}
}

func newRoomDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Close a room for everyone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiClient.Delete(cmd.Context(), roomPath(model.RoomID(args[0]), "")); err != nil {
				return err
			}

			NewOutput(cfg.Output).PrintMessage("Room deleted")
			return nil
		},
	}
}
