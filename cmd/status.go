package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayuer/hipbot-go/internal/chat"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the rooms visible to the bot's token",
	Args:  cobra.NoArgs,
	RunE:  runRooms,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List the users on the chat server",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

func init() {
	rootCmd.AddCommand(roomsCmd, usersCmd)
}

func runRooms(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	rooms, err := makeClient(cfg.Chat).ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("listing rooms: %w", err)
	}
	return printRooms(cmd.OutOrStdout(), rooms, cfg.Bot.Rooms)
}

func runUsers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	users, err := makeClient(cfg.Chat).ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}
	return printUsers(cmd.OutOrStdout(), users)
}

// printRooms writes one row per room, marking the ones the bot watches.
func printRooms(w io.Writer, rooms []chat.Room, watched []string) error {
	watch := make(map[string]bool, len(watched))
	for _, r := range watched {
		watch[r] = true
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tWATCHED")
	for _, r := range rooms {
		mark := ""
		if watch[r.ID] || watch[r.Name] {
			mark = "✓"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Name, mark)
	}
	return tw.Flush()
}

func printUsers(w io.Writer, users []chat.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMENTION")
	for _, u := range users {
		mention := ""
		if u.MentionName != "" {
			mention = "@" + u.MentionName
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.ID, u.Name, mention)
	}
	return tw.Flush()
}
