package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayuer/hipbot-go/internal/chat"
)

var sayCmd = &cobra.Command{
	Use:   "say <room> <text...>",
	Short: "Post a single message to a room and exit",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSay,
}

func init() {
	rootCmd.AddCommand(sayCmd)
}

func runSay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	newLogger(cmd.ErrOrStderr(), cfg.Log)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	return say(ctx, cmd.OutOrStdout(), makeClient(cfg.Chat), args[0], strings.Join(args[1:], " "))
}

// say posts text to the room named by key. It needs no bot identity.
func say(ctx context.Context, out io.Writer, c chat.Client, key, text string) error {
	room, err := findRoom(ctx, c, key)
	if err != nil {
		return err
	}
	if err := c.SendMessage(ctx, room.ID, text); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Sent to %s\n", room.Name)
	return nil
}
