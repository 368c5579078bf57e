package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dayuer/hipbot-go/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default hipbot configuration file",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil && !initForce {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		return nil
	}
	if err := config.Save(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	fmt.Fprintf(out, "✓ Created config at %s\n", path)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Set chat.token and bot.rooms in %s (or HIPBOT_TOKEN / HIPBOT_ROOMS)\n", path)
	fmt.Fprintln(out, "  2. Check the rooms: hipbot rooms")
	fmt.Fprintln(out, "  3. Start polling:   hipbot run")
	return nil
}
