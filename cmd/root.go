package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "hipbot",
	Short: "hipbot — a polling chat bot for HipChat rooms",
	Long: `hipbot watches a set of HipChat rooms, hands each new message to the
registered reactive plugins and runs the non-reactive plugins once per
polling cycle.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.hipbot/config.yaml)")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hipbot version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hipbot %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
