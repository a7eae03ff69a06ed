// Package cli implements the parley command line interface.
package cli

import (
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/parley-agents/parley/internal/cli.version=1.2.3"
	version = "0.3.0"
	logo    = "\n" +
		"                     _\n" +
		"  _ __   __ _ _ __| | ___ _   _\n" +
		" | '_ \\ / _` | '__| |/ _ \\ | | |\n" +
		" | |_) | (_| | |  | |  __/ |_| |\n" +
		" | .__/ \\__,_|_|  |_|\\___|\\__, |\n" +
		" |_|                      |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley - personal scheduling agents that negotiate meetings",
	Long:  color.CyanString(logo) + "\nAgents that hold their person's calendar and negotiate meeting times with each other.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; the environment may be set elsewhere.
		godotenv.Load()
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(agentsCmd)
}
