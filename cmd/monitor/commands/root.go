package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Signal outcome monitoring engine for forex alerts",
	Long: `Signal outcome monitoring engine.

Continuously evaluates active forex signals against live prices, records
take-profit hits, confirms stop-loss crossings, and writes each signal's
terminal outcome exactly once.

Usage:
  go run ./cmd/monitor [command]

Examples:
  go run ./cmd/monitor start
  go run ./cmd/monitor repair
  go run ./cmd/monitor status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
