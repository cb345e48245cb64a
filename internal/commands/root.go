// Package commands implements the flowstage command-line interface.
package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowstage",
	Short: "Run streaming pipelines built from flowstage compute nodes",
	Long: `flowstage runs a demo integer pipeline described in YAML and records
how every node ended in a SQLite journal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
