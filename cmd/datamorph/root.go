package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "datamorph",
	Short: "AI-driven data transformation with validated output",
	Long: `DataMorph turns a natural language prompt into a SQL transformation,
executes it against your database, and validates the output with a hybrid
suite of deterministic and AI-generated tests.

Failed validations feed a bounded remediation loop: the failure context is
analyzed, a corrected transformation is generated, the target is rebuilt
from a clean slate and re-validated, up to a fixed number of iterations.
Every run ends in exactly one of two states: success or exhausted.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
