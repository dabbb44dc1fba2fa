// Package cli wires the nbrunner commands.
package cli

import (
	"github.com/spf13/cobra"

	"nbrunner/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "nbrunner",
	Short:        "CI test runner for SDK example notebooks",
	Long:         `Nbrunner executes Jupyter example notebooks unattended: it swaps each notebook's interactive login for service credentials, runs the cells against a fresh kernel and workspace, and reports pass/fail per notebook.`,
	Version:      version.Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
