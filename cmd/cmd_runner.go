// cmd_runner.go - Versteckter Engine-Subprozess
// Hauptfunktionen: newRunnerCmd
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sysds/sysds/runner"
)

// newRunnerCmd - Erstellt den versteckten runner Command
// Der Context startet dieses Binary mit "runner --port N" als Engine.
func newRunnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "runner",
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runner.Execute(args)
		},
	}
}
