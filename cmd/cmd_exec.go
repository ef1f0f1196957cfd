// cmd_exec.go - Skripte und Demo-Berechnungen ausfuehren
// Hauptfunktionen: ExecHandler, SigmoidHandler
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sysds/sysds/sds"
)

// ExecHandler - Sendet ein Skript an die Engine und gibt die Outputs aus
// Das Skript wird aus der Datei oder bei "-" von stdin gelesen.
func ExecHandler(cmd *cobra.Command, args []string) error {
	var script []byte
	var err error
	if args[0] == "-" {
		script, err = io.ReadAll(cmd.InOrStdin())
	} else {
		script, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	outputs, _ := cmd.Flags().GetStringSlice("output")

	c, err := openContext(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	vals, err := c.Exec(cmd.Context(), string(script), outputs...)
	if err != nil {
		return describe(err)
	}
	for i, v := range vals {
		printValue(cmd.OutOrStdout(), outputs[i], v)
	}
	return nil
}

// SigmoidHandler - Berechnet sigmoid fuer eine Zeile von Zahlen
func SigmoidHandler(cmd *cobra.Command, args []string) error {
	values := make([]float64, len(args))
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		values[i] = v
	}

	c, err := openContext(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	m, err := sds.Sigmoid(c.FromSlice(1, len(values), values)).Compute(cmd.Context())
	if err != nil {
		return describe(err)
	}
	printValue(cmd.OutOrStdout(), "sigmoid", m)
	return nil
}

// describe - Ergaenzt Backend-Fehler um einen Hinweis
func describe(err error) error {
	if errors.Is(err, sds.ErrBackendFault) {
		return fmt.Errorf("engine not responding: %w", err)
	}
	return err
}

// newExecCmd - Erstellt den exec Command
func newExecCmd() *cobra.Command {
	execCmd := &cobra.Command{
		Use:     "exec SCRIPT",
		Short:   "Run a script on the engine and print selected variables",
		Example: "  sysds exec prog.dml -o X -o s\n  echo 'x = sum(seq(1, 10, 1));' | sysds exec - -o x",
		Args:    cobra.ExactArgs(1),
		RunE:    ExecHandler,
	}
	execCmd.Flags().StringSliceP("output", "o", nil, "Variable to fetch after the run (repeatable)")
	return execCmd
}

// newSigmoidCmd - Erstellt den sigmoid Command
func newSigmoidCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sigmoid VALUE...",
		Short: "Compute the logistic function of a row vector on the engine",
		Args:  cobra.MinimumNArgs(1),
		RunE:  SigmoidHandler,
	}
}
