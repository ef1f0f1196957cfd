// cmd_list.go - Listen-Commands fuer Journal und Umgebung
// Hauptfunktionen: HistoryHandler, EnvHandler
package cmd

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sysds/sysds/envconfig"
	"github.com/sysds/sysds/history"
)

// HistoryHandler - Listet die letzten Submissions aus dem Journal
func HistoryHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History == "" {
		return errors.New("no journal configured, set SYSDS_HISTORY or history in --config")
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer store.Close()

	session, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")
	entries, err := store.List(cmd.Context(), session, limit)
	if err != nil {
		return err
	}

	var data [][]string
	for _, e := range entries {
		status := "ok"
		if e.Error != "" {
			status = firstLine(e.Error)
		}
		data = append(data, []string{
			e.Session[:min(8, len(e.Session))],
			humanize.Time(e.Time),
			fmt.Sprint(e.Statements),
			e.Outputs,
			e.Duration.Round(time.Millisecond).String(),
			status,
		})
	}

	renderTable(cmd.OutOrStdout(), []string{"SESSION", "WHEN", "STATEMENTS", "OUTPUTS", "DURATION", "STATUS"}, data)
	return nil
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return s
}

// EnvHandler - Zeigt alle Umgebungsvariablen mit aktuellem Wert
func EnvHandler(cmd *cobra.Command, _ []string) error {
	vars := envconfig.AsMap()
	names := make([]string, 0, len(vars))
	for k := range vars {
		names = append(names, k)
	}
	slices.Sort(names)

	var data [][]string
	for _, k := range names {
		v := vars[k]
		data = append(data, []string{v.Name, fmt.Sprint(v.Value), v.Description})
	}

	renderTable(cmd.OutOrStdout(), []string{"NAME", "VALUE", "DESCRIPTION"}, data)
	return nil
}

// newHistoryCmd - Erstellt den history Command
func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled submissions",
		Args:  cobra.NoArgs,
		RunE:  HistoryHandler,
	}
	historyCmd.Flags().String("session", "", "Only show submissions of this session")
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries")
	return historyCmd
}

// newEnvCmd - Erstellt den env Command
func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE:  EnvHandler,
	}
}
