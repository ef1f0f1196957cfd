// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, loadConfig
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/containerd/console"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sysds/sysds/envconfig"
	"github.com/sysds/sysds/logutil"
	"github.com/sysds/sysds/sds"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// loadConfig - Liest die Context-Konfiguration aus Umgebung und --config
func loadConfig(cmd *cobra.Command) (sds.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return sds.ConfigFromEnvironment(), nil
	}
	return sds.LoadConfig(path)
}

// openContext - Oeffnet einen Context und setzt den Logger
func openContext(cmd *cobra.Command) (*sds.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logutil.NewLogger(os.Stderr, cfg.LogLevel))
	return sds.Open(cmd.Context(), cfg)
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		console.ConsoleFromFile(os.Stdin) //nolint:errcheck
	}

	rootCmd := &cobra.Command{
		Use:           "sysds",
		Short:         "Lazy client for a remote matrix engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.PersistentFlags().String("config", "", "YAML file with context settings")

	// Commands erstellen
	execCmd := newExecCmd()
	sigmoidCmd := newSigmoidCmd()
	historyCmd := newHistoryCmd()
	envCmd := newEnvCmd()
	runnerCmd := newRunnerCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()
	clientEnvs := []envconfig.EnvVar{
		envVars["SYSDS_HOST"],
		envVars["SYSDS_RUNNER"],
		envVars["SYSDS_WORKDIR"],
		envVars["SYSDS_MEMORY"],
		envVars["SYSDS_STARTUP_TIMEOUT"],
		envVars["SYSDS_COMPRESSION"],
		envVars["SYSDS_FORCE_DENSE"],
		envVars["SYSDS_HISTORY"],
		envVars["SYSDS_DEBUG"],
	}

	for _, cmd := range []*cobra.Command{execCmd, sigmoidCmd, historyCmd} {
		switch cmd {
		case historyCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["SYSDS_HISTORY"]})
		default:
			appendEnvDocs(cmd, clientEnvs)
		}
	}

	rootCmd.AddCommand(
		execCmd,
		sigmoidCmd,
		historyCmd,
		envCmd,
		runnerCmd,
	)

	return rootCmd
}
