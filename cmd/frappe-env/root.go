package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/telemetry"
)

var (
	cfgFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "frappe-env",
	Short: "frappe-env bootstraps a Frappe/ERPNext development environment",
	Long: `frappe-env prepares a Frappe development workspace: it installs system
packages, provisions pinned Node.js and Python runtimes, installs the bench
CLI, waits for the database and redis containers, then initializes a bench
and a site. Every step is idempotent, so re-running converges.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// configLoadError marks failures to read configuration so they exit like a
// failed validation.
type configLoadError struct{ err error }

func (e *configLoadError) Error() string { return e.err.Error() }
func (e *configLoadError) Unwrap() error { return e.err }
func (e *configLoadError) ExitCode() int { return orchestrator.ExitConfig }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, success, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		telemetry.InstallLogger(os.Stderr, telemetry.ParseLevel(logLevel), nil)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return &configLoadError{err: fmt.Errorf("loading config: %w", err)}
		}

		// --log-level flag takes precedence over value in config file.
		level := cfg.Log.Level
		if cmd.Flags().Changed("log-level") || level == "" {
			level = logLevel
		}

		runLog, err := telemetry.OpenRunLog(cfg.Log.Dir, time.Now())
		if err != nil {
			slog.Warn("run log disabled", "error", err)
			runLog = nil
		}
		telemetry.InstallLogger(os.Stderr, telemetry.ParseLevel(level), runLog)

		app, err = buildAppContext(cmd.Context(), cfg, runLog)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}
		return nil
	}

	rootCmd.AddCommand(bootstrapCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(historyCmd)
}

// Execute runs the root command and returns the process exit code. Fatal
// errors are printed together with the run log path.
func Execute() int {
	err := rootCmd.ExecuteContext(context.Background())

	var logPath string
	if app != nil {
		logPath = app.logPath()
		app.close()
	}
	if err == nil {
		return orchestrator.ExitOK
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	if logPath != "" {
		fmt.Fprintf(os.Stderr, "see log file: %s\n", logPath)
	}
	return orchestrator.ExitCode(err)
}
