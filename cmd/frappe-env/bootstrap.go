package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/report"
)

var bootstrapJSON bool

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Provision the workspace, bench and site, then exit",
	Long: `Bootstrap runs every stage in order: permissions, system packages,
node, python, bench CLI, service readiness, bench init, global config,
app fetch and site setup. Stages that find their work already done are
skipped, so the command is safe to re-run.

Exit codes: 0 success, 2 configuration error, 3 dependency timeout,
the failing tool's exit code for external tool errors, 1 otherwise.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().BoolVar(&bootstrapJSON, "json", false, "print the run result as JSON instead of a summary")
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := app.orchestrator.Run(ctx)
	return finishBootstrap(os.Stdout, result, err, bootstrapJSON)
}

// finishBootstrap prints result and returns the run error. A print failure
// is only logged so the exit code still reflects the run.
func finishBootstrap(w io.Writer, result *orchestrator.RunResult, runErr error, asJSON bool) error {
	if result != nil {
		if err := printRunResult(w, result, asJSON); err != nil {
			slog.Warn("could not print run result", "error", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("bootstrap failed: %w", runErr)
	}
	return nil
}

func printRunResult(w io.Writer, result *orchestrator.RunResult, asJSON bool) error {
	if !asJSON {
		return report.Summary(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
