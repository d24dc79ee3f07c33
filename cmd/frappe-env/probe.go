package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sabiqazhar/frappe-env-setup/internal/health"
	"github.com/sabiqazhar/frappe-env-setup/internal/stages"
)

var probeDeep bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Wait until the database and redis services accept connections",
	Long: `Probe dials the database and the three redis roles with the configured
attempt count and interval. It exits 3 when the database never becomes
reachable. With --deep it also runs protocol-level checks (SELECT VERSION,
PING) against each service once.`,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().BoolVar(&probeDeep, "deep", false, "also run protocol-level health checks")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	for _, t := range stages.Targets(cfg) {
		rep, err := app.prober.Wait(ctx, t)
		fmt.Fprintf(out, "%-16s %-22s %-10s attempts=%d\n", t.Name, t.Addr(), rep.Outcome, rep.Attempts)
		if err != nil {
			return err
		}
	}

	if !probeDeep {
		return nil
	}
	results := app.checker.Run(ctx)
	for _, name := range app.checker.Names() {
		r := results[name]
		status := "ok"
		detail := r.Detail
		if !r.OK {
			status, detail = "failed", r.Error
		}
		fmt.Fprintf(out, "%-16s %-6s %4dms %s\n", name, status, r.LatencyMs, detail)
	}
	if !health.AllOK(results) {
		return fmt.Errorf("deep health check failed")
	}
	return nil
}
