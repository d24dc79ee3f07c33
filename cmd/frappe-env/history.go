package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabiqazhar/frappe-env-setup/internal/report"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent bootstrap runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if app.history == nil {
		return errors.New("run history is unavailable; check the configuration and the log above")
	}
	runs, err := app.history.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	return report.History(cmd.OutOrStdout(), runs, time.Now())
}
