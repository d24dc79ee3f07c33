package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabiqazhar/frappe-env-setup/internal/compose"
)

var upCmd = &cobra.Command{
	Use:   "up [container...]",
	Short: "Start the development containers on the host",
	Long: `Up runs docker compose up -d for the configured compose file and
project, then checks each named container (default: the application
container) and starts any that are stopped.`,
	RunE: runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	docker, err := compose.NewDockerClient()
	if err != nil {
		return err
	}
	defer docker.Close()

	states, err := compose.NewLauncher(app.runner, docker, cfg.Compose).Up(cmd.Context(), args...)
	for _, st := range states {
		note := ""
		if st.Started {
			note = " (started)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s%s\n", st.Name, st.Status, note)
	}
	if err != nil {
		return fmt.Errorf("up: %w", err)
	}
	return nil
}
