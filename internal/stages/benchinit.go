package stages

import (
	"context"
	"fmt"
	"os"

	"github.com/sabiqazhar/frappe-env-setup/internal/bench"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// BenchInit creates the bench directory unless it already exists.
type BenchInit struct {
	Runner shell.Runner
}

func (b *BenchInit) Name() string { return NameBenchInit }

func (b *BenchInit) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	if dirExists(st.Paths.Bench) {
		return orchestrator.Skipped(st.Paths.Bench + " already exists"), nil
	}
	if err := os.MkdirAll(st.Paths.Workspace, 0o755); err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("creating workspace %s: %w", st.Paths.Workspace, err)
	}

	opts := bench.InitOptions{
		FrappeBranch: st.Config.Frappe.Branch,
		FrappePath:   st.Config.Frappe.Repo,
		Python:       st.Facts.PythonExe,
	}
	if err := benchFor(b.Runner, st).Init(ctx, opts); err != nil {
		return orchestrator.Outcome{}, err
	}
	return orchestrator.Completed(fmt.Sprintf("initialized %s on %s", st.Paths.Bench, opts.FrappeBranch)), nil
}
