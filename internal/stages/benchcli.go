package stages

import (
	"context"
	"fmt"
	"os"

	"github.com/sabiqazhar/frappe-env-setup/internal/bench"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// BenchCLI installs frappe-bench with pip --user when no bench executable
// can be found.
type BenchCLI struct {
	Runner shell.Runner
	Home   string
	Locate func(candidates []string) (string, bool)
}

func (b *BenchCLI) Name() string { return NameBenchCLI }

func (b *BenchCLI) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	candidates := bench.Candidates(b.Home, st.Config.Python.PyenvRoot)
	if exe, ok := b.Locate(candidates); ok {
		st.Facts.BenchExe = exe
		return orchestrator.Skipped("bench found at " + exe), nil
	}

	python := st.Facts.PythonExe
	if python == "" {
		python = "python3"
	}
	pip := shell.Command{
		Name: python,
		Args: []string{"-m", "pip", "install", "--user", "frappe-bench"},
	}
	if st.Facts.PythonBinDir != "" {
		pip.Env = []string{"PATH=" + st.Facts.PythonBinDir + string(os.PathListSeparator) + os.Getenv("PATH")}
	}
	if _, err := b.Runner.Run(ctx, pip); err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("pip install frappe-bench: %w", err)
	}

	// pip --user writes scripts to ~/.local/bin, which leads the candidates.
	exe, ok := b.Locate(candidates)
	if !ok {
		return orchestrator.Outcome{}, fmt.Errorf("frappe-bench installed but no bench executable found in %v or PATH", candidates)
	}
	st.Facts.BenchExe = exe
	return orchestrator.Completed("installed bench at " + exe), nil
}
