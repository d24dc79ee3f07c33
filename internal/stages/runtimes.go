package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
	"github.com/sabiqazhar/frappe-env-setup/internal/toolchain"
)

// Node provisions the pinned Node.js runtime and, optionally, yarn.
type Node struct {
	Runner shell.Runner
}

func (n *Node) Name() string { return NameNode }

func (n *Node) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	cfg := st.Config.Node
	pin, err := toolchain.ParsePin(cfg.Version)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("node.version: %w", err)
	}

	nvm := toolchain.NewNode(n.Runner, cfg.NVMDir, cfg.NVMVersion)
	prov, err := nvm.Ensure(ctx, pin)
	if err != nil {
		return orchestrator.Outcome{}, err
	}
	st.Facts.NodeBinDir = prov.BinDir

	out := orchestrator.Skipped(fmt.Sprintf("node v%s already installed", pin))
	if prov.Installed {
		out = orchestrator.Completed(fmt.Sprintf("installed node v%s", pin))
	}

	if cfg.InstallYarn && !fileExists(filepath.Join(prov.BinDir, "yarn")) {
		if err := nvm.InstallGlobal(ctx, pin, "yarn"); err != nil {
			out.Warn(fmt.Sprintf("yarn install failed: %v", err))
		} else {
			out.Status = orchestrator.StatusCompleted
			out.Detail += ", yarn installed"
		}
	}
	return out, nil
}

// Python provisions the pinned CPython. When the pin cannot be installed and
// python.allow_system_fallback is set, the system python3 is used instead and
// the substitution is reported as a warning.
type Python struct {
	Runner shell.Runner
	// System overrides system interpreter discovery in tests.
	System func(ctx context.Context) (toolchain.Provision, error)
}

func (p *Python) Name() string { return NamePython }

func (p *Python) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	cfg := st.Config.Python
	pin, err := toolchain.ParsePin(cfg.Version)
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("python.version: %w", err)
	}

	pyenv := toolchain.NewPython(p.Runner, cfg.PyenvRoot)
	prov, err := pyenv.Ensure(ctx, pin)
	if err == nil {
		st.Facts.PythonExe = prov.Executable
		st.Facts.PythonBinDir = prov.BinDir
		if prov.Installed {
			return orchestrator.Completed(fmt.Sprintf("installed python %s", pin)), nil
		}
		return orchestrator.Skipped(fmt.Sprintf("python %s already installed", pin)), nil
	}
	if !cfg.AllowSystemFallback {
		return orchestrator.Outcome{}, err
	}

	system := p.System
	if system == nil {
		system = pyenv.System
	}
	sys, sysErr := system(ctx)
	if sysErr != nil {
		return orchestrator.Outcome{}, fmt.Errorf("%w; system fallback: %v", err, sysErr)
	}

	st.Facts.PythonExe = sys.Executable
	st.Facts.PythonBinDir = sys.BinDir
	out := orchestrator.Completed(fmt.Sprintf("using system %s at %s", sys.Reported, sys.Executable))
	out.Warn(fmt.Sprintf("python %s could not be provisioned (%v); falling back to system %s", pin, err, sys.Reported))
	return out, nil
}
