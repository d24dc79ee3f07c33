package stages

import (
	"context"
	"fmt"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/pkgmgr"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Packages installs the configured system packages through the detected
// package manager. A failed package is a warning unless packages.strict is set.
type Packages struct {
	Runner   shell.Runner
	Detector PackageDetector
}

func (p *Packages) Name() string { return NamePackages }

func (p *Packages) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	cfg := st.Config.Packages
	if len(cfg.Install) == 0 {
		return orchestrator.Skipped("no packages configured"), nil
	}

	kind, err := p.Detector.Detect()
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("detecting package manager: %w", err)
	}
	st.Facts.PackageManager = kind
	if kind == pkgmgr.Unknown {
		out := orchestrator.Skipped("no supported package manager found")
		out.Warn("install system packages manually: " + fmt.Sprint(cfg.Install))
		return out, nil
	}

	mgr := pkgmgr.For(kind)
	wrap := func(c shell.Command) shell.Command {
		if mgr.NeedsRoot() {
			return shell.Sudo(c)
		}
		return c
	}

	out := orchestrator.Outcome{Status: orchestrator.StatusCompleted}
	if refresh, ok := mgr.Refresh(); ok {
		if _, err := p.Runner.Run(ctx, wrap(refresh)); err != nil {
			if cfg.Strict {
				return out, fmt.Errorf("refreshing %s index: %w", kind, err)
			}
			out.Warn(fmt.Sprintf("%s index refresh failed: %v", kind, err))
		}
	}

	installed := 0
	for _, logical := range cfg.Install {
		native, ok := pkgmgr.Resolve(kind, logical)
		if !ok {
			out.Warn(fmt.Sprintf("package %s has no %s equivalent", logical, kind))
			continue
		}
		if _, err := p.Runner.Run(ctx, wrap(mgr.Install(native))); err != nil {
			if cfg.Strict {
				return out, fmt.Errorf("installing %s: %w", native, err)
			}
			out.Warn(fmt.Sprintf("package %s failed to install: %v", native, err))
			continue
		}
		installed++
	}

	out.Detail = fmt.Sprintf("%d/%d packages installed via %s", installed, len(cfg.Install), kind)
	return out, nil
}
