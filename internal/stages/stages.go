// Package stages implements the bootstrap steps run by the orchestrator.
// Each stage is idempotent: when its target already exists it reports
// Skipped and leaves the target untouched.
package stages

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/sabiqazhar/frappe-env-setup/internal/bench"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/pkgmgr"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Stage names as they appear in logs, history and the API.
const (
	NamePermissions  = "permissions"
	NamePackages     = "system-packages"
	NameNode         = "node"
	NamePython       = "python"
	NameBenchCLI     = "bench-cli"
	NameWaitServices = "wait-services"
	NameBenchInit    = "bench-init"
	NameGlobalConfig = "global-config"
	NameFetchApps    = "fetch-apps"
	NameSite         = "site"
)

// Waiter blocks until a service is reachable; *probe.Prober satisfies it.
type Waiter interface {
	Wait(ctx context.Context, target probe.Target) (probe.Report, error)
}

// PackageDetector finds the host package manager; *pkgmgr.Detector satisfies it.
type PackageDetector interface {
	Detect() (pkgmgr.Kind, error)
}

// Deps are the collaborators shared by the stages.
type Deps struct {
	Runner   shell.Runner
	Waiter   Waiter
	Detector PackageDetector
	// Home is the invoking user's home directory, used for bench discovery.
	Home string
}

// Sequence returns the bootstrap stages in execution order.
func Sequence(d Deps) []orchestrator.Stage {
	return []orchestrator.Stage{
		NewPermissions(d.Runner),
		&Packages{Runner: d.Runner, Detector: d.Detector},
		&Node{Runner: d.Runner},
		&Python{Runner: d.Runner},
		&BenchCLI{Runner: d.Runner, Home: d.Home, Locate: bench.Locate},
		&WaitServices{Waiter: d.Waiter},
		&BenchInit{Runner: d.Runner},
		&GlobalConfig{Runner: d.Runner},
		&FetchApps{Runner: d.Runner},
		&Site{Runner: d.Runner},
	}
}

// benchFor returns a bench wrapper using the runtimes discovered earlier.
func benchFor(r shell.Runner, st *orchestrator.State) *bench.CLI {
	exe := st.Facts.BenchExe
	if exe == "" {
		exe = "bench"
	}
	return bench.New(r, exe, st.Paths.Bench, st.Facts.NodeBinDir, st.Facts.PythonBinDir)
}

// appDirName turns an app reference (name or git URL) into the directory
// bench get-app creates under apps/.
func appDirName(app string) string {
	name := strings.TrimSuffix(strings.TrimRight(app, "/"), ".git")
	return filepath.Base(name)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
