package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// ErrNoSystemPython is returned by System when no python3 is on PATH.
var ErrNoSystemPython = errors.New("no system python3 found")

// Python provisions CPython through pyenv.
type Python struct {
	runner   shell.Runner
	root     string
	lookPath func(string) (string, error)
}

// NewPython returns a provisioner for the pyenv installation at root.
func NewPython(r shell.Runner, root string) *Python {
	return &Python{runner: r, root: root, lookPath: exec.LookPath}
}

// BinDir is where pyenv puts binaries for pin.
func (p *Python) BinDir(pin Pin) string {
	return filepath.Join(p.root, "versions", pin.String(), "bin")
}

func (p *Python) pyenv() string {
	return filepath.Join(p.root, "bin", "pyenv")
}

func (p *Python) env() []string {
	return []string{"PYENV_ROOT=" + p.root}
}

// Ensure makes the pinned Python available, installing pyenv and the
// version when absent. It never substitutes another version; see System
// for the explicit fallback.
func (p *Python) Ensure(ctx context.Context, pin Pin) (Provision, error) {
	python := filepath.Join(p.BinDir(pin), "python")
	prov := Provision{Executable: python, BinDir: p.BinDir(pin)}

	if fileExists(python) {
		if err := verify(ctx, p.runner, "python", python, pin); err != nil {
			return prov, err
		}
		prov.Reported = "Python " + pin.String()
		return prov, nil
	}

	if !fileExists(p.pyenv()) {
		cmd := shell.Script("curl -fsSL https://pyenv.run | bash")
		cmd.Env = p.env()
		if _, err := p.runner.Run(ctx, cmd); err != nil {
			return prov, fmt.Errorf("installing pyenv: %w", err)
		}
	}

	install := shell.Command{Name: p.pyenv(), Args: []string{"install", "-s", pin.String()}, Env: p.env()}
	if _, err := p.runner.Run(ctx, install); err != nil {
		return prov, fmt.Errorf("pyenv install %s: %w", pin, err)
	}

	if err := verify(ctx, p.runner, "python", python, pin); err != nil {
		return prov, err
	}
	prov.Installed = true
	prov.Reported = "Python " + pin.String()
	return prov, nil
}

// System locates a system python3 and reports its version. The caller is
// responsible for telling the operator that the pin was not honoured.
func (p *Python) System(ctx context.Context) (Provision, error) {
	exe, err := p.lookPath("python3")
	if err != nil {
		return Provision{}, ErrNoSystemPython
	}
	out, err := reportedVersion(ctx, p.runner, exe)
	if err != nil {
		return Provision{}, fmt.Errorf("checking system python version: %w", err)
	}
	return Provision{Executable: exe, BinDir: filepath.Dir(exe), Fallback: true, Reported: out}, nil
}
