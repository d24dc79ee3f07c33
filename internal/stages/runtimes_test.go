package stages

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
	"github.com/sabiqazhar/frappe-env-setup/internal/toolchain"
)

func nodeBinDir(st *orchestrator.State) string {
	return filepath.Join(st.Config.Node.NVMDir, "versions", "node", "v18.20.4", "bin")
}

func pyBinDir(st *orchestrator.State) string {
	return filepath.Join(st.Config.Python.PyenvRoot, "versions", "3.11.9", "bin")
}

func TestNodeStage_AlreadyInstalled(t *testing.T) {
	t.Parallel()

	st := newState(t)
	touch(t, filepath.Join(nodeBinDir(st), "node"))
	touch(t, filepath.Join(nodeBinDir(st), "yarn"))
	runner := shell.NewFakeRunner().On(filepath.Join(nodeBinDir(st), "node")+" --version", shell.FakeResponse{Output: "v18.20.4"})

	out, err := (&Node{Runner: runner}).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSkipped, out.Status)
	assert.Equal(t, nodeBinDir(st), st.Facts.NodeBinDir)
	assert.Len(t, runner.Calls(), 1)
}

func TestNodeStage_InstallsYarn(t *testing.T) {
	t.Parallel()

	st := newState(t)
	touch(t, filepath.Join(nodeBinDir(st), "node"))
	runner := shell.NewFakeRunner().On(filepath.Join(nodeBinDir(st), "node")+" --version", shell.FakeResponse{Output: "v18.20.4"})

	out, err := (&Node{Runner: runner}).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusCompleted, out.Status)
	assert.True(t, runner.Called(filepath.Join(nodeBinDir(st), "npm")+" install -g yarn"))
}

func TestNodeStage_YarnFailureIsWarning(t *testing.T) {
	t.Parallel()

	st := newState(t)
	touch(t, filepath.Join(nodeBinDir(st), "node"))
	runner := shell.NewFakeRunner().
		On(filepath.Join(nodeBinDir(st), "node")+" --version", shell.FakeResponse{Output: "v18.20.4"}).
		On(filepath.Join(nodeBinDir(st), "npm"), shell.FakeResponse{Err: &shell.ExitError{Command: "npm", Code: 1}})

	out, err := (&Node{Runner: runner}).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSkipped, out.Status)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "yarn")
}

func TestNodeStage_WrongVersionIsFatal(t *testing.T) {
	t.Parallel()

	st := newState(t)
	touch(t, filepath.Join(nodeBinDir(st), "node"))
	runner := shell.NewFakeRunner().On(filepath.Join(nodeBinDir(st), "node")+" --version", shell.FakeResponse{Output: "v20.11.1"})

	_, err := (&Node{Runner: runner}).Run(context.Background(), st)
	var mismatch *toolchain.PinMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestNodeStage_InvalidPin(t *testing.T) {
	t.Parallel()

	st := newState(t)
	st.Config.Node.Version = "lts"
	_, err := (&Node{Runner: shell.NewFakeRunner()}).Run(context.Background(), st)
	assert.ErrorContains(t, err, "node.version")
}

func TestPythonStage_AlreadyInstalled(t *testing.T) {
	t.Parallel()

	st := newState(t)
	python := filepath.Join(pyBinDir(st), "python")
	touch(t, python)
	runner := shell.NewFakeRunner().On(python+" --version", shell.FakeResponse{Output: "Python 3.11.9"})

	out, err := (&Python{Runner: runner}).Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusSkipped, out.Status)
	assert.Equal(t, python, st.Facts.PythonExe)
	assert.Equal(t, pyBinDir(st), st.Facts.PythonBinDir)
}

func TestPythonStage_FallbackToSystem(t *testing.T) {
	t.Parallel()

	st := newState(t)
	st.Config.Python.AllowSystemFallback = true
	pyenv := filepath.Join(st.Config.Python.PyenvRoot, "bin", "pyenv")
	touch(t, pyenv)
	runner := shell.NewFakeRunner().On(pyenv+" install", shell.FakeResponse{Err: &shell.ExitError{Command: "pyenv", Code: 1}})

	p := &Python{
		Runner: runner,
		System: func(context.Context) (toolchain.Provision, error) {
			return toolchain.Provision{Executable: "/usr/bin/python3", BinDir: "/usr/bin", Fallback: true, Reported: "Python 3.10.12"}, nil
		},
	}
	out, err := p.Run(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusCompleted, out.Status)
	assert.Equal(t, "/usr/bin/python3", st.Facts.PythonExe)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "3.11.9")
	assert.Contains(t, out.Warnings[0], "Python 3.10.12")
}

func TestPythonStage_NoFallbackIsFatal(t *testing.T) {
	t.Parallel()

	st := newState(t)
	st.Config.Python.AllowSystemFallback = false
	pyenv := filepath.Join(st.Config.Python.PyenvRoot, "bin", "pyenv")
	touch(t, pyenv)
	runner := shell.NewFakeRunner().On(pyenv+" install", shell.FakeResponse{Err: &shell.ExitError{Command: "pyenv", Code: 2}})

	_, err := (&Python{Runner: runner}).Run(context.Background(), st)
	var exitErr *shell.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
	assert.Empty(t, st.Facts.PythonExe)
}

func TestPythonStage_FallbackAlsoFails(t *testing.T) {
	t.Parallel()

	st := newState(t)
	st.Config.Python.AllowSystemFallback = true
	pyenv := filepath.Join(st.Config.Python.PyenvRoot, "bin", "pyenv")
	touch(t, pyenv)
	runner := shell.NewFakeRunner().On(pyenv+" install", shell.FakeResponse{Err: &shell.ExitError{Command: "pyenv", Code: 1}})

	p := &Python{Runner: runner, System: func(context.Context) (toolchain.Provision, error) {
		return toolchain.Provision{}, toolchain.ErrNoSystemPython
	}}
	_, err := p.Run(context.Background(), st)
	assert.ErrorContains(t, err, "system fallback")
}
