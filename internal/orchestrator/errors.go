package orchestrator

import (
	"errors"
	"fmt"

	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// ErrRunInProgress is returned when Run is called while a run is active.
var ErrRunInProgress = errors.New("bootstrap already in progress")

// Process exit codes.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitConfig          = 2
	ExitDependency      = 3
	ExitToolUnspecified = 4
)

// ExternalToolError is a fatal failure of an external command inside a stage.
type ExternalToolError struct {
	Stage string
	Err   error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// ExitCode propagates the tool's own exit status.
func (e *ExternalToolError) ExitCode() int {
	var exitErr *shell.ExitError
	if errors.As(e.Err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return ExitToolUnspecified
}

type exitCoder interface {
	ExitCode() int
}

// ExitCode maps a Run error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}

// classify wraps err so that ExitCode sees the most specific cause.
func classify(stage string, err error) error {
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) {
		return &ExternalToolError{Stage: stage, Err: err}
	}
	return fmt.Errorf("stage %s: %w", stage, err)
}
