// Package shell runs external tools on behalf of the bootstrap stages and
// streams their output into the run log.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"

	shellquote "github.com/kballard/go-shellquote"
)

// tailLines is how much output an ExitError keeps for the operator.
const tailLines = 20

// Command is a single external invocation. Dir and Env are explicit so no
// stage ever depends on the process working directory.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the inherited environment.
	Env []string
	// Secrets are argument values that String masks, e.g. passwords. The
	// process still receives them unchanged.
	Secrets []string
}

// Redacted replaces secret argument values in rendered commands.
const Redacted = "REDACTED"

// String renders the command as a copy-pasteable shell line with secret
// values masked. It is what logs and errors carry.
func (c Command) String() string {
	words := append([]string{c.Name}, c.Args...)
	for i, w := range words {
		if w != "" && slices.Contains(c.Secrets, w) {
			words[i] = Redacted
		}
	}
	return shellquote.Join(words...)
}

// Script builds a bash invocation for snippets that need shell functions,
// e.g. nvm, which only exists after sourcing nvm.sh.
func Script(lines ...string) Command {
	return Command{Name: "bash", Args: []string{"-c", strings.Join(lines, " && ")}}
}

// Quote joins words into a safely quoted shell fragment.
func Quote(words ...string) string {
	return shellquote.Join(words...)
}

// Sudo prefixes c with sudo when the process is not root.
func Sudo(c Command) Command {
	if os.Geteuid() == 0 {
		return c
	}
	return sudo(c)
}

// sudo resets the environment, so c.Env is passed through env(1) on the
// command line instead.
func sudo(c Command) Command {
	args := make([]string, 0, len(c.Env)+len(c.Args)+2)
	if len(c.Env) > 0 {
		args = append(args, "env")
		args = append(args, c.Env...)
	}
	args = append(args, c.Name)
	args = append(args, c.Args...)
	return Command{Name: "sudo", Args: args, Dir: c.Dir, Secrets: c.Secrets}
}

// Result is what a successful command produced.
type Result struct {
	Output string
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	Tail    string
}

func (e *ExitError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.Code, e.Tail)
}

// ExitCode returns the tool's own exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// Runner executes commands. Stages depend on this interface so tests can
// substitute a scripted fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	logger *slog.Logger
}

// NewExecRunner returns a runner logging through logger (slog.Default when nil).
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

// Run starts cmd, logs each output line at debug level and waits for it.
// A missing executable is returned as-is; a non-zero exit becomes *ExitError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	line := cmd.String()
	r.logger.DebugContext(ctx, "exec", "cmd", line, "dir", cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)

	pr, pw := io.Pipe()
	c.Stdout = pw
	c.Stderr = pw

	var (
		buf bytes.Buffer
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			text := scanner.Text()
			buf.WriteString(text)
			buf.WriteByte('\n')
			r.logger.DebugContext(ctx, "output", "cmd", cmd.Name, "line", text)
		}
		io.Copy(io.Discard, pr) //nolint:errcheck
	}()

	err := c.Start()
	if err != nil {
		pw.Close()
		wg.Wait()
		return Result{}, fmt.Errorf("starting %s: %w", line, err)
	}
	err = c.Wait()
	pw.Close()
	wg.Wait()

	out := buf.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{Output: out}, &ExitError{Command: line, Code: exitErr.ExitCode(), Tail: tail(out, tailLines)}
		}
		return Result{Output: out}, fmt.Errorf("running %s: %w", line, err)
	}
	return Result{Output: out}, nil
}

func tail(out string, n int) string {
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
