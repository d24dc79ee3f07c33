package shell

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner records commands and answers them from a table keyed by
// command prefix. The longest matching prefix wins; unmatched commands
// succeed with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	responses map[string]FakeResponse
	calls     []Command
}

// FakeResponse is a canned answer for FakeRunner.
type FakeResponse struct {
	Output string
	Err    error
}

// NewFakeRunner returns an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{responses: map[string]FakeResponse{}}
}

// On registers a response for every command whose String() starts with prefix.
func (f *FakeRunner) On(prefix string, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

func (f *FakeRunner) Run(_ context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)

	line := cmd.String()
	best := -1
	var resp FakeResponse
	for prefix, r := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			resp = r
		}
	}
	return Result{Output: resp.Output}, resp.Err
}

// Calls returns the rendered command lines in invocation order.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Commands returns the raw recorded commands.
func (f *FakeRunner) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// Called reports whether any recorded command line starts with prefix.
func (f *FakeRunner) Called(prefix string) bool {
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
