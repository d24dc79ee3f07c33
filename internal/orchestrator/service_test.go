package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// --- mock implementations ---

type fakeStage struct {
	name    string
	outcome Outcome
	err     error
	ran     *[]string
	mu      *sync.Mutex
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Run(_ context.Context, st *State) (Outcome, error) {
	s.mu.Lock()
	*s.ran = append(*s.ran, s.name)
	s.mu.Unlock()
	if st.Facts == nil {
		return Outcome{}, errors.New("facts not initialised")
	}
	return s.outcome, s.err
}

// blockingStage blocks until released, used to test the concurrent run guard.
type blockingStage struct {
	ready chan struct{}
	done  chan struct{}
}

func (b *blockingStage) Name() string { return "blocking" }

func (b *blockingStage) Run(_ context.Context, _ *State) (Outcome, error) {
	close(b.ready)
	<-b.done
	return Completed(""), nil
}

type factWriter struct{}

func (factWriter) Name() string { return "discover" }
func (factWriter) Run(_ context.Context, st *State) (Outcome, error) {
	st.Facts.BenchExe = "/home/frappe/.local/bin/bench"
	return Completed(""), nil
}

type factReader struct{ got *string }

func (factReader) Name() string { return "consume" }
func (r factReader) Run(_ context.Context, st *State) (Outcome, error) {
	*r.got = st.Facts.BenchExe
	return Completed(""), nil
}

type mockRecorder struct {
	mu     sync.Mutex
	stages map[string]Status
	runs   []string
}

func (m *mockRecorder) ObserveStage(stage string, status Status, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stages == nil {
		m.stages = map[string]Status{}
	}
	m.stages[stage] = status
}

func (m *mockRecorder) ObserveRun(status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, status)
}

type mockJournal struct {
	err  error
	runs []*RunResult
}

func (m *mockJournal) Record(_ context.Context, run *RunResult) error {
	m.runs = append(m.runs, run)
	return m.err
}

// --- helpers ---

func validConfig() *config.Config {
	return &config.Config{
		Workspace: config.WorkspaceConfig{Dir: "/workspace/development", BenchName: "frappe-bench"},
		Site:      config.SiteConfig{Name: "dev.localhost", AdminPassword: "admin"},
		Database:  config.DatabaseConfig{Type: config.DBMariaDB, Host: "mariadb", Port: 3306, RootPassword: "123"},
		Redis: config.RedisConfig{
			Cache:    config.RedisTarget{Host: "redis-cache", Port: 6379},
			Queue:    config.RedisTarget{Host: "redis-queue", Port: 6379},
			SocketIO: config.RedisTarget{Host: "redis-socketio", Port: 6379},
		},
		Node:   config.NodeConfig{Version: "18.20.4"},
		Python: config.PythonConfig{Version: "3.11.9"},
		Probe:  config.ProbeConfig{MaxAttempts: 3, Interval: time.Second},
	}
}

type harness struct {
	mu  sync.Mutex
	ran []string
}

func (h *harness) stage(name string, outcome Outcome, err error) *fakeStage {
	return &fakeStage{name: name, outcome: outcome, err: err, ran: &h.ran, mu: &h.mu}
}

// --- tests ---

func TestRun_AllStagesInOrder(t *testing.T) {
	t.Parallel()

	h := &harness{}
	stages := []Stage{
		h.stage("permissions", Skipped("already owned"), nil),
		h.stage("packages", Completed("12 packages"), nil),
		h.stage("bench-init", Skipped("exists"), nil),
	}
	o := New(validConfig(), stages, WithLogFile("logs/frappe-env-20240501-100000.log"))

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"permissions", "packages", "bench-init"}, h.ran)
	assert.Equal(t, RunSucceeded, result.Status)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "logs/frappe-env-20240501-100000.log", result.LogFile)

	require.Len(t, result.Stages, 4)
	assert.Equal(t, ValidateStage, result.Stages[0].Name)
	assert.Equal(t, StatusCompleted, result.Stages[0].Status)
	assert.Equal(t, StatusSkipped, result.Stages[1].Status)
	assert.Equal(t, StatusCompleted, result.Stages[2].Status)
	assert.Equal(t, StatusSkipped, result.Stages[3].Status)
	assert.Equal(t, []string{ValidateStage, "permissions", "packages", "bench-init"}, o.StageNames())
}

func TestRun_MissingConfigRunsNoStage(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Site.Name = ""

	h := &harness{}
	o := New(cfg, []Stage{h.stage("permissions", Completed(""), nil)})

	result, err := o.Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, ExitConfig, ExitCode(err))
	assert.Contains(t, err.Error(), "SITE_NAME")

	assert.Empty(t, h.ran)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, StatusFailed, result.Stages[0].Status)
	assert.Equal(t, RunFailed, result.Status)
}

func TestRun_AbortsOnFirstFatalError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "external tool exit code propagates",
			err:      &shell.ExitError{Command: "bench new-site", Code: 7},
			wantCode: 7,
		},
		{
			name:     "wrapped external tool error",
			err:      fmt.Errorf("bench init: %w", &shell.ExitError{Command: "bench init", Code: 1}),
			wantCode: 1,
		},
		{
			name:     "tool killed by signal",
			err:      &shell.ExitError{Command: "pip", Code: -1},
			wantCode: ExitToolUnspecified,
		},
		{
			name:     "dependency timeout",
			err:      &probe.DependencyTimeoutError{Target: probe.Target{Name: "database"}, Attempts: 30},
			wantCode: ExitDependency,
		},
		{
			name:     "plain error",
			err:      errors.New("disk full"),
			wantCode: ExitFailure,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := &harness{}
			stages := []Stage{
				h.stage("node", Completed(""), nil),
				h.stage("site", Outcome{}, tc.err),
				h.stage("after", Completed(""), nil),
			}
			o := New(validConfig(), stages)

			result, err := o.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, ExitCode(err))
			assert.ErrorIs(t, err, tc.err)

			assert.Equal(t, []string{"node", "site"}, h.ran, "no stage runs after a fatal failure")
			assert.Equal(t, RunFailed, result.Status)
			require.Len(t, result.Stages, 3)
			assert.Equal(t, StatusFailed, result.Stages[2].Status)
			assert.NotEmpty(t, result.Stages[2].Error)
		})
	}
}

func TestRun_WarningsDoNotFail(t *testing.T) {
	t.Parallel()

	h := &harness{}
	o := New(validConfig(), []Stage{
		h.stage("node", Outcome{Status: StatusCompleted, Warnings: []string{"yarn install failed"}}, nil),
	})

	result, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"yarn install failed"}, result.Stages[1].Warnings)
}

func TestRun_FactsFlowBetweenStages(t *testing.T) {
	t.Parallel()

	var got string
	o := New(validConfig(), []Stage{factWriter{}, factReader{got: &got}})
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/home/frappe/.local/bin/bench", got)
}

func TestRun_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &harness{}
	o := New(validConfig(), []Stage{h.stage("permissions", Completed(""), nil)})
	_, err := o.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.ran)
}

func TestRun_RecorderAndJournal(t *testing.T) {
	t.Parallel()

	h := &harness{}
	rec := &mockRecorder{}
	journal := &mockJournal{err: errors.New("database is locked")}
	o := New(validConfig(), []Stage{h.stage("packages", Completed(""), nil)}, WithRecorder(rec), WithJournal(journal))

	result, err := o.Run(context.Background())
	require.NoError(t, err, "journal failure is only a warning")

	assert.Equal(t, StatusCompleted, rec.stages["packages"])
	assert.Equal(t, StatusCompleted, rec.stages[ValidateStage])
	assert.Equal(t, []string{RunSucceeded}, rec.runs)
	require.Len(t, journal.runs, 1)
	assert.Equal(t, result.ID, journal.runs[0].ID)
}

func TestRun_IsReady(t *testing.T) {
	t.Parallel()

	t.Run("not ready before run", func(t *testing.T) {
		t.Parallel()
		o := New(validConfig(), nil)
		assert.False(t, o.IsReady())
		assert.Nil(t, o.LastResult())
	})

	t.Run("ready after successful run", func(t *testing.T) {
		t.Parallel()
		o := New(validConfig(), nil)
		_, err := o.Run(context.Background())
		require.NoError(t, err)
		assert.True(t, o.IsReady())
	})

	t.Run("not ready after failed run", func(t *testing.T) {
		t.Parallel()
		h := &harness{}
		o := New(validConfig(), []Stage{h.stage("x", Outcome{}, errors.New("boom"))})
		_, err := o.Run(context.Background())
		require.Error(t, err)
		assert.False(t, o.IsReady())
	})
}

func TestRun_InProgressGuard(t *testing.T) {
	t.Parallel()

	blocker := &blockingStage{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	o := New(validConfig(), []Stage{blocker})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Run(context.Background())
	}()

	<-blocker.ready
	assert.True(t, o.IsRunning())

	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(blocker.done)
	wg.Wait()
	assert.False(t, o.IsRunning())
}

func TestLastResult_ReturnsCopy(t *testing.T) {
	t.Parallel()

	o := New(validConfig(), nil)
	_, err := o.Run(context.Background())
	require.NoError(t, err)

	first := o.LastResult()
	first.Stages[0].Name = "mutated"
	assert.Equal(t, ValidateStage, o.LastResult().Stages[0].Name)
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitConfig, ExitCode(fmt.Errorf("x: %w", &config.ConfigurationError{Missing: []string{"a"}})))
	assert.Equal(t, 9, ExitCode(&ExternalToolError{Stage: "site", Err: &shell.ExitError{Code: 9}}))
	assert.Equal(t, ExitToolUnspecified, ExitCode(&ExternalToolError{Stage: "site", Err: errors.New("no code")}))
}
