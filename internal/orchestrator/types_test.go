package orchestrator

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
)

func TestStageResult_JSONShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       StageResult
		wantError   bool
		errorAbsent bool
	}{
		{
			name:        "no error field when empty",
			input:       StageResult{Name: "bench-init", Status: StatusCompleted},
			errorAbsent: true,
		},
		{
			name:      "error field present when set",
			input:     StageResult{Name: "site", Status: StatusFailed, Error: "bench new-site exited with code 1"},
			wantError: true,
		},
		{
			name:        "skipped status",
			input:       StageResult{Name: "permissions", Status: StatusSkipped, Detail: "already owned"},
			errorAbsent: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tc.input)
			require.NoError(t, err)

			var got map[string]any
			require.NoError(t, json.Unmarshal(data, &got))

			assert.Equal(t, tc.input.Name, got["name"])
			assert.Equal(t, string(tc.input.Status), got["status"])

			_, hasError := got["error"]
			if tc.wantError {
				assert.True(t, hasError)
				assert.Equal(t, tc.input.Error, got["error"])
			}
			if tc.errorAbsent {
				assert.False(t, hasError)
			}
			_, hasWarnings := got["warnings"]
			assert.False(t, hasWarnings)
		})
	}
}

func TestRunResult_Duration(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := RunResult{StartedAt: start}
	assert.Zero(t, r.Duration())

	r.FinishedAt = start.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, r.Duration())
}

func TestNewPaths(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Workspace: config.WorkspaceConfig{Dir: "/workspace/development", BenchName: "frappe-bench"}}
	p := NewPaths(cfg)

	assert.Equal(t, "/workspace/development", p.Workspace)
	assert.Equal(t, "/workspace/development/frappe-bench", p.Bench)
	assert.Equal(t, "/workspace/development/frappe-bench/sites", p.Sites)
	assert.Equal(t, "/workspace/development/frappe-bench/apps", p.Apps)
	assert.Equal(t, "/workspace/development/frappe-bench/sites/dev.localhost", p.SiteDir("dev.localhost"))
}

func TestOutcomeHelpers(t *testing.T) {
	t.Parallel()

	o := Completed("installed")
	o.Warn("yarn install failed")
	assert.Equal(t, StatusCompleted, o.Status)
	assert.Equal(t, []string{"yarn install failed"}, o.Warnings)

	assert.Equal(t, StatusSkipped, Skipped("exists").Status)
}
