package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
)

func sampleRun(status string) *orchestrator.RunResult {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &orchestrator.RunResult{
		ID:         "0b7f3c1e-7a51-4e0c-9d0f-3f1d2c4b5a6e",
		Status:     status,
		StartedAt:  start,
		FinishedAt: start.Add(95 * time.Second),
		LogFile:    "/workspace/logs/frappe-env-20240501-100000.log",
		Stages: []orchestrator.StageResult{
			{Name: "validate-config", Status: orchestrator.StatusCompleted, Duration: 2 * time.Millisecond},
			{Name: "node", Status: orchestrator.StatusSkipped, Detail: "node 18.20.4 already installed", Duration: 40 * time.Millisecond},
			{Name: "site", Status: orchestrator.StatusCompleted, Detail: "created dev.localhost", Warnings: []string{"install-app erpnext failed"}, Duration: 80 * time.Second},
		},
	}
}

func TestSummary_Succeeded(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, sampleRun(orchestrator.RunSucceeded)))

	out := buf.String()
	assert.Contains(t, out, "validate-config")
	assert.Contains(t, out, "node 18.20.4 already installed")
	assert.Contains(t, out, "! install-app erpnext failed")
	assert.Contains(t, out, "Environment ready in 1m35s")
	assert.Contains(t, out, "(1 warning)")
	assert.Contains(t, out, "Log: /workspace/logs/frappe-env-20240501-100000.log")
}

func TestSummary_Failed(t *testing.T) {
	t.Parallel()

	r := sampleRun(orchestrator.RunFailed)
	r.Stages[2].Status = orchestrator.StatusFailed
	r.Stages[2].Error = "bench new-site: exit status 1"
	r.Stages[2].Warnings = nil

	var buf bytes.Buffer
	require.NoError(t, Summary(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "bench new-site: exit status 1")
	assert.Contains(t, out, "Bootstrap failed after 1m35s")
	assert.NotContains(t, out, "warning")
}

func TestHistory(t *testing.T) {
	t.Parallel()

	ok := sampleRun(orchestrator.RunSucceeded)
	bad := sampleRun(orchestrator.RunFailed)
	bad.ID = "short"
	bad.Error = "stage wait-services: database not reachable"

	var buf bytes.Buffer
	now := ok.StartedAt.Add(3 * time.Hour)
	require.NoError(t, History(&buf, []orchestrator.RunResult{*ok, *bad}, now))

	out := buf.String()
	assert.Contains(t, out, "0b7f3c1e")
	assert.NotContains(t, out, "0b7f3c1e-7a51")
	assert.Contains(t, out, "3 hours ago")
	assert.Contains(t, out, "3 stages")
	assert.Contains(t, out, "database not reachable")
}

func TestHistory_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, History(&buf, nil, time.Now()))
	assert.Contains(t, buf.String(), "no recorded runs")
}
