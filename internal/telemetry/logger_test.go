package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"success": LevelSuccess,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestConsoleHandler_RendersSuccess(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewConsoleHandler(&buf, slog.LevelInfo))
	logger.Log(context.Background(), LevelSuccess, "bench initialised")

	assert.Contains(t, buf.String(), "level=SUCCESS")
	assert.Contains(t, buf.String(), "bench initialised")
}

func TestTeeHandler_RespectsChildLevels(t *testing.T) {
	t.Parallel()

	var console, file bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewConsoleHandler(&console, slog.LevelWarn),
		NewFileHandler(&file),
	))

	logger.Debug("command output", "line", "Collecting frappe-bench")
	logger.Warn("optional package failed", "package", "wkhtmltopdf")

	assert.NotContains(t, console.String(), "command output")
	assert.Contains(t, console.String(), "optional package failed")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	require.Len(t, lines, 2)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "Collecting frappe-bench", rec["line"])
}

func TestTeeHandler_WithAttrsPropagates(t *testing.T) {
	t.Parallel()

	var a, b bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewConsoleHandler(&a, slog.LevelInfo),
		NewConsoleHandler(&b, slog.LevelInfo),
	)).With("stage", "bench-init")

	logger.Info("skipped")
	assert.Contains(t, a.String(), "stage=bench-init")
	assert.Contains(t, b.String(), "stage=bench-init")
}

func TestOpenRunLog_CreatesTimestampedFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 10, 18, 15, 4, 5, 0, time.UTC)

	runLog, err := OpenRunLog(dir, now)
	require.NoError(t, err)
	defer runLog.Close()

	assert.Equal(t, filepath.Join(dir, "frappe-env-20261018-150405.log"), runLog.Path)
	_, err = os.Stat(runLog.Path)
	require.NoError(t, err)

	slog.New(NewFileHandler(runLog.Writer())).Error("fatal", "stage", "site")
	require.NoError(t, runLog.Close())

	data, err := os.ReadFile(runLog.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "run log opened")
	assert.Contains(t, string(data), `"stage":"site"`)
}
