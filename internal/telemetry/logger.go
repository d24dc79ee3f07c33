package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelSuccess sits between INFO and WARN. Stages log it when they finish
// doing real work, mirroring the info/success/warning/error vocabulary
// operators see on the console.
const LevelSuccess = slog.Level(2)

// ParseLevel maps a config/flag value to a slog level. Unknown values fall
// back to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "success":
		return LevelSuccess
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Success logs msg at LevelSuccess on the default logger.
func Success(ctx context.Context, msg string, args ...any) {
	slog.Default().Log(ctx, LevelSuccess, msg, args...)
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelSuccess {
		a.Value = slog.StringValue("SUCCESS")
	}
	return a
}

// NewConsoleHandler returns the human-facing text handler.
func NewConsoleHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, ReplaceAttr: replaceLevel})
}

// NewFileHandler returns the JSON handler used for the run log. It always
// records debug output so the file holds every command line and its output.
func NewFileHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: replaceLevel})
}

// RunLog is the per-run log file.
type RunLog struct {
	Path   string
	writer *lumberjack.Logger
}

// OpenRunLog creates dir if needed and opens a log file named after now,
// e.g. logs/frappe-env-20261018-150405.log.
func OpenRunLog(dir string, now time.Time) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir %s: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("frappe-env-%s.log", now.Format("20060102-150405")))
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 2,
	}
	// lumberjack opens lazily; write a header so the file exists even when
	// the run aborts before logging anything.
	if _, err := fmt.Fprintf(w, `{"time":%q,"level":"INFO","msg":"run log opened"}`+"\n", now.Format(time.RFC3339Nano)); err != nil {
		return nil, fmt.Errorf("opening run log %s: %w", path, err)
	}
	return &RunLog{Path: path, writer: w}, nil
}

// Writer returns the underlying file writer.
func (l *RunLog) Writer() io.Writer { return l.writer }

// Close flushes and closes the file.
func (l *RunLog) Close() error { return l.writer.Close() }

// InstallLogger sets the process-wide default logger: console output at
// level, plus the run log (if any) at debug, both trace-correlated.
func InstallLogger(console io.Writer, level slog.Level, runLog *RunLog) {
	handlers := []slog.Handler{NewConsoleHandler(console, level)}
	if runLog != nil {
		handlers = append(handlers, NewFileHandler(runLog.Writer()))
	}
	slog.SetDefault(slog.New(NewTraceHandler(NewTeeHandler(handlers...))))
}
