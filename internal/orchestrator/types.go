package orchestrator

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/pkgmgr"
)

// Status is the outcome of a single stage.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Run-level status values used in RunResult.
const (
	RunInProgress = "in-progress"
	RunSucceeded  = "succeeded"
	RunFailed     = "failed"
)

// StageResult represents the outcome of a single bootstrap stage.
type StageResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the aggregate result of one bootstrap run. Stages holds
// results in execution order; stages after a fatal failure are absent.
type RunResult struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
	Stages     []StageResult `json:"stages"`
	LogFile    string        `json:"logFile,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Succeeded reports whether every stage completed or was skipped.
func (r *RunResult) Succeeded() bool { return r.Status == RunSucceeded }

// Duration is the wall time of the run, zero while in progress.
func (r *RunResult) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Paths are the directories every stage works against. They are derived
// once from config; no stage changes the process working directory.
type Paths struct {
	Workspace string
	Bench     string
	Sites     string
	Apps      string
}

// NewPaths derives Paths from cfg.
func NewPaths(cfg *config.Config) Paths {
	bench := filepath.Join(cfg.Workspace.Dir, cfg.Workspace.BenchName)
	return Paths{
		Workspace: cfg.Workspace.Dir,
		Bench:     bench,
		Sites:     filepath.Join(bench, "sites"),
		Apps:      filepath.Join(bench, "apps"),
	}
}

// SiteDir is the directory bench new-site creates for site.
func (p Paths) SiteDir(site string) string {
	return filepath.Join(p.Sites, site)
}

// Facts are discovered by earlier stages and read by later ones.
type Facts struct {
	PackageManager pkgmgr.Kind
	NodeBinDir     string
	PythonExe      string
	PythonBinDir   string
	BenchExe       string
}

// State is handed to every stage. Config is read-only; Facts is written
// only by the stage currently running.
type State struct {
	Config *config.Config
	Paths  Paths
	Facts  *Facts
}

// Outcome is what a stage reports when it returns without a fatal error.
type Outcome struct {
	Status   Status
	Detail   string
	Warnings []string
}

// Completed returns a completed Outcome.
func Completed(detail string) Outcome { return Outcome{Status: StatusCompleted, Detail: detail} }

// Skipped returns a skipped Outcome.
func Skipped(detail string) Outcome { return Outcome{Status: StatusSkipped, Detail: detail} }

// Warn appends a non-fatal problem to the outcome.
func (o *Outcome) Warn(msg string) { o.Warnings = append(o.Warnings, msg) }

// Stage is one idempotent step of the bootstrap sequence. A stage whose
// target already exists returns Skipped and leaves it untouched. A non-nil
// error aborts the run.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *State) (Outcome, error)
}

// Recorder receives stage and run measurements. Satisfied by
// *metrics.Collector.
type Recorder interface {
	ObserveStage(stage string, status Status, d time.Duration)
	ObserveRun(status string, d time.Duration)
}

// Journal persists finished runs. Satisfied by *history.Store.
type Journal interface {
	Record(ctx context.Context, run *RunResult) error
}
