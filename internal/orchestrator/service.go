package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/telemetry"
)

// ValidateStage is the name recorded for the configuration gate.
const ValidateStage = "validate-config"

// Orchestrator runs the bootstrap stages in order.
type Orchestrator struct {
	cfg      *config.Config
	stages   []Stage
	recorder Recorder
	journal  Journal
	clock    clock.Clock
	logFile  string

	inProgress atomic.Bool
	lastResult *RunResult
	resultMu   sync.RWMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder reports stage and run measurements to r.
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithJournal persists every finished run to j.
func WithJournal(j Journal) Option { return func(o *Orchestrator) { o.journal = j } }

// WithClock overrides the wall clock used for timestamps and durations.
func WithClock(c clock.Clock) Option { return func(o *Orchestrator) { o.clock = c } }

// WithLogFile records the run log path on every RunResult.
func WithLogFile(path string) Option { return func(o *Orchestrator) { o.logFile = path } }

// New constructs an Orchestrator running stages in the given order.
func New(cfg *config.Config, stages []Stage, opts ...Option) *Orchestrator {
	o := &Orchestrator{cfg: cfg, stages: stages, clock: clock.WallClock}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StageNames lists the configured sequence, including the validation gate.
func (o *Orchestrator) StageNames() []string {
	names := make([]string, 0, len(o.stages)+1)
	names = append(names, ValidateStage)
	for _, s := range o.stages {
		names = append(names, s.Name())
	}
	return names
}

// Run validates the configuration and then runs every stage strictly in
// sequence. The first fatal error aborts the run; completed stages are not
// rolled back. The returned RunResult is always non-nil unless the error is
// ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if !o.inProgress.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer o.inProgress.Store(false)

	result := &RunResult{
		ID:        uuid.NewString(),
		Status:    RunInProgress,
		StartedAt: o.clock.Now(),
		LogFile:   o.logFile,
	}

	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "frappe-env.bootstrap")
	defer span.End()
	span.SetAttributes(attribute.String("run.id", result.ID))

	slog.InfoContext(ctx, "bootstrap started", "run_id", result.ID, "stages", len(o.stages)+1)

	runErr := o.validate(ctx, result)
	if runErr == nil {
		state := &State{Config: o.cfg, Paths: NewPaths(o.cfg), Facts: &Facts{}}
		for i, stage := range o.stages {
			if err := ctx.Err(); err != nil {
				runErr = fmt.Errorf("bootstrap cancelled before %s: %w", stage.Name(), err)
				break
			}
			if err := o.runStage(ctx, i+2, stage, state, result); err != nil {
				runErr = err
				break
			}
		}
	}

	result.FinishedAt = o.clock.Now()
	if runErr != nil {
		result.Status = RunFailed
		result.Error = runErr.Error()
		span.SetStatus(codes.Error, runErr.Error())
		slog.ErrorContext(ctx, "bootstrap failed", "run_id", result.ID, "error", runErr)
	} else {
		result.Status = RunSucceeded
		span.SetStatus(codes.Ok, "")
		telemetry.Success(ctx, "bootstrap completed", "run_id", result.ID, "duration", result.Duration())
	}
	span.SetAttributes(attribute.String("bootstrap.status", result.Status))

	if o.recorder != nil {
		o.recorder.ObserveRun(result.Status, result.Duration())
	}
	if o.journal != nil {
		if err := o.journal.Record(ctx, result); err != nil {
			slog.WarnContext(ctx, "could not record run history", "error", err)
		}
	}

	o.resultMu.Lock()
	o.lastResult = result
	o.resultMu.Unlock()

	return result, runErr
}

// validate is the pre-flight gate. Nothing with side effects runs before it.
func (o *Orchestrator) validate(ctx context.Context, result *RunResult) error {
	start := o.clock.Now()
	err := o.cfg.Validate()
	sr := StageResult{Name: ValidateStage, Status: StatusCompleted, Duration: o.clock.Now().Sub(start)}
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err.Error()
	}
	o.record(ctx, 1, sr)
	result.Stages = append(result.Stages, sr)
	return err
}

func (o *Orchestrator) runStage(ctx context.Context, step int, stage Stage, state *State, result *RunResult) error {
	name := stage.Name()
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "frappe-env.stage."+name)
	defer span.End()

	slog.InfoContext(ctx, "stage started", "stage", name, "step", o.step(step))

	start := o.clock.Now()
	outcome, err := stage.Run(ctx, state)
	sr := StageResult{
		Name:     name,
		Status:   outcome.Status,
		Detail:   outcome.Detail,
		Warnings: outcome.Warnings,
		Duration: o.clock.Now().Sub(start),
	}
	if sr.Status == "" {
		sr.Status = StatusCompleted
	}
	if err != nil {
		err = classify(name, err)
		sr.Status = StatusFailed
		sr.Error = err.Error()
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("stage.status", string(sr.Status)))

	o.record(ctx, step, sr)
	result.Stages = append(result.Stages, sr)
	return err
}

func (o *Orchestrator) record(ctx context.Context, step int, sr StageResult) {
	for _, w := range sr.Warnings {
		slog.WarnContext(ctx, w, "stage", sr.Name)
	}
	switch sr.Status {
	case StatusCompleted:
		telemetry.Success(ctx, "stage completed", "stage", sr.Name, "step", o.step(step), "detail", sr.Detail, "duration", sr.Duration)
	case StatusSkipped:
		slog.InfoContext(ctx, "stage skipped", "stage", sr.Name, "step", o.step(step), "detail", sr.Detail)
	case StatusFailed:
		slog.ErrorContext(ctx, "stage failed", "stage", sr.Name, "step", o.step(step), "error", sr.Error)
	}
	if o.recorder != nil {
		o.recorder.ObserveStage(sr.Name, sr.Status, sr.Duration)
	}
}

func (o *Orchestrator) step(n int) string {
	return fmt.Sprintf("%d/%d", n, len(o.stages)+1)
}

// IsRunning returns true while a run is active.
func (o *Orchestrator) IsRunning() bool {
	return o.inProgress.Load()
}

// IsReady returns true if the last run succeeded.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	return o.lastResult != nil && o.lastResult.Succeeded()
}

// LastResult returns a copy of the most recent finished run, or nil.
func (o *Orchestrator) LastResult() *RunResult {
	o.resultMu.RLock()
	defer o.resultMu.RUnlock()
	if o.lastResult == nil {
		return nil
	}
	cp := *o.lastResult
	cp.Stages = append([]StageResult(nil), o.lastResult.Stages...)
	return &cp
}

// IsConfigError reports whether err came from the configuration gate.
func IsConfigError(err error) bool {
	var cfgErr *config.ConfigurationError
	return errors.As(err, &cfgErr)
}
