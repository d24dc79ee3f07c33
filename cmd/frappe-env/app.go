package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sabiqazhar/frappe-env-setup/internal/api"
	"github.com/sabiqazhar/frappe-env-setup/internal/clients"
	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/health"
	"github.com/sabiqazhar/frappe-env-setup/internal/history"
	"github.com/sabiqazhar/frappe-env-setup/internal/metrics"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/pkgmgr"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
	"github.com/sabiqazhar/frappe-env-setup/internal/stages"
	"github.com/sabiqazhar/frappe-env-setup/internal/telemetry"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	runLog       *telemetry.RunLog
	otelProvider *telemetry.Provider
	runner       shell.Runner
	metrics      *metrics.Collector
	prober       *probe.Prober
	history      *history.Store
	checker      *health.Checker
	orchestrator *orchestrator.Orchestrator
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Initialises the OTEL provider (best-effort, non-fatal)
//  2. Opens the run history once cfg validates (best-effort, non-fatal)
//  3. Creates the runner, prober and stage sequence
//  4. Creates the orchestrator and the deep health checker
func buildAppContext(ctx context.Context, cfg *config.Config, runLog *telemetry.RunLog) (*AppContext, error) {
	app := &AppContext{cfg: cfg, runLog: runLog}

	// When OTLPEndpoint is empty telemetry is disabled entirely; this avoids
	// the SDK's periodic-reader noise when no collector is running locally.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(ctx,
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
			attribute.String("frappe.site", cfg.Site.Name),
			attribute.String("frappe.bench", cfg.Workspace.BenchName),
			attribute.String("frappe.db_type", cfg.Database.Type),
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "error", err)
		} else {
			app.otelProvider = tp
		}
	}

	// The journal creates files, so it waits until the configuration is valid.
	if err := cfg.Validate(); err != nil {
		slog.Debug("run history not opened for an invalid configuration")
	} else if store, err := history.Open(ctx, cfg.History.Path); err != nil {
		slog.Warn("run history disabled", "error", err)
	} else {
		app.history = store
	}

	app.metrics = metrics.NewCollector()
	app.runner = shell.NewExecRunner(slog.Default())
	app.prober = probe.New(probe.WithObserver(app.metrics))
	app.checker = health.NewChecker(clients.Probers(cfg))

	home, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("could not resolve home directory", "error", err)
	}
	seq := stages.Sequence(stages.Deps{
		Runner:   app.runner,
		Waiter:   app.prober,
		Detector: pkgmgr.NewDetector(),
		Home:     home,
	})

	opts := []orchestrator.Option{orchestrator.WithRecorder(app.metrics)}
	if app.history != nil {
		opts = append(opts, orchestrator.WithJournal(app.history))
	}
	if runLog != nil {
		opts = append(opts, orchestrator.WithLogFile(runLog.Path))
	}
	app.orchestrator = orchestrator.New(cfg, seq, opts...)

	return app, nil
}

// router builds the HTTP surface for server mode. Runs started over HTTP
// are cancelled with base.
func (a *AppContext) router(base context.Context) (*api.Router, error) {
	metricsHandler, err := metrics.Handler(a.metrics)
	if err != nil {
		return nil, err
	}
	deps := api.Deps{
		Bootstrap:   a.orchestrator,
		Health:      a.checker,
		Metrics:     metricsHandler,
		BaseContext: base,
	}
	if a.history != nil {
		deps.Runs = a.history
	}
	return api.NewRouter(deps), nil
}

func (a *AppContext) logPath() string {
	if a.runLog == nil {
		return ""
	}
	return a.runLog.Path
}

func (a *AppContext) close() {
	if a.otelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			slog.Warn("OTEL shutdown error", "error", err)
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			slog.Warn("closing run history", "error", err)
		}
	}
	if a.runLog != nil {
		_ = a.runLog.Close()
	}
}
