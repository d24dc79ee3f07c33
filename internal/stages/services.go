package stages

import (
	"context"
	"fmt"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
)

// WaitServices blocks until the database accepts connections. The redis
// roles are probed too, but a missing cache only degrades the site.
type WaitServices struct {
	Waiter Waiter
}

func (w *WaitServices) Name() string { return NameWaitServices }

// Targets builds the probe targets from cfg. The database comes first and is
// the only required target.
func Targets(cfg *config.Config) []probe.Target {
	base := probe.Target{
		MaxAttempts: cfg.Probe.MaxAttempts,
		Interval:    cfg.Probe.Interval,
		DialTimeout: cfg.Probe.DialTimeout,
	}
	db := base
	db.Name, db.Host, db.Port, db.Required = "database", cfg.Database.Host, cfg.Database.Port, true

	targets := []probe.Target{db}
	for _, r := range []struct {
		name string
		t    config.RedisTarget
	}{
		{"redis-cache", cfg.Redis.Cache},
		{"redis-queue", cfg.Redis.Queue},
		{"redis-socketio", cfg.Redis.SocketIO},
	} {
		t := base
		t.Name, t.Host, t.Port = r.name, r.t.Host, r.t.Port
		targets = append(targets, t)
	}
	return targets
}

func (w *WaitServices) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	out := orchestrator.Outcome{Status: orchestrator.StatusCompleted}
	ready := 0
	targets := Targets(st.Config)
	for _, t := range targets {
		report, err := w.Waiter.Wait(ctx, t)
		if err != nil {
			return out, err
		}
		if report.Outcome != probe.Ready {
			out.Warn(fmt.Sprintf("%s (%s) not reachable after %d attempts", t.Name, t.Addr(), report.Attempts))
			continue
		}
		ready++
	}
	out.Detail = fmt.Sprintf("%d/%d services ready", ready, len(targets))
	return out, nil
}
