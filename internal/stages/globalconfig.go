package stages

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sabiqazhar/frappe-env-setup/internal/bench"
	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// GlobalConfig points the bench at the database and redis containers. It
// runs on every bootstrap so edited hosts take effect.
type GlobalConfig struct {
	Runner shell.Runner
}

func (g *GlobalConfig) Name() string { return NameGlobalConfig }

func (g *GlobalConfig) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	cli := benchFor(g.Runner, st)
	db := st.Config.Database

	switch db.Type {
	case config.DBPostgres:
		if err := cli.SetGlobalConfig(ctx, "db_host", db.Host); err != nil {
			return orchestrator.Outcome{}, err
		}
	default:
		if err := cli.SetDBHost(ctx, db.Host); err != nil {
			return orchestrator.Outcome{}, err
		}
	}
	if err := cli.SetGlobalConfig(ctx, "db_port", strconv.Itoa(db.Port)); err != nil {
		return orchestrator.Outcome{}, err
	}

	out := orchestrator.Completed(fmt.Sprintf("db_host=%s db_port=%d", db.Host, db.Port))
	redis := st.Config.Redis
	for _, r := range []struct {
		role   bench.RedisRole
		target config.RedisTarget
	}{
		{bench.RedisCache, redis.Cache},
		{bench.RedisQueue, redis.Queue},
		{bench.RedisSocketIO, redis.SocketIO},
	} {
		if err := cli.SetRedisHost(ctx, r.role, r.target.URL()); err != nil {
			out.Warn(fmt.Sprintf("redis %s host not set: %v", r.role, err))
		}
	}
	return out, nil
}
