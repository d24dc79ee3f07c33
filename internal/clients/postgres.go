package clients

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/health"
)

// dbPinger abstracts the pgxpool.Pool methods used in Probe so that tests
// can inject a fake without standing up a real database.
type dbPinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresClient checks the Postgres server a postgres-backed site uses.
type PostgresClient struct {
	name    string
	cfg     config.DatabaseConfig
	cb      *gobreaker.CircuitBreaker
	connect func(ctx context.Context, cfg config.DatabaseConfig) (dbPinger, error)
}

// NewPostgresClient creates a PostgresClient that opens a short-lived pgx
// pool on every Probe. No connection is made at construction time.
func NewPostgresClient(name string, cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *PostgresClient {
	return &PostgresClient{
		name:    name,
		cfg:     cfg,
		cb:      cb,
		connect: realConnect,
	}
}

// Probe pings the server with the root credentials bench new-site will use
// and reports the server version.
func (c *PostgresClient) Probe(ctx context.Context) health.ProbeResult {
	return guarded(c.cb, c.name, func() (string, error) {
		pool, err := c.connect(ctx, c.cfg)
		if err != nil {
			return "", err
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return "", fmt.Errorf("ping: %w", err)
		}

		var version string
		if err := pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
			return "", fmt.Errorf("reading server version: %w", err)
		}
		return "postgres " + version, nil
	})
}

func postgresDSN(cfg config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.RootUser, cfg.RootPassword),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/postgres",
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// realConnect opens a single-connection pgxpool.Pool.
func realConnect(ctx context.Context, cfg config.DatabaseConfig) (dbPinger, error) {
	poolCfg, err := pgxpool.ParseConfig(postgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parsing postgres DSN: %w", err)
	}
	poolCfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	return pool, nil
}
