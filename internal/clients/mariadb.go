package clients

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sony/gobreaker"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/health"
)

// versionQuerier is the slice of *sql.DB used by MariaDBClient.
type versionQuerier interface {
	PingContext(ctx context.Context) error
	Version(ctx context.Context) (string, error)
	Close() error
}

type sqlVersionQuerier struct {
	db *sql.DB
}

func (q *sqlVersionQuerier) PingContext(ctx context.Context) error { return q.db.PingContext(ctx) }

func (q *sqlVersionQuerier) Version(ctx context.Context) (string, error) {
	var v string
	err := q.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&v)
	return v, err
}

func (q *sqlVersionQuerier) Close() error { return q.db.Close() }

// MariaDBClient checks the MariaDB server with the root credentials.
type MariaDBClient struct {
	name string
	cfg  config.DatabaseConfig
	cb   *gobreaker.CircuitBreaker
	open func(cfg config.DatabaseConfig) (versionQuerier, error)
}

// NewMariaDBClient creates a MariaDBClient. No connection is made at
// construction time.
func NewMariaDBClient(name string, cfg config.DatabaseConfig, cb *gobreaker.CircuitBreaker) *MariaDBClient {
	return &MariaDBClient{name: name, cfg: cfg, cb: cb, open: openMariaDB}
}

// Probe pings the server and reports VERSION().
func (c *MariaDBClient) Probe(ctx context.Context) health.ProbeResult {
	return guarded(c.cb, c.name, func() (string, error) {
		db, err := c.open(c.cfg)
		if err != nil {
			return "", err
		}
		defer db.Close() //nolint:errcheck

		if err := db.PingContext(ctx); err != nil {
			return "", fmt.Errorf("ping: %w", err)
		}
		v, err := db.Version(ctx)
		if err != nil {
			return "", fmt.Errorf("reading server version: %w", err)
		}
		return "mariadb " + v, nil
	})
}

func mariaDBDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.RootUser
	mc.Passwd = cfg.RootPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.Timeout = 5 * time.Second
	return mc.FormatDSN()
}

func openMariaDB(cfg config.DatabaseConfig) (versionQuerier, error) {
	db, err := sql.Open("mysql", mariaDBDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &sqlVersionQuerier{db: db}, nil
}
