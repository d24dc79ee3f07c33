// Package clients holds protocol-level health probes for the services a
// bench depends on. Each probe runs behind its own circuit breaker.
package clients

import (
	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/health"
)

// Probers builds one prober per configured service: the database engine
// selected by database.type and the three redis roles.
func Probers(cfg *config.Config) map[string]health.Prober {
	probers := make(map[string]health.Prober, 4)

	switch cfg.Database.Type {
	case config.DBPostgres:
		probers["postgres"] = NewPostgresClient("postgres", cfg.Database, NewCircuitBreaker("postgres"))
	default:
		probers["mariadb"] = NewMariaDBClient("mariadb", cfg.Database, NewCircuitBreaker("mariadb"))
	}

	for name, target := range map[string]config.RedisTarget{
		"redis-cache":    cfg.Redis.Cache,
		"redis-queue":    cfg.Redis.Queue,
		"redis-socketio": cfg.Redis.SocketIO,
	} {
		probers[name] = NewRedisClient(name, target, NewCircuitBreaker(name))
	}
	return probers
}
