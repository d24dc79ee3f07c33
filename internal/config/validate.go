package config

import (
	"fmt"
	"strings"
)

// ConfigurationError reports required settings that are absent. It is
// raised before any stage with side effects runs.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid settings: "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, "; ")
}

// ExitCode satisfies the exit-code contract used by the CLI.
func (e *ConfigurationError) ExitCode() int { return 2 }

// Validate checks every required setting and returns a *ConfigurationError
// naming all of the problems at once.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		env   string
		value string
	}{
		{"site.name", "SITE_NAME", c.Site.Name},
		{"site.admin_password", "ADMIN_PASSWORD", c.Site.AdminPassword},
		{"database.host", "DB_HOST", c.Database.Host},
		{"database.root_password", "DB_ROOT_PASSWORD", c.Database.RootPassword},
		{"redis.cache.host", "REDIS_CACHE", c.Redis.Cache.Host},
		{"redis.queue.host", "REDIS_QUEUE", c.Redis.Queue.Host},
		{"redis.socketio.host", "REDIS_SOCKETIO", c.Redis.SocketIO.Host},
		{"node.version", "NODE_VERSION", c.Node.Version},
		{"python.version", "PYTHON_VERSION", c.Python.Version},
		{"workspace.dir", "WORKSPACE_DIR", c.Workspace.Dir},
		{"workspace.bench_name", "BENCH_NAME", c.Workspace.BenchName},
	}

	cerr := &ConfigurationError{}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			cerr.Missing = append(cerr.Missing, fmt.Sprintf("%s (%s)", r.key, r.env))
		}
	}

	switch c.Database.Type {
	case DBMariaDB, DBPostgres:
	default:
		cerr.Invalid = append(cerr.Invalid, fmt.Sprintf("database.type=%q", c.Database.Type))
	}
	if c.Probe.MaxAttempts < 1 {
		cerr.Invalid = append(cerr.Invalid, "probe.max_attempts must be >= 1")
	}
	if c.Probe.Interval <= 0 {
		cerr.Invalid = append(cerr.Invalid, "probe.interval must be > 0")
	}
	if strings.ContainsAny(c.Workspace.BenchName, `/\`) {
		cerr.Invalid = append(cerr.Invalid, "workspace.bench_name must be a single path element")
	}

	if len(cerr.Missing) > 0 || len(cerr.Invalid) > 0 {
		return cerr
	}
	return nil
}
