// Package bench is a typed façade over the Frappe bench CLI. Every method
// maps to one bench subcommand with a fixed argument list; bench itself is
// treated as a black box whose only contract is its exit code.
package bench

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// RedisRole selects which set-redis-*-host subcommand to call.
type RedisRole string

const (
	RedisCache    RedisRole = "cache"
	RedisQueue    RedisRole = "queue"
	RedisSocketIO RedisRole = "socketio"
)

// ToolError is a failed bench invocation.
type ToolError struct {
	Subcommand string
	Err        error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("bench %s: %v", e.Subcommand, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// CLI runs bench subcommands. Commands that act on an existing bench run
// inside benchDir; Init runs in the parent workspace.
type CLI struct {
	runner   shell.Runner
	exe      string
	benchDir string
	env      []string
}

// New returns a CLI using the bench executable at exe operating on benchDir.
// pathDirs are prepended to PATH so bench finds the pinned node and python.
func New(r shell.Runner, exe, benchDir string, pathDirs ...string) *CLI {
	var env []string
	if len(pathDirs) > 0 {
		path := os.Getenv("PATH")
		for i := len(pathDirs) - 1; i >= 0; i-- {
			if pathDirs[i] != "" {
				path = pathDirs[i] + string(os.PathListSeparator) + path
			}
		}
		env = append(env, "PATH="+path)
	}
	return &CLI{runner: r, exe: exe, benchDir: benchDir, env: env}
}

func (c *CLI) run(ctx context.Context, dir, sub string, args ...string) error {
	return c.exec(ctx, shell.Command{Name: c.exe, Args: args, Dir: dir, Env: c.env}, sub)
}

func (c *CLI) exec(ctx context.Context, cmd shell.Command, sub string) error {
	if _, err := c.runner.Run(ctx, cmd); err != nil {
		return &ToolError{Subcommand: sub, Err: err}
	}
	return nil
}

// InitOptions configures bench init.
type InitOptions struct {
	FrappeBranch string
	FrappePath   string
	Python       string
}

// Init creates the bench directory. Redis config generation is skipped
// because the redis instances are external containers.
func (c *CLI) Init(ctx context.Context, opts InitOptions) error {
	args := []string{"init", "--skip-redis-config-generation"}
	if opts.FrappeBranch != "" {
		args = append(args, "--frappe-branch", opts.FrappeBranch)
	}
	if opts.FrappePath != "" {
		args = append(args, "--frappe-path", opts.FrappePath)
	}
	if opts.Python != "" {
		args = append(args, "--python", opts.Python)
	}
	args = append(args, filepath.Base(c.benchDir))
	return c.run(ctx, filepath.Dir(c.benchDir), "init", args...)
}

// SetDBHost points every site at host (common_site_config db_host).
func (c *CLI) SetDBHost(ctx context.Context, host string) error {
	return c.run(ctx, c.benchDir, "set-mariadb-host", "set-mariadb-host", host)
}

// SetRedisHost sets the redis URL for one role.
func (c *CLI) SetRedisHost(ctx context.Context, role RedisRole, url string) error {
	sub := fmt.Sprintf("set-redis-%s-host", role)
	return c.run(ctx, c.benchDir, sub, sub, url)
}

// SetGlobalConfig writes a key into common_site_config.json.
func (c *CLI) SetGlobalConfig(ctx context.Context, key, value string) error {
	return c.run(ctx, c.benchDir, "set-config", "set-config", "-g", key, value)
}

// SetSiteConfig writes a key into the site's site_config.json.
func (c *CLI) SetSiteConfig(ctx context.Context, site, key, value string) error {
	return c.run(ctx, c.benchDir, "set-config", "--site", site, "set-config", key, value)
}

// NewSiteOptions configures bench new-site.
type NewSiteOptions struct {
	AdminPassword  string
	DBType         string
	DBHost         string
	DBPort         int
	DBRootUser     string
	DBRootPassword string
}

// NewSite creates site with a fresh database. Both passwords are masked in
// logs and errors.
func (c *CLI) NewSite(ctx context.Context, site string, opts NewSiteOptions) error {
	args := []string{"new-site", site,
		"--admin-password", opts.AdminPassword,
		"--db-root-password", opts.DBRootPassword,
	}
	if opts.DBRootUser != "" {
		args = append(args, "--db-root-username", opts.DBRootUser)
	}
	if opts.DBType != "" {
		args = append(args, "--db-type", opts.DBType)
	}
	if opts.DBHost != "" {
		args = append(args, "--db-host", opts.DBHost)
	}
	if opts.DBPort != 0 {
		args = append(args, "--db-port", fmt.Sprint(opts.DBPort))
	}
	if opts.DBType == "" || opts.DBType == "mariadb" {
		// Containers connect over the network, never the local socket.
		args = append(args, "--mariadb-user-host-login-scope=%")
	}
	return c.exec(ctx, shell.Command{
		Name:    c.exe,
		Args:    args,
		Dir:     c.benchDir,
		Env:     c.env,
		Secrets: []string{opts.AdminPassword, opts.DBRootPassword},
	}, "new-site")
}

// ClearCache clears the site's redis cache.
func (c *CLI) ClearCache(ctx context.Context, site string) error {
	return c.run(ctx, c.benchDir, "clear-cache", "--site", site, "clear-cache")
}

// Use makes site the default for subsequent bench commands.
func (c *CLI) Use(ctx context.Context, site string) error {
	return c.run(ctx, c.benchDir, "use", "use", site)
}

// GetApp clones app into apps/.
func (c *CLI) GetApp(ctx context.Context, app, branch string) error {
	args := []string{"get-app"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, app)
	return c.run(ctx, c.benchDir, "get-app", args...)
}

// InstallApp installs app on site.
func (c *CLI) InstallApp(ctx context.Context, site, app string) error {
	return c.run(ctx, c.benchDir, "install-app", "--site", site, "install-app", app)
}

// Candidates returns the places pip --user, pyenv and system installs put
// the bench executable, in search order.
func Candidates(home, pyenvRoot string) []string {
	return []string{
		filepath.Join(home, ".local", "bin", "bench"),
		filepath.Join(pyenvRoot, "shims", "bench"),
		"/usr/local/bin/bench",
		"/usr/bin/bench",
	}
}

// Locate returns the first executable candidate, then falls back to PATH.
func Locate(candidates []string) (string, bool) {
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			return c, true
		}
	}
	if p, err := exec.LookPath("bench"); err == nil {
		return p, true
	}
	return "", false
}
