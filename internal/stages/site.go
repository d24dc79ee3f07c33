package stages

import (
	"context"
	"fmt"

	"github.com/sabiqazhar/frappe-env-setup/internal/bench"
	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Site creates the configured site, or refreshes an existing one without
// touching its database.
type Site struct {
	Runner shell.Runner
}

func (s *Site) Name() string { return NameSite }

func (s *Site) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	cfg := st.Config
	site := cfg.Site.Name
	cli := benchFor(s.Runner, st)

	if dirExists(st.Paths.SiteDir(site)) {
		out := orchestrator.Skipped(site + " already exists")
		if err := cli.ClearCache(ctx, site); err != nil {
			out.Warn(fmt.Sprintf("clear-cache failed: %v", err))
		}
		if err := cli.Use(ctx, site); err != nil {
			return orchestrator.Outcome{}, err
		}
		return out, nil
	}

	opts := bench.NewSiteOptions{
		AdminPassword:  cfg.Site.AdminPassword,
		DBType:         cfg.Database.Type,
		DBRootUser:     cfg.Database.RootUser,
		DBRootPassword: cfg.Database.RootPassword,
		DBPort:         cfg.Database.Port,
	}
	if cfg.Database.Type == config.DBPostgres {
		opts.DBHost = cfg.Database.Host
	}
	if err := cli.NewSite(ctx, site, opts); err != nil {
		return orchestrator.Outcome{}, err
	}

	out := orchestrator.Completed("created " + site)
	if cfg.Site.DeveloperMode {
		if err := cli.SetSiteConfig(ctx, site, "developer_mode", "1"); err != nil {
			out.Warn(fmt.Sprintf("developer_mode not enabled: %v", err))
		}
	}
	for _, app := range cfg.Frappe.Apps {
		name := appDirName(app)
		if err := cli.InstallApp(ctx, site, name); err != nil {
			out.Warn(fmt.Sprintf("install-app %s failed: %v", name, err))
		}
	}
	if err := cli.Use(ctx, site); err != nil {
		return orchestrator.Outcome{}, err
	}
	return out, nil
}
