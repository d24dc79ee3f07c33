package stages

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// FetchApps runs bench get-app for every configured app missing from apps/.
type FetchApps struct {
	Runner shell.Runner
}

func (f *FetchApps) Name() string { return NameFetchApps }

func (f *FetchApps) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	var fetched []string
	cli := benchFor(f.Runner, st)
	for _, app := range st.Config.Frappe.Apps {
		name := appDirName(app)
		if dirExists(filepath.Join(st.Paths.Apps, name)) {
			continue
		}
		if err := cli.GetApp(ctx, app, st.Config.Frappe.Branch); err != nil {
			return orchestrator.Outcome{}, err
		}
		fetched = append(fetched, name)
	}
	if len(fetched) == 0 {
		return orchestrator.Skipped("no apps to fetch"), nil
	}
	return orchestrator.Completed(fmt.Sprintf("fetched %s", strings.Join(fetched, ", "))), nil
}
