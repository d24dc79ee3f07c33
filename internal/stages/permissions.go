package stages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// Permissions hands the workspace to the current user. Bind-mounted
// workspaces are often created by root on the host side.
type Permissions struct {
	Runner shell.Runner
	UID    int
	GID    int
	// Owner returns the uid owning path.
	Owner func(path string) (int, error)
}

// NewPermissions returns the stage for the current process identity.
func NewPermissions(r shell.Runner) *Permissions {
	return &Permissions{Runner: r, UID: os.Getuid(), GID: os.Getgid(), Owner: fileOwner}
}

func (p *Permissions) Name() string { return NamePermissions }

func (p *Permissions) Run(ctx context.Context, st *orchestrator.State) (orchestrator.Outcome, error) {
	dir := st.Paths.Workspace
	owner, err := p.Owner(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return orchestrator.Skipped("workspace does not exist yet"), nil
	}
	if err != nil {
		return orchestrator.Outcome{}, fmt.Errorf("inspecting %s: %w", dir, err)
	}
	if owner == p.UID {
		return orchestrator.Skipped("workspace already owned by current user"), nil
	}

	out := orchestrator.Completed(fmt.Sprintf("chown %s to %d:%d", dir, p.UID, p.GID))
	chown := shell.Sudo(shell.Command{
		Name: "chown",
		Args: []string{"-R", fmt.Sprintf("%d:%d", p.UID, p.GID), dir},
	})
	if _, err := p.Runner.Run(ctx, chown); err != nil {
		out.Warn(fmt.Sprintf("could not take ownership of %s (owner uid %d): %v", dir, owner, err))
	}
	return out, nil
}

func fileOwner(path string) (int, error) {
	var stat unix.Stat_t
	if err := unix.Stat(path, &stat); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return 0, fs.ErrNotExist
		}
		return 0, err
	}
	return int(stat.Uid), nil
}
