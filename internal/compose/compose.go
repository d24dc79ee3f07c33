// Package compose brings up the development containers on the host and
// verifies that the application container is running.
package compose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/sabiqazhar/frappe-env-setup/internal/config"
	"github.com/sabiqazhar/frappe-env-setup/internal/shell"
)

// ErrContainerMissing is returned when a configured container does not exist
// after compose up.
var ErrContainerMissing = errors.New("container not found")

// ContainerAPI is the subset of the Docker client the launcher needs.
type ContainerAPI interface {
	ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error)
	ContainerStart(ctx context.Context, id string, opts container.StartOptions) error
}

// ContainerState is the observed state of one container.
type ContainerState struct {
	Name    string
	Status  string
	Started bool
}

// Launcher runs docker compose and reconciles container state.
type Launcher struct {
	runner shell.Runner
	docker ContainerAPI
	cfg    config.ComposeConfig
}

// NewLauncher returns a Launcher.
func NewLauncher(r shell.Runner, docker ContainerAPI, cfg config.ComposeConfig) *Launcher {
	return &Launcher{runner: r, docker: docker, cfg: cfg}
}

// NewDockerClient connects to the daemon described by DOCKER_HOST and
// friends, negotiating the API version.
func NewDockerClient() (*client.Client, error) {
	c, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return c, nil
}

// UpCommand is the compose invocation for cfg.
func UpCommand(cfg config.ComposeConfig) shell.Command {
	args := []string{"compose"}
	if cfg.File != "" {
		args = append(args, "-f", cfg.File)
	}
	if cfg.Project != "" {
		args = append(args, "-p", cfg.Project)
	}
	args = append(args, "up", "-d")
	return shell.Command{Name: "docker", Args: args}
}

// Up starts the compose project and then makes sure every named container is
// running. With no names the configured application container is checked.
func (l *Launcher) Up(ctx context.Context, names ...string) ([]ContainerState, error) {
	cmd := UpCommand(l.cfg)
	slog.InfoContext(ctx, "starting containers", "command", cmd.String())
	if _, err := l.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("docker compose up: %w", err)
	}
	if len(names) == 0 && l.cfg.AppContainer != "" {
		names = []string{l.cfg.AppContainer}
	}
	return l.EnsureRunning(ctx, names)
}

// EnsureRunning inspects each container and starts the stopped ones.
func (l *Launcher) EnsureRunning(ctx context.Context, names []string) ([]ContainerState, error) {
	states := make([]ContainerState, 0, len(names))
	for _, name := range names {
		info, err := l.docker.ContainerInspect(ctx, name)
		if err != nil {
			if client.IsErrNotFound(err) {
				return states, fmt.Errorf("%s: %w", name, ErrContainerMissing)
			}
			return states, fmt.Errorf("inspect %s: %w", name, err)
		}
		st := ContainerState{Name: name}
		if info.ContainerJSONBase != nil && info.State != nil {
			st.Status = info.State.Status
			if info.State.Running {
				states = append(states, st)
				continue
			}
		}
		slog.InfoContext(ctx, "starting stopped container", "container", name, "status", st.Status)
		if err := l.docker.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
			return states, fmt.Errorf("start %s: %w", name, err)
		}
		st.Status = "running"
		st.Started = true
		states = append(states, st)
	}
	return states, nil
}
