// Package rundriver is the watcher's container runtime boundary: it
// inspects, tails the logs of, and restarts already-running containers
// on a single Docker host. It does not create images or containers —
// those are assumed to exist and be managed elsewhere.
package rundriver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// ErrNotFound is returned when the named container does not exist.
var ErrNotFound = errors.New("container not found")

// Driver is the interface the supervisor and command handler consume;
// a fake implementation backs their unit tests.
type Driver interface {
	Status(ctx context.Context, name string) (Status, error)
	TailLogs(ctx context.Context, name string, lines int) (string, error)
	Restart(ctx context.Context, name string, timeoutSeconds int) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, timeoutSeconds int) error
}

// Status is the subset of container state the watcher cares about.
type Status struct {
	Running bool
	State   string // docker's reported state: "running", "exited", "restarting", ...
}

// DockerDriver implements Driver against a real Docker daemon.
type DockerDriver struct {
	cli *client.Client
}

// New connects to the Docker daemon using the standard environment
// configuration (DOCKER_HOST, DOCKER_CERT_PATH, ...).
func New() (*DockerDriver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &DockerDriver{cli: cli}, nil
}

// Close releases the underlying Docker client's resources.
func (d *DockerDriver) Close() error {
	return d.cli.Close()
}

// Status inspects a container and reports whether it is running.
func (d *DockerDriver) Status(ctx context.Context, name string) (Status, error) {
	info, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return Status{}, ErrNotFound
		}
		return Status{}, fmt.Errorf("inspecting container %s: %w", name, err)
	}
	if info.State == nil {
		return Status{}, fmt.Errorf("container %s reported no state", name)
	}
	return Status{
		Running: info.State.Running,
		State:   info.State.Status,
	}, nil
}

// TailLogs returns the last n lines of combined stdout/stderr output,
// with invalid UTF-8 sequences replaced by U+FFFD.
func (d *DockerDriver) TailLogs(ctx context.Context, name string, lines int) (string, error) {
	reader, err := d.cli.ContainerLogs(ctx, name, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(lines),
	})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("fetching logs for %s: %w", name, err)
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return "", fmt.Errorf("demuxing logs for %s: %w", name, err)
	}

	combined := stdout.String() + stderr.String()
	return strings.ToValidUTF8(combined, "�"), nil
}

// Restart stops (SIGTERM, then SIGKILL after timeoutSeconds) and
// restarts the container.
func (d *DockerDriver) Restart(ctx context.Context, name string, timeoutSeconds int) error {
	err := d.cli.ContainerRestart(ctx, name, container.StopOptions{Timeout: &timeoutSeconds})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("restarting container %s: %w", name, err)
	}
	return nil
}

// Start starts a stopped container.
func (d *DockerDriver) Start(ctx context.Context, name string) error {
	err := d.cli.ContainerStart(ctx, name, types.ContainerStartOptions{})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("starting container %s: %w", name, err)
	}
	return nil
}

// Stop stops a running container.
func (d *DockerDriver) Stop(ctx context.Context, name string, timeoutSeconds int) error {
	err := d.cli.ContainerStop(ctx, name, container.StopOptions{Timeout: &timeoutSeconds})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("stopping container %s: %w", name, err)
	}
	return nil
}
