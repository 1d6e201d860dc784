// Package container is the thin, opinionated container driver (component
// C4): run/exec/kill ephemeral containers with the workspace bind-mounted.
// Grounded on
// spencerandtheteagues-apex-build-platform's
// internal/sandbox/v2/executor.go (ContainerCreate/Start/Wait/Kill/Remove
// lifecycle, stdcopy-combined log reads, bind mounts, CapDrop, NetworkMode
// "none") using the Docker Engine SDK rather than the teacher's own
// sandbox (internal/judge/sandbox/engine_linux.go), which manipulates raw
// namespaces and cgroups directly and has no container abstraction to
// adapt — the spec requires Docker explicitly (§4.4), so this is new
// infrastructure grounded on the one pack repo that already uses the
// Docker SDK this way.
package container

import (
	"bytes"
	"context"
	"io"
	"strings"

	"treadmill/pkg/errors"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// shellKeepAlive is the always-alive shell entrypoint spec §4.4 requires so
// multiple Exec calls are possible against one container.
var shellKeepAlive = []string{"/bin/sh", "-c", "trap : TERM INT; tail -f /dev/null & wait"}

// Driver wraps a Docker Engine SDK client. One Driver is shared by every
// in-flight request (spec §5: "the container-engine client" is process-
// owned and must be safe for concurrent use, which the SDK client is).
type Driver struct {
	cli *client.Client
}

// NewDriver connects to the Docker daemon using the standard
// DOCKER_HOST/DOCKER_* environment variables.
func NewDriver() (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, errors.JudgeSystemError).WithMessage("docker client init failed")
	}
	return &Driver{cli: cli}, nil
}

// RunOptions configures a container start (spec §4.4).
type RunOptions struct {
	Image string
	// WorkspaceHostPath is bind-mounted read-write at /workspace inside
	// the container. Changes to the image's own layer are discarded when
	// the container is removed.
	WorkspaceHostPath string
	// Privileged is true only for sandbox containers that run isolate
	// (spec §4.6: "privileged iff isolated").
	Privileged bool
}

// Run starts a detached container per RunOptions and returns its id.
// Teardown is the caller's responsibility via Kill.
func (d *Driver) Run(ctx context.Context, opts RunOptions) (containerID string, err error) {
	mounts := []mount.Mount{
		{
			Type:   mount.TypeBind,
			Source: opts.WorkspaceHostPath,
			Target: "/workspace",
		},
	}

	hostCfg := &container.HostConfig{
		Mounts:      mounts,
		Privileged:  opts.Privileged,
		NetworkMode: "none",
		AutoRemove:  false,
	}
	if !opts.Privileged {
		hostCfg.CapDrop = []string{"ALL"}
	}

	created, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:        opts.Image,
		Cmd:          shellKeepAlive,
		AttachStdout: false,
		AttachStderr: false,
		Tty:          false,
	}, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", errors.Wrap(err, errors.JudgeSystemError).WithMessagef("create container from image %s", opts.Image)
	}

	if err := d.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		_ = d.Kill(context.Background(), created.ID)
		return "", errors.Wrap(err, errors.JudgeSystemError).WithMessagef("start container %s", created.ID)
	}
	return created.ID, nil
}

// Exec runs argv inside containerID via `/bin/sh -c <argv joined>`, per
// spec §4.4, and returns the combined stdout+stderr bytes.
func (d *Driver) Exec(ctx context.Context, containerID string, argv []string) (exitCode int, output []byte, err error) {
	execCreate, err := d.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", strings.Join(argv, " ")},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.JudgeSystemError).WithMessagef("exec create in %s", containerID)
	}

	attach, err := d.cli.ContainerExecAttach(ctx, execCreate.ID, container.ExecAttachOptions{})
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.JudgeSystemError).WithMessagef("exec attach in %s", containerID)
	}
	defer attach.Close()

	var combined bytes.Buffer
	if _, err := stdcopy.StdCopy(&combined, &combined, attach.Reader); err != nil && err != io.EOF {
		return 0, nil, errors.Wrap(err, errors.JudgeSystemError).WithMessage("read exec output")
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, execCreate.ID)
	if err != nil {
		return 0, nil, errors.Wrap(err, errors.JudgeSystemError).WithMessagef("exec inspect in %s", containerID)
	}
	return inspect.ExitCode, combined.Bytes(), nil
}

// Kill stops and removes containerID. Idempotent: a missing container is
// not an error (spec §4.4).
func (d *Driver) Kill(ctx context.Context, containerID string) error {
	if containerID == "" {
		return nil
	}
	_ = d.cli.ContainerKill(ctx, containerID, "SIGKILL")
	if err := d.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return errors.Wrap(err, errors.JudgeSystemError).WithMessagef("remove container %s", containerID)
	}
	return nil
}

// Close releases the underlying Docker SDK client.
func (d *Driver) Close() error {
	return d.cli.Close()
}
