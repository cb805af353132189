package build

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDockerWorkdir is where the plugin root is mounted in the container
	DefaultDockerWorkdir = "/plugin"

	// DefaultDockerCommand is the compiler executable inside the image
	DefaultDockerCommand = "spcomp"

	pullTimeout = 5 * time.Minute
	pingTimeout = 5 * time.Second
)

// DockerOptions configures a DockerCompiler
type DockerOptions struct {
	Image   string
	Command string

	// Workdir is the container path the host plugin root is mounted at
	Workdir string

	// HostRoot is the plugin root on the host; every request path must be below it
	HostRoot string

	Logger *logrus.Logger
}

// DockerCompiler runs spcomp inside a container with the plugin root bind-mounted
type DockerCompiler struct {
	client *client.Client
	opts   DockerOptions
	logger *logrus.Logger

	mu     sync.Mutex
	pulled bool
}

// NewDockerCompiler connects to the docker daemon from the environment
func NewDockerCompiler(opts DockerOptions) (*DockerCompiler, error) {
	if opts.Workdir == "" {
		opts.Workdir = DefaultDockerWorkdir
	}
	if opts.Command == "" {
		opts.Command = DefaultDockerCommand
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: %v", ErrDockerNotAvailable, err)
	}

	return &DockerCompiler{
		client: cli,
		opts:   opts,
		logger: logger,
	}, nil
}

// Compile implements Compiler. The container is removed afterwards even when
// ctx expires.
func (c *DockerCompiler) Compile(ctx context.Context, req *CompileRequest) (*CompileResult, error) {
	result := &CompileResult{ExitCode: -1}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
	}()

	if err := c.pullImage(ctx); err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, err)
	}

	cmd, err := c.command(req)
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, err)
	}

	resp, err := c.client.ContainerCreate(ctx, &container.Config{
		Image:        c.opts.Image,
		Cmd:          cmd,
		WorkingDir:   c.opts.Workdir,
		User:         fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		AttachStdout: true,
		AttachStderr: true,
	}, &container.HostConfig{
		Binds: []string{fmt.Sprintf("%s:%s", c.opts.HostRoot, c.opts.Workdir)},
	}, nil, nil, "")
	if err != nil {
		return result, fmt.Errorf("%w: %s: create container: %v", ErrCompileInvocation, req.Name, err)
	}
	defer func() {
		if err := c.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			c.logger.WithError(err).WithField("container", resp.ID).Warn("Failed to remove compiler container")
		}
	}()

	if err := c.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return result, fmt.Errorf("%w: %s: start container: %v", ErrCompileInvocation, req.Name, err)
	}

	statusCh, errCh := c.client.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, ctxErr)
			}
			return result, fmt.Errorf("%w: %s: wait: %v", ErrCompileInvocation, req.Name, err)
		}
	case status := <-statusCh:
		result.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		return result, fmt.Errorf("%w: %s: %w", ErrCompileInvocation, req.Name, ctx.Err())
	}

	logs, err := c.client.ContainerLogs(context.Background(), resp.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		c.logger.WithError(err).WithField("container", resp.ID).Debug("Failed to fetch compiler output")
	} else {
		result.Output = demuxLogs(c.logger, resp.ID, logs)
		logs.Close()
	}

	if result.ExitCode != 0 {
		return result, fmt.Errorf("%w: %s: exit code %d", ErrCompileInvocation, req.Name, result.ExitCode)
	}
	return result, nil
}

// demuxLogs splits a multiplexed container log stream and returns stdout
// followed by stderr. Whatever was read before a stream error is kept.
func demuxLogs(logger *logrus.Logger, id string, r io.Reader) string {
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, r); err != nil {
		logger.WithError(err).WithField("container", id).Debug("Failed to read compiler output")
	}
	return stdout.String() + stderr.String()
}

// Close implements Compiler
func (c *DockerCompiler) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func (c *DockerCompiler) pullImage(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pulled {
		return nil
	}

	if _, err := c.client.ImageInspect(ctx, c.opts.Image); err == nil {
		c.pulled = true
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, pullTimeout)
	defer cancel()

	c.logger.WithField("image", c.opts.Image).Info("Pulling compiler image")
	reader, err := c.client.ImagePull(pullCtx, c.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %v", c.opts.Image, err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %v", c.opts.Image, err)
	}

	c.pulled = true
	return nil
}

// command maps the request's host paths into the container
func (c *DockerCompiler) command(req *CompileRequest) ([]string, error) {
	src, err := containerPath(c.opts.HostRoot, c.opts.Workdir, req.Source)
	if err != nil {
		return nil, err
	}
	out, err := containerPath(c.opts.HostRoot, c.opts.Workdir, req.Output)
	if err != nil {
		return nil, err
	}
	errLog, err := containerPath(c.opts.HostRoot, c.opts.Workdir, req.ErrorLog)
	if err != nil {
		return nil, err
	}

	mapped := &CompileRequest{Name: req.Name, Source: src, Output: out, ErrorLog: errLog}
	return append([]string{c.opts.Command}, mapped.Args()...), nil
}

// containerPath translates a host path below hostRoot into the mount at workdir
func containerPath(hostRoot, workdir, hostPath string) (string, error) {
	rel, err := filepath.Rel(hostRoot, hostPath)
	if err != nil {
		return "", fmt.Errorf("path %s is not below %s: %w", hostPath, hostRoot, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is not below %s", hostPath, hostRoot)
	}
	return path.Join(workdir, filepath.ToSlash(rel)), nil
}
