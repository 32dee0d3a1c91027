// Package docker provides a throwaway MongoDB server in a Docker container.
package docker

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/kbukum/mongofixtures/ephemeral"
	"github.com/kbukum/mongofixtures/errors"
	"github.com/kbukum/mongofixtures/logger"
)

// mongoPort is the port mongod listens on inside the container.
const mongoPort = nat.Port("27017/tcp")

// LabelManagedBy marks containers started by this package.
const LabelManagedBy = "managed-by"

func init() {
	ephemeral.Register(ephemeral.ProviderDocker, func(cfg ephemeral.Config, log *logger.Logger) (ephemeral.Provider, error) {
		return New(cfg, log)
	})
}

// API is the subset of the Docker Engine client the provider uses.
type API interface {
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Provider starts mongod containers.
type Provider struct {
	api API
	cfg ephemeral.Config
	log *logger.Logger
}

var _ ephemeral.Provider = (*Provider)(nil)

// New creates a provider talking to the Docker daemon from cfg.DockerHost
// or the environment.
func New(cfg ephemeral.Config, log *logger.Logger) (*Provider, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.DockerHost != "" {
		opts = append(opts, client.WithHost(cfg.DockerHost))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errors.ProviderError(ephemeral.ProviderDocker, fmt.Errorf("create client: %w", err))
	}
	return NewWithAPI(cli, cfg, log), nil
}

// NewWithAPI creates a provider over an existing client.
func NewWithAPI(api API, cfg ephemeral.Config, log *logger.Logger) *Provider {
	cfg.ApplyDefaults()
	return &Provider{api: api, cfg: cfg, log: log.WithComponent("ephemeral.docker")}
}

func (p *Provider) Name() string { return ephemeral.ProviderDocker }

// Start pulls the image if needed, runs a container with the server port
// published on a random loopback port and returns its address.
func (p *Provider) Start(ctx context.Context) (ephemeral.Instance, error) {
	if err := p.ensureImage(ctx); err != nil {
		return nil, errors.ProviderError(p.Name(), fmt.Errorf("pull image: %w", err))
	}

	containerCfg, hostCfg := p.buildConfig()
	resp, err := p.api.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, errors.ProviderError(p.Name(), fmt.Errorf("create container: %w", err))
	}

	inst := &instance{api: p.api, id: resp.ID, grace: int(p.cfg.StopTimeout.Seconds()), log: p.log}
	if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = inst.remove(ctx)
		return nil, errors.ProviderError(p.Name(), fmt.Errorf("start container: %w", err))
	}

	port, err := p.hostPort(ctx, resp.ID)
	if err != nil {
		_ = inst.Stop(ctx)
		return nil, errors.ProviderError(p.Name(), err)
	}
	inst.uri = fmt.Sprintf("mongodb://127.0.0.1:%s/?directConnection=true", port)

	p.log.Info("server container started", logger.Fields(
		logger.FieldContainer, shortID(resp.ID),
		"image", p.cfg.Image,
		logger.FieldTarget, inst.uri,
	))
	return inst, nil
}

func (p *Provider) buildConfig() (*container.Config, *container.HostConfig) {
	containerCfg := &container.Config{
		Image:        p.cfg.Image,
		Labels:       map[string]string{LabelManagedBy: "mongofixtures"},
		ExposedPorts: nat.PortSet{mongoPort: struct{}{}},
	}
	if len(p.cfg.Args) > 0 {
		containerCfg.Cmd = append([]string{"mongod"}, p.cfg.Args...)
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			mongoPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		},
	}
	return containerCfg, hostCfg
}

// ensureImage pulls the image if not present locally.
func (p *Provider) ensureImage(ctx context.Context) error {
	if _, err := p.api.ImageInspect(ctx, p.cfg.Image); err == nil {
		return nil
	}

	p.log.Info("pulling image", logger.Fields("image", p.cfg.Image))
	reader, err := p.api.ImagePull(ctx, p.cfg.Image, image.PullOptions{})
	if err != nil {
		return err
	}
	defer reader.Close() //nolint:errcheck // Error on close is safe to ignore for read operations
	_, err = io.Copy(io.Discard, reader)
	return err
}

func (p *Provider) hostPort(ctx context.Context, id string) (string, error) {
	info, err := p.api.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("inspect container: %w", err)
	}
	if info.NetworkSettings == nil {
		return "", fmt.Errorf("container %s has no network settings", shortID(id))
	}
	for _, b := range info.NetworkSettings.Ports[mongoPort] {
		if b.HostPort != "" {
			return b.HostPort, nil
		}
	}
	return "", fmt.Errorf("container %s does not publish %s", shortID(id), mongoPort)
}

type instance struct {
	api   API
	id    string
	uri   string
	grace int
	log   *logger.Logger
	once  sync.Once
	err   error
}

func (i *instance) ConnectionString() string { return i.uri }

// ContainerID returns the id of the server container.
func (i *instance) ContainerID() string { return i.id }

// Check reports an error once the container is no longer running.
func (i *instance) Check() error {
	info, err := i.api.ContainerInspect(context.Background(), i.id)
	if err != nil {
		return err
	}
	if info.ContainerJSONBase != nil && info.State != nil && !info.State.Running {
		return fmt.Errorf("container %s is %s (exit code %d)", shortID(i.id), info.State.Status, info.State.ExitCode)
	}
	return nil
}

// Stop stops and removes the container. Later calls return the first result.
func (i *instance) Stop(ctx context.Context) error {
	i.once.Do(func() {
		var errs []error
		if err := i.api.ContainerStop(ctx, i.id, container.StopOptions{Timeout: &i.grace}); err != nil && !client.IsErrNotFound(err) {
			errs = append(errs, fmt.Errorf("stop container: %w", err))
		}
		if err := i.remove(ctx); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			i.err = errors.ProviderError(ephemeral.ProviderDocker, stderrors.Join(errs...))
			return
		}
		i.log.Info("server container removed", logger.Fields(logger.FieldContainer, shortID(i.id)))
	})
	return i.err
}

func (i *instance) remove(ctx context.Context) error {
	err := i.api.ContainerRemove(ctx, i.id, container.RemoveOptions{RemoveVolumes: true, Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
