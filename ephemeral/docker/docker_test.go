package docker

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"sync"
	"testing"

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

type fakeAPI struct {
	mu        sync.Mutex
	calls     []string
	hasImage  bool
	hostPort  string
	running   bool
	startErr  error
	created   *container.Config
	hostCfg   *container.HostConfig
	stopGrace *int
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) ImageInspect(ctx context.Context, imageID string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	f.record("image.inspect")
	if !f.hasImage {
		return image.InspectResponse{}, stderrors.New("no such image")
	}
	return image.InspectResponse{}, nil
}

func (f *fakeAPI) ImagePull(ctx context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.record("image.pull")
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded"}`)), nil
}

func (f *fakeAPI) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, _ string) (container.CreateResponse, error) {
	f.record("container.create")
	f.created = cfg
	f.hostCfg = hostCfg
	return container.CreateResponse{ID: "0123456789abcdef0123"}, nil
}

func (f *fakeAPI) ContainerStart(ctx context.Context, id string, _ container.StartOptions) error {
	f.record("container.start")
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeAPI) ContainerInspect(ctx context.Context, id string) (container.InspectResponse, error) {
	f.record("container.inspect")
	resp := container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    id,
			State: &container.State{Running: f.running, Status: "running"},
		},
		NetworkSettings: &container.NetworkSettings{},
	}
	if !f.running {
		resp.State.Status = "exited"
		resp.State.ExitCode = 14
	}
	if f.hostPort != "" {
		resp.NetworkSettings.Ports = nat.PortMap{mongoPort: {{HostIP: "127.0.0.1", HostPort: f.hostPort}}}
	}
	return resp, nil
}

func (f *fakeAPI) ContainerStop(ctx context.Context, id string, opts container.StopOptions) error {
	f.record("container.stop")
	f.stopGrace = opts.Timeout
	f.running = false
	return nil
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, id string, _ container.RemoveOptions) error {
	f.record("container.remove")
	return nil
}

func newProvider(api *fakeAPI, cfg ephemeral.Config) *Provider {
	return NewWithAPI(api, cfg, logger.Nop())
}

func TestStartPullsAndPublishesPort(t *testing.T) {
	api := &fakeAPI{hostPort: "49153"}
	p := newProvider(api, ephemeral.Config{Provider: ephemeral.ProviderDocker, Image: "mongo:7", Args: []string{"--quiet"}})

	inst, err := p.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := inst.ConnectionString(); got != "mongodb://127.0.0.1:49153/?directConnection=true" {
		t.Errorf("connection string = %q", got)
	}
	want := []string{"image.inspect", "image.pull", "container.create", "container.start", "container.inspect"}
	if strings.Join(api.calls, ",") != strings.Join(want, ",") {
		t.Errorf("calls = %v, want %v", api.calls, want)
	}
	if api.created.Image != "mongo:7" || api.created.Labels[LabelManagedBy] != "mongofixtures" {
		t.Errorf("unexpected container config: %+v", api.created)
	}
	if strings.Join(api.created.Cmd, " ") != "mongod --quiet" {
		t.Errorf("cmd = %v", api.created.Cmd)
	}
	if b := api.hostCfg.PortBindings[mongoPort]; len(b) != 1 || b[0].HostIP != "127.0.0.1" {
		t.Errorf("port bindings = %v", api.hostCfg.PortBindings)
	}
	if err := ephemeral.Alive(inst); err != nil {
		t.Errorf("running container reported dead: %v", err)
	}
}

func TestStartSkipsPullWhenImagePresent(t *testing.T) {
	api := &fakeAPI{hasImage: true, hostPort: "1"}
	if _, err := newProvider(api, ephemeral.Config{Provider: ephemeral.ProviderDocker}).Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, c := range api.calls {
		if c == "image.pull" {
			t.Fatal("image pulled although present")
		}
	}
	if api.created.Cmd != nil {
		t.Errorf("expected image default command, got %v", api.created.Cmd)
	}
}

func TestStartFailureRemovesContainer(t *testing.T) {
	api := &fakeAPI{hasImage: true, startErr: stderrors.New("port in use")}
	_, err := newProvider(api, ephemeral.Config{Provider: ephemeral.ProviderDocker}).Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeProvider) {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
	if last := api.calls[len(api.calls)-1]; last != "container.remove" {
		t.Errorf("expected cleanup, calls = %v", api.calls)
	}
}

func TestStartWithoutPublishedPort(t *testing.T) {
	api := &fakeAPI{hasImage: true}
	_, err := newProvider(api, ephemeral.Config{Provider: ephemeral.ProviderDocker}).Start(context.Background())
	if !errors.HasCode(err, errors.ErrCodeProvider) {
		t.Fatalf("expected PROVIDER_ERROR, got %v", err)
	}
	if last := api.calls[len(api.calls)-1]; last != "container.remove" {
		t.Errorf("expected cleanup, calls = %v", api.calls)
	}
}

func TestStopRemovesOnce(t *testing.T) {
	api := &fakeAPI{hasImage: true, hostPort: "1"}
	p := newProvider(api, ephemeral.Config{Provider: ephemeral.ProviderDocker})
	inst, err := p.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := inst.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := inst.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	stops := 0
	for _, c := range api.calls {
		if c == "container.stop" {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("container stopped %d times", stops)
	}
	if api.stopGrace == nil || *api.stopGrace != 10 {
		t.Errorf("stop grace = %v", api.stopGrace)
	}
	if err := ephemeral.Alive(inst); err == nil {
		t.Error("expected stopped container to report an error")
	}
}
