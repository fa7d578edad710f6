package docker

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"dockmate/internal/runtime"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	client.APIClient

	pullBody   string
	inspectErr error
	removeErr  error
	removed    []container.RemoveOptions
}

func (f *fakeAPI) ImagePull(_ context.Context, _ string, _ image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.pullBody)), nil
}

func (f *fakeAPI) ImageInspect(_ context.Context, ref string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	if f.inspectErr != nil {
		return image.InspectResponse{}, f.inspectErr
	}
	return image.InspectResponse{ID: "sha256:abc", RepoTags: []string{ref}}, nil
}

func (f *fakeAPI) ContainerRemove(_ context.Context, _ string, opts container.RemoveOptions) error {
	f.removed = append(f.removed, opts)
	return f.removeErr
}

func TestPullImageProgress(t *testing.T) {
	body := `{"status":"Pulling from library/redis","id":"7-alpine"}
{"status":"Pulling fs layer","id":"a1"}
{"status":"Downloading","progressDetail":{"current":512,"total":1024},"id":"a1"}
{"status":"Download complete","id":"a1"}
{"status":"Status: Downloaded newer image for redis:7-alpine"}
`
	h := NewHandlerWithClient(&fakeAPI{pullBody: body})

	var events []runtime.PullEvent
	err := h.PullImage(context.Background(), "redis:7-alpine", func(ev runtime.PullEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 5)
	assert.Equal(t, runtime.PullEvent{LayerId: "a1", Status: "Downloading", Current: 512, Total: 1024}, events[2])
	assert.Equal(t, "", events[4].LayerId)
}

func TestPullImageErrorRecord(t *testing.T) {
	body := `{"status":"Pulling from library/nope"}
{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}
`
	h := NewHandlerWithClient(&fakeAPI{pullBody: body})
	err := h.PullImage(context.Background(), "nope:1", nil)
	require.Error(t, err)
	assert.Equal(t, "manifest unknown", err.Error())
}

func TestBuildStreamLines(t *testing.T) {
	var events []runtime.PullEvent
	err := decodeProgress(strings.NewReader(`{"stream":"Step 1/2 : FROM node:20-alpine\n"}{"stream":"\n"}`), func(ev runtime.PullEvent) {
		events = append(events, ev)
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Step 1/2 : FROM node:20-alpine", events[0].Status)
}

func TestInspectImageNotFound(t *testing.T) {
	h := NewHandlerWithClient(&fakeAPI{inspectErr: errdefs.NotFound(errors.New("No such image: redis:7"))})
	_, err := h.InspectImage(context.Background(), "redis:7")
	assert.True(t, runtime.IsNotFound(err))

	h = NewHandlerWithClient(&fakeAPI{inspectErr: errors.New("daemon down")})
	_, err = h.InspectImage(context.Background(), "redis:7")
	require.Error(t, err)
	assert.False(t, runtime.IsNotFound(err))
	assert.Equal(t, "daemon down", err.Error())

	h = NewHandlerWithClient(&fakeAPI{})
	info, err := h.InspectImage(context.Background(), "redis:7")
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc", info.Id)
}

func TestRemoveForce(t *testing.T) {
	api := &fakeAPI{}
	h := NewHandlerWithClient(api)
	require.NoError(t, h.Remove(context.Background(), runtime.RemoveModel{ContainerId: "c1", Force: true}))
	assert.True(t, api.removed[0].Force)

	api.removeErr = errdefs.NotFound(errors.New("No such container: c1"))
	assert.True(t, runtime.IsNotFound(h.Remove(context.Background(), runtime.RemoveModel{ContainerId: "c1"})))
}

func TestContainerConfig(t *testing.T) {
	cfg, hostCfg, netCfg, err := containerConfig(runtime.CreateModel{
		Name:          "cache1",
		Image:         "redis:7-alpine",
		Env:           []string{"A=1"},
		Command:       []string{"redis-server", "--appendonly", "yes"},
		HostPort:      6380,
		ContainerPort: 6379,
		Binds:         []string{"/srv/cache1/data:/data"},
		NetworkName:   "bridge",
	})
	require.NoError(t, err)

	port := nat.Port("6379/tcp")
	assert.Contains(t, cfg.ExposedPorts, port)
	assert.Equal(t, "6380", hostCfg.PortBindings[port][0].HostPort)
	assert.Equal(t, []string{"/srv/cache1/data:/data"}, hostCfg.Binds)
	assert.Equal(t, container.NetworkMode("bridge"), hostCfg.NetworkMode)
	assert.Contains(t, netCfg.EndpointsConfig, "bridge")
	assert.Equal(t, []string{"redis-server", "--appendonly", "yes"}, []string(cfg.Cmd))

	cfg, _, netCfg, err = containerConfig(runtime.CreateModel{Image: "nginx:1.27-alpine"})
	require.NoError(t, err)
	assert.Nil(t, cfg.Cmd)
	assert.Nil(t, netCfg)
}

func TestSummarizeStats(t *testing.T) {
	var st container.StatsResponse
	st.CPUStats.CPUUsage.TotalUsage = 300
	st.PreCPUStats.CPUUsage.TotalUsage = 100
	st.CPUStats.SystemUsage = 2000
	st.PreCPUStats.SystemUsage = 1000
	st.CPUStats.OnlineCPUs = 2
	st.MemoryStats.Usage = 600
	st.MemoryStats.Limit = 1000
	st.MemoryStats.Stats = map[string]uint64{"inactive_file": 100}
	st.Networks = map[string]container.NetworkStats{
		"eth0": {RxBytes: 10, TxBytes: 20},
		"eth1": {RxBytes: 1, TxBytes: 2},
	}

	got := summarizeStats(st)
	assert.InDelta(t, 40.0, got.CPUPercent, 0.001)
	assert.Equal(t, uint64(500), got.MemoryUsage)
	assert.InDelta(t, 50.0, got.MemoryPercent, 0.001)
	assert.Equal(t, uint64(11), got.NetworkRx)
	assert.Equal(t, uint64(22), got.NetworkTx)
}
