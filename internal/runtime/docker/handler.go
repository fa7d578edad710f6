// Package docker implements the runtime handler on the Docker Engine API.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dockmate/internal/runtime"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

const stopTimeoutSeconds = 10

// NewDockerHandler connects to host, or to the environment's DOCKER_HOST
// when host is empty.
func NewDockerHandler(host string) (*Handler, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &Handler{cli: cli}, nil
}

func NewHandlerWithClient(cli client.APIClient) *Handler {
	return &Handler{cli: cli}
}

type Handler struct {
	cli client.APIClient
}

func (h *Handler) Close() error {
	return h.cli.Close()
}

func (h *Handler) ListContainers(ctx context.Context, all bool) ([]runtime.ContainerSummary, error) {
	list, err := h.cli.ContainerList(ctx, container.ListOptions{All: all})
	if err != nil {
		return nil, err
	}
	out := make([]runtime.ContainerSummary, 0, len(list))
	for _, c := range list {
		names := make([]string, 0, len(c.Names))
		for _, n := range c.Names {
			names = append(names, strings.TrimPrefix(n, "/"))
		}
		out = append(out, runtime.ContainerSummary{
			Id:     c.ID,
			Names:  names,
			Image:  c.Image,
			State:  string(c.State),
			Status: c.Status,
		})
	}
	return out, nil
}

func (h *Handler) ListImages(ctx context.Context) ([]runtime.ImageSummary, error) {
	list, err := h.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]runtime.ImageSummary, 0, len(list))
	for _, img := range list {
		out = append(out, runtime.ImageSummary{
			Id:       img.ID,
			RepoTags: img.RepoTags,
			Size:     img.Size,
			Created:  time.Unix(img.Created, 0),
		})
	}
	return out, nil
}

func (h *Handler) ListNetworks(ctx context.Context) ([]runtime.NetworkSummary, error) {
	list, err := h.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]runtime.NetworkSummary, 0, len(list))
	for _, n := range list {
		out = append(out, runtime.NetworkSummary{
			Id:     n.ID,
			Name:   n.Name,
			Driver: n.Driver,
			Scope:  n.Scope,
		})
	}
	return out, nil
}

func (h *Handler) InspectImage(ctx context.Context, ref string) (runtime.ImageInfo, error) {
	info, err := h.cli.ImageInspect(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return runtime.ImageInfo{}, fmt.Errorf("image %s: %w", ref, runtime.ErrNotFound)
		}
		return runtime.ImageInfo{}, err
	}
	return runtime.ImageInfo{
		Id:       info.ID,
		RepoTags: info.RepoTags,
		Created:  info.Created,
	}, nil
}

func (h *Handler) PullImage(ctx context.Context, ref string, onProgress func(runtime.PullEvent)) error {
	rc, err := h.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return err
	}
	defer rc.Close()
	return decodeProgress(rc, onProgress)
}

func (h *Handler) BuildImage(ctx context.Context, buildParameter runtime.BuildModel, onProgress func(runtime.PullEvent)) error {
	resp, err := h.cli.ImageBuild(ctx, buildParameter.Context, build.ImageBuildOptions{
		Tags:        []string{buildParameter.Tag},
		Dockerfile:  buildParameter.Dockerfile,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeProgress(resp.Body, onProgress)
}

// decodeProgress reads a jsonmessage stream to EOF. An error record in the
// stream fails the operation with its message.
func decodeProgress(r io.Reader, onProgress func(runtime.PullEvent)) error {
	dec := json.NewDecoder(r)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("decode progress stream: %w", err)
		}
		if msg.Error != nil {
			return errors.New(msg.Error.Message)
		}
		if msg.ErrorMessage != "" {
			return errors.New(msg.ErrorMessage)
		}
		if onProgress == nil {
			continue
		}
		ev := runtime.PullEvent{
			LayerId: msg.ID,
			Status:  msg.Status,
		}
		if ev.Status == "" {
			ev.Status = strings.TrimRight(msg.Stream, "\r\n")
		}
		if msg.Progress != nil {
			ev.Current = msg.Progress.Current
			ev.Total = msg.Progress.Total
		}
		if ev.Status == "" {
			continue
		}
		onProgress(ev)
	}
}

func (h *Handler) Create(ctx context.Context, createParameter runtime.CreateModel) (string, error) {
	cfg, hostCfg, netCfg, err := containerConfig(createParameter)
	if err != nil {
		return "", err
	}
	resp, err := h.cli.ContainerCreate(ctx, cfg, hostCfg, netCfg, nil, createParameter.Name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func containerConfig(p runtime.CreateModel) (*container.Config, *container.HostConfig, *network.NetworkingConfig, error) {
	cfg := &container.Config{
		Image:      p.Image,
		Env:        p.Env,
		WorkingDir: p.WorkingDir,
		Labels:     p.Labels,
	}
	if len(p.Command) > 0 {
		cfg.Cmd = p.Command
	}

	hostCfg := &container.HostConfig{
		Binds:         p.Binds,
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	if p.ContainerPort > 0 {
		port, err := nat.NewPort("tcp", strconv.Itoa(p.ContainerPort))
		if err != nil {
			return nil, nil, nil, err
		}
		cfg.ExposedPorts = nat.PortSet{port: struct{}{}}
		if p.HostPort > 0 {
			hostCfg.PortBindings = nat.PortMap{
				port: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(p.HostPort)}},
			}
		}
	}

	var netCfg *network.NetworkingConfig
	if p.NetworkName != "" {
		hostCfg.NetworkMode = container.NetworkMode(p.NetworkName)
		netCfg = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{p.NetworkName: {}},
		}
	}
	return cfg, hostCfg, netCfg, nil
}

func (h *Handler) Start(ctx context.Context, containerId string) error {
	return h.cli.ContainerStart(ctx, containerId, container.StartOptions{})
}

func (h *Handler) Stop(ctx context.Context, containerId string) error {
	timeout := stopTimeoutSeconds
	return h.cli.ContainerStop(ctx, containerId, container.StopOptions{Timeout: &timeout})
}

func (h *Handler) Restart(ctx context.Context, containerId string) error {
	timeout := stopTimeoutSeconds
	return h.cli.ContainerRestart(ctx, containerId, container.StopOptions{Timeout: &timeout})
}

func (h *Handler) Remove(ctx context.Context, removeParameter runtime.RemoveModel) error {
	err := h.cli.ContainerRemove(ctx, removeParameter.ContainerId, container.RemoveOptions{Force: removeParameter.Force})
	if err != nil && client.IsErrNotFound(err) {
		return fmt.Errorf("container %s: %w", removeParameter.ContainerId, runtime.ErrNotFound)
	}
	return err
}

func (h *Handler) Inspect(ctx context.Context, containerId string) (runtime.ContainerInfo, error) {
	info, err := h.cli.ContainerInspect(ctx, containerId)
	if err != nil {
		if client.IsErrNotFound(err) {
			return runtime.ContainerInfo{}, fmt.Errorf("container %s: %w", containerId, runtime.ErrNotFound)
		}
		return runtime.ContainerInfo{}, err
	}
	out := runtime.ContainerInfo{}
	if info.ContainerJSONBase != nil {
		out.Id = info.ID
		out.Name = strings.TrimPrefix(info.Name, "/")
		out.Image = info.Image
		if info.State != nil {
			out.Status = string(info.State.Status)
			out.Running = info.State.Running
			out.StartedAt = info.State.StartedAt
			out.ExitCode = info.State.ExitCode
		}
	}
	return out, nil
}

func (h *Handler) Stats(ctx context.Context, containerId string) (runtime.StatsModel, error) {
	resp, err := h.cli.ContainerStats(ctx, containerId, false)
	if err != nil {
		return runtime.StatsModel{}, err
	}
	defer resp.Body.Close()

	var st container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return runtime.StatsModel{}, fmt.Errorf("decode stats: %w", err)
	}
	return summarizeStats(st), nil
}

func summarizeStats(st container.StatsResponse) runtime.StatsModel {
	out := runtime.StatsModel{}

	cpuDelta := float64(st.CPUStats.CPUUsage.TotalUsage) - float64(st.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(st.CPUStats.SystemUsage) - float64(st.PreCPUStats.SystemUsage)
	cpus := float64(st.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(st.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpuDelta > 0 && sysDelta > 0 && cpus > 0 {
		out.CPUPercent = cpuDelta / sysDelta * cpus * 100
	}

	// page cache is not counted as used memory
	usage := st.MemoryStats.Usage
	if cache, ok := st.MemoryStats.Stats["inactive_file"]; ok && cache < usage {
		usage -= cache
	} else if cache, ok := st.MemoryStats.Stats["cache"]; ok && cache < usage {
		usage -= cache
	}
	out.MemoryUsage = usage
	out.MemoryLimit = st.MemoryStats.Limit
	if st.MemoryStats.Limit > 0 {
		out.MemoryPercent = float64(usage) / float64(st.MemoryStats.Limit) * 100
	}

	for _, n := range st.Networks {
		out.NetworkRx += n.RxBytes
		out.NetworkTx += n.TxBytes
	}
	return out
}

// Logs returns the demultiplexed stdout and stderr of the container.
func (h *Handler) Logs(ctx context.Context, logsParameter runtime.LogsModel) (io.ReadCloser, error) {
	tail := "all"
	if logsParameter.Tail > 0 {
		tail = strconv.Itoa(logsParameter.Tail)
	}
	rc, err := h.cli.ContainerLogs(ctx, logsParameter.ContainerId, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     logsParameter.Follow,
		Tail:       tail,
	})
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, rc)
		rc.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}
