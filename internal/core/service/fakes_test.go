package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"dockmate/internal/runtime"
	"dockmate/internal/utils"
)

type fakeContainer struct {
	id      string
	model   runtime.CreateModel
	running bool
}

type fakeRuntime struct {
	mu         sync.Mutex
	nextId     int
	images     map[string]bool
	containers map[string]*fakeContainer
	calls      []string

	pullEvents []runtime.PullEvent
	pullErr    map[string]error
	createErr  error
	startErr   error
	stopErr    error
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		images:     map[string]bool{},
		containers: map[string]*fakeContainer{},
		pullErr:    map[string]error{},
		pullEvents: []runtime.PullEvent{
			{Status: "Pulling from library/image"},
			{LayerId: "l1", Status: "Downloading", Current: 1, Total: 4},
			{LayerId: "l1", Status: "Downloading", Current: 2, Total: 4},
			{LayerId: "l1", Status: "Pull complete"},
		},
	}
}

func (f *fakeRuntime) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeRuntime) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRuntime) byName(name string) *fakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.model.Name == name {
			return c
		}
	}
	return nil
}

func (f *fakeRuntime) forget(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
}

func (f *fakeRuntime) ListContainers(_ context.Context, all bool) ([]runtime.ContainerSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list-containers")
	var out []runtime.ContainerSummary
	for _, c := range f.containers {
		if !all && !c.running {
			continue
		}
		out = append(out, runtime.ContainerSummary{Id: c.id, Names: []string{c.model.Name}, Image: c.model.Image})
	}
	return out, nil
}

func (f *fakeRuntime) ListImages(context.Context) ([]runtime.ImageSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []runtime.ImageSummary
	for ref := range f.images {
		out = append(out, runtime.ImageSummary{Id: ref, RepoTags: []string{ref}})
	}
	return out, nil
}

func (f *fakeRuntime) ListNetworks(context.Context) ([]runtime.NetworkSummary, error) {
	return []runtime.NetworkSummary{{Name: "bridge"}, {Name: "appnet"}}, nil
}

func (f *fakeRuntime) InspectImage(_ context.Context, ref string) (runtime.ImageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("inspect-image " + ref)
	if !f.images[ref] {
		return runtime.ImageInfo{}, fmt.Errorf("image %s: %w", ref, runtime.ErrNotFound)
	}
	return runtime.ImageInfo{Id: ref}, nil
}

func (f *fakeRuntime) PullImage(_ context.Context, ref string, onProgress func(runtime.PullEvent)) error {
	f.mu.Lock()
	f.record("pull " + ref)
	err := f.pullErr[ref]
	events := f.pullEvents
	f.mu.Unlock()
	if err != nil {
		return err
	}
	for _, ev := range events {
		onProgress(ev)
	}
	f.mu.Lock()
	f.images[ref] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, p runtime.BuildModel, onProgress func(runtime.PullEvent)) error {
	if _, err := io.ReadAll(p.Context); err != nil {
		return err
	}
	onProgress(runtime.PullEvent{Status: "Step 1/1 : FROM node:20-alpine"})
	f.mu.Lock()
	f.images[p.Tag] = true
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) Create(_ context.Context, p runtime.CreateModel) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create " + p.Name)
	if f.createErr != nil {
		return "", f.createErr
	}
	for _, c := range f.containers {
		if c.model.Name == p.Name {
			return "", fmt.Errorf("Conflict. The container name \"/%s\" is already in use", p.Name)
		}
	}
	f.nextId++
	id := fmt.Sprintf("c%02d%s", f.nextId, strings.Repeat("0", 14))
	f.containers[id] = &fakeContainer{id: id, model: p}
	return id, nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start " + id)
	if f.startErr != nil {
		return f.startErr
	}
	c, ok := f.containers[id]
	if !ok {
		return fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
	}
	c.running = true
	return nil
}

func (f *fakeRuntime) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("stop " + id)
	if f.stopErr != nil {
		return f.stopErr
	}
	c, ok := f.containers[id]
	if !ok {
		return fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
	}
	c.running = false
	return nil
}

func (f *fakeRuntime) Restart(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restart " + id)
	if _, ok := f.containers[id]; !ok {
		return fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
	}
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, p runtime.RemoveModel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("remove " + p.ContainerId)
	c, ok := f.containers[p.ContainerId]
	if !ok {
		return fmt.Errorf("container %s: %w", p.ContainerId, runtime.ErrNotFound)
	}
	if c.running && !p.Force {
		return errors.New("cannot remove a running container")
	}
	delete(f.containers, p.ContainerId)
	return nil
}

func (f *fakeRuntime) Inspect(_ context.Context, id string) (runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return runtime.ContainerInfo{}, fmt.Errorf("container %s: %w", id, runtime.ErrNotFound)
	}
	return runtime.ContainerInfo{Id: id, Name: c.model.Name, Running: c.running}, nil
}

func (f *fakeRuntime) Stats(_ context.Context, id string) (runtime.StatsModel, error) {
	if _, err := f.Inspect(context.Background(), id); err != nil {
		return runtime.StatsModel{}, err
	}
	return runtime.StatsModel{CPUPercent: 1.5, MemoryUsage: 1024, MemoryLimit: 4096}, nil
}

func (f *fakeRuntime) Logs(_ context.Context, p runtime.LogsModel) (io.ReadCloser, error) {
	if _, err := f.Inspect(context.Background(), p.ContainerId); err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(fmt.Sprintf("tail=%d follow=%v\n", p.Tail, p.Follow))), nil
}

type fakeBindChecker struct {
	busy map[int]bool
}

func (f *fakeBindChecker) Available(_ context.Context, port int) bool {
	return !f.busy[port]
}

// chownDeniedFS behaves like the host filesystem except that ownership
// changes are refused, as for an unprivileged process.
type chownDeniedFS struct {
	*utils.FilesystemExecutor
}

func (chownDeniedFS) Chown(string, int, int) error {
	return errors.New("operation not permitted")
}

type fakeCommandFactory struct {
	calls  [][]string
	files  map[string]string
	err    error
	output string
}

func (f *fakeCommandFactory) Command(_ context.Context, name string, args ...string) utils.CommandExecutor {
	f.calls = append(f.calls, append([]string{name}, args...))
	return &fakeCommand{factory: f, args: args}
}

// fakeCommand pretends to unpack an archive by writing the factory's files
// into the destination directory, which is the last argument.
type fakeCommand struct {
	factory *fakeCommandFactory
	args    []string
}

func (c *fakeCommand) CombinedOutput() ([]byte, error) {
	if c.factory.err != nil {
		return []byte(c.factory.output), c.factory.err
	}
	dir := c.args[len(c.args)-1]
	for rel, content := range c.factory.files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
