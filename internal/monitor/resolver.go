package monitor

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dockmate/internal/logger"

	"github.com/fsnotify/fsnotify"
)

func NewResolver(services ServiceLister) *Resolver {
	r := &Resolver{
		services:   services,
		resolveMap: map[string]ServiceMeta{},
	}
	r.Refresh()
	return r
}

// Resolver caches the registered services the monitor checks.
type Resolver struct {
	services ServiceLister

	mu         sync.RWMutex
	resolveMap map[string]ServiceMeta
}

func (r *Resolver) Refresh() {
	list, err := r.services.GetServiceList()
	if err != nil {
		logger.Warnf("monitor: read registry: %v", err)
		return
	}
	next := make(map[string]ServiceMeta, len(list))
	for _, svc := range list {
		next[svc.Id] = ServiceMeta{
			ServiceId:   svc.Id,
			ServiceName: svc.Name,
			TemplateId:  svc.TemplateId,
			ContainerId: svc.ContainerId,
			HostPort:    svc.HostPort,
		}
	}

	r.mu.Lock()
	r.resolveMap = next
	r.mu.Unlock()
}

// Snapshot returns the cached services sorted by name.
func (r *Resolver) Snapshot() []ServiceMeta {
	r.mu.RLock()
	out := make([]ServiceMeta, 0, len(r.resolveMap))
	for _, meta := range r.resolveMap {
		out = append(out, meta)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}

// Watch refreshes the cache whenever the registry document at path changes.
func (r *Resolver) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	if err := w.Add(dir); err != nil {
		return err
	}

	var pending atomic.Bool
	trigger := func() {
		if pending.CompareAndSwap(false, true) {
			go func() {
				time.Sleep(50 * time.Millisecond)
				r.Refresh()
				pending.Store(false)
			}()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				trigger()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("monitor: registry watch: %v", err)
		}
	}
}
