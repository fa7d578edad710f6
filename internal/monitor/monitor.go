// Package monitor follows the container state of registered services and
// periodically records their resource usage as JSON lines.
package monitor

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"dockmate/internal/logger"
	"dockmate/internal/runtime"

	"github.com/sirupsen/logrus"
)

const (
	defaultInterval     = 5 * time.Second
	defaultMetricsEvery = 6
)

type Config struct {
	Interval time.Duration
	// MetricsEvery is the number of checks between two metrics records.
	MetricsEvery int
	// WatchPath is the registry document to watch. Empty means the
	// registry is re-read on every check.
	WatchPath string
}

func NewServiceMonitor(cfg Config, services ServiceLister, containers ContainerReader, metrics RecordWriter) *ServiceMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.MetricsEvery <= 0 {
		cfg.MetricsEvery = defaultMetricsEvery
	}
	return &ServiceMonitor{
		cfg:        cfg,
		resolver:   NewResolver(services),
		containers: containers,
		metrics:    metrics,
		states:     map[string]ServiceState{},
		now:        time.Now,
	}
}

type ServiceMonitor struct {
	cfg        Config
	resolver   *Resolver
	containers ContainerReader
	metrics    RecordWriter
	now        func() time.Time

	mu     sync.RWMutex
	states map[string]ServiceState
	checks int
}

// Start runs checks every Interval until ctx is cancelled.
func (m *ServiceMonitor) Start(ctx context.Context) error {
	if m.cfg.WatchPath != "" {
		go func() {
			if err := m.resolver.Watch(ctx, m.cfg.WatchPath); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warnf("monitor: registry watch stopped: %v", err)
			}
		}()
	}

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := m.Check(ctx); err != nil {
				logger.Warnf("monitor: check failed: %v", err)
			}
		}
	}
}

// Check takes one observation of every registered service.
func (m *ServiceMonitor) Check(ctx context.Context) error {
	if m.cfg.WatchPath == "" {
		m.resolver.Refresh()
	}

	containers, err := m.containers.ListContainers(ctx, true)
	if err != nil {
		return err
	}
	byId := make(map[string]runtime.ContainerSummary, len(containers))
	byName := make(map[string]runtime.ContainerSummary, len(containers))
	for _, c := range containers {
		byId[c.Id] = c
		for _, name := range c.Names {
			byName[strings.TrimPrefix(name, "/")] = c
		}
	}

	now := m.now()
	services := m.resolver.Snapshot()

	m.mu.Lock()
	m.checks++
	recordMetrics := m.metrics != nil && m.checks%m.cfg.MetricsEvery == 0

	seen := make(map[string]bool, len(services))
	var running []ServiceMeta
	for _, meta := range services {
		seen[meta.ServiceId] = true

		state, status := StateMissing, ""
		c, ok := byId[meta.ContainerId]
		if !ok || meta.ContainerId == "" {
			c, ok = byName[meta.ServiceName]
		}
		if ok {
			state, status = c.State, c.Status
			meta.ContainerId = c.Id
		}

		prev, known := m.states[meta.ServiceId]
		next := ServiceState{
			ServiceId:   meta.ServiceId,
			ServiceName: meta.ServiceName,
			ContainerId: meta.ContainerId,
			State:       state,
			Status:      status,
			Since:       prev.Since,
			CheckedAt:   now,
		}
		if !known || prev.State != state {
			next.Since = now
			m.logTransition(prev, next, known)
		}
		m.states[meta.ServiceId] = next

		if state == "running" {
			running = append(running, meta)
		}
	}
	for id := range m.states {
		if !seen[id] {
			delete(m.states, id)
		}
	}
	m.mu.Unlock()

	if recordMetrics {
		m.writeMetrics(ctx, now, running)
	}
	return nil
}

func (m *ServiceMonitor) logTransition(prev, next ServiceState, known bool) {
	entry := logger.WithFields(logrus.Fields{
		"service":     next.ServiceName,
		"containerId": next.ContainerId,
		"state":       next.State,
	})
	switch {
	case !known:
		entry.Debugf("monitor: tracking %s", next.ServiceName)
	case prev.State == "running":
		entry.Warnf("monitor: service %s down detected (%s -> %s)", next.ServiceName, prev.State, next.State)
	default:
		entry.Infof("monitor: service %s %s -> %s", next.ServiceName, prev.State, next.State)
	}
}

func (m *ServiceMonitor) writeMetrics(ctx context.Context, now time.Time, running []ServiceMeta) {
	for _, meta := range running {
		stats, err := m.containers.Stats(ctx, meta.ContainerId)
		if err != nil {
			logger.Warnf("monitor: stats failed: service=%s err=%v", meta.ServiceName, err)
			continue
		}
		record := MetricsRecord{
			GeneratedTS: now.Format(time.RFC3339Nano),

			ServiceId:   meta.ServiceId,
			ServiceName: meta.ServiceName,
			TemplateId:  meta.TemplateId,
			ContainerId: meta.ContainerId,
			HostPort:    meta.HostPort,
			State:       "running",

			CPUPercent:       stats.CPUPercent,
			MemoryUsageBytes: stats.MemoryUsage,
			MemoryLimitBytes: stats.MemoryLimit,
			MemoryPercent:    stats.MemoryPercent,
			NetworkRxBytes:   stats.NetworkRx,
			NetworkTxBytes:   stats.NetworkTx,
		}
		if err := m.metrics.WriteJSONL(record); err != nil {
			logger.Warnf("monitor: metrics write failed: service=%s err=%v", meta.ServiceName, err)
		}
	}
}

// States returns the last observation of every service, sorted by name.
func (m *ServiceMonitor) States() []ServiceState {
	m.mu.RLock()
	out := make([]ServiceState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ServiceName < out[j].ServiceName })
	return out
}
