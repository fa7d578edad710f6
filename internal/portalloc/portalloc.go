// Package portalloc picks host ports that are free both in the registry and
// on the host. It only answers queries; nothing is reserved.
package portalloc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"dockmate/internal/apperr"
	"dockmate/internal/logger"
	"dockmate/internal/store/registry"

	"golang.org/x/sys/unix"
)

const (
	MaxPort             = 65535
	DefaultBindTimeout = time.Second
)

// ErrNoPortAvailable is returned when the upward scan runs past MaxPort.
var ErrNoPortAvailable = apperr.New(apperr.NoPortAvailable, "no available port")

type PortLister interface {
	UsedPorts(excludeServiceId string) (map[int]registry.Service, error)
}

// BindChecker reports whether the host can currently bind port.
type BindChecker interface {
	Available(ctx context.Context, port int) bool
}

type ResolveModel struct {
	// Preferred is the port the caller asked for, 0 when none.
	Preferred int
	// Start is where the scan begins when no port is preferred.
	Start int
	// ExcludeServiceId lets a service keep the port it already holds.
	ExcludeServiceId string
}

func NewAllocator(lister PortLister, checker BindChecker) *Allocator {
	return &Allocator{
		lister:  lister,
		checker: checker,
		maxPort: MaxPort,
	}
}

type Allocator struct {
	lister  PortLister
	checker BindChecker
	maxPort int
}

func (a *Allocator) Resolve(ctx context.Context, req ResolveModel) (int, error) {
	used, err := a.lister.UsedPorts(req.ExcludeServiceId)
	if err != nil {
		return 0, fmt.Errorf("read registered ports: %w", err)
	}

	if req.Preferred != 0 {
		if req.Preferred < 1 || req.Preferred > a.maxPort {
			return 0, apperr.New(apperr.InvalidRequest, "port %d out of range", req.Preferred)
		}
		if holder, ok := used[req.Preferred]; ok {
			return 0, apperr.New(apperr.PortConflict, "port %d is already used by service %s", req.Preferred, holder.Name)
		}
		if !a.checker.Available(ctx, req.Preferred) {
			return 0, apperr.New(apperr.PortConflict, "port %d is already in use on the host", req.Preferred)
		}
		return req.Preferred, nil
	}

	start := req.Start
	if start < 1 {
		start = 1
	}
	for port := start; port <= a.maxPort; port++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, ok := used[port]; ok {
			continue
		}
		if a.checker.Available(ctx, port) {
			return port, nil
		}
	}
	return 0, ErrNoPortAvailable
}

// Available answers the port-availability query without raising: a taken
// or out-of-range preference yields ok=false.
func (a *Allocator) Available(ctx context.Context, preferred int) (int, bool) {
	port, err := a.Resolve(ctx, ResolveModel{Preferred: preferred})
	if err != nil {
		return 0, false
	}
	return port, true
}

func NewTCPBindChecker(timeout time.Duration) *TCPBindChecker {
	if timeout <= 0 {
		timeout = DefaultBindTimeout
	}
	return &TCPBindChecker{Host: "127.0.0.1", Timeout: timeout}
}

// TCPBindChecker binds the port on the loopback interface and releases it. A bind
// that does not finish within Timeout counts as unavailable.
type TCPBindChecker struct {
	Host    string
	Timeout time.Duration
}

func (p *TCPBindChecker) Available(ctx context.Context, port int) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		var lc net.ListenConfig
		l, err := lc.Listen(ctx, "tcp", net.JoinHostPort(p.Host, strconv.Itoa(port)))
		if err == nil {
			err = l.Close()
		}
		result <- err
	}()

	select {
	case err := <-result:
		if err == nil {
			return true
		}
		if errors.Is(err, unix.EADDRINUSE) {
			logger.Debugf("port %d is in use", port)
		} else {
			logger.Debugf("port %d bind check failed: %v", port, err)
		}
		return false
	case <-ctx.Done():
		logger.Debugf("port %d bind check timed out", port)
		return false
	}
}
