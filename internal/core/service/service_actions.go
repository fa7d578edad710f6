package service

import (
	"context"
	"io"

	"dockmate/internal/apperr"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
)

func (s *LifecycleManager) containerOf(serviceId string) (registry.Service, error) {
	svc, err := s.registryHandler.GetServiceById(serviceId)
	if err != nil {
		return svc, err
	}
	if svc.ContainerId == "" {
		return svc, apperr.New(apperr.NotFound, "service %s has no container", svc.Name)
	}
	return svc, nil
}

func (s *LifecycleManager) Start(ctx context.Context, serviceId string) error {
	svc, err := s.containerOf(serviceId)
	if err != nil {
		return err
	}
	return apperr.Wrap(apperr.RuntimeError, s.runtimeHandler.Start(ctx, svc.ContainerId))
}

func (s *LifecycleManager) Stop(ctx context.Context, serviceId string) error {
	svc, err := s.containerOf(serviceId)
	if err != nil {
		return err
	}
	return apperr.Wrap(apperr.RuntimeError, s.runtimeHandler.Stop(ctx, svc.ContainerId))
}

func (s *LifecycleManager) Restart(ctx context.Context, serviceId string) error {
	svc, err := s.containerOf(serviceId)
	if err != nil {
		return err
	}
	return apperr.Wrap(apperr.RuntimeError, s.runtimeHandler.Restart(ctx, svc.ContainerId))
}

func (s *LifecycleManager) Stats(ctx context.Context, serviceId string) (runtime.StatsModel, error) {
	svc, err := s.containerOf(serviceId)
	if err != nil {
		return runtime.StatsModel{}, err
	}
	stats, err := s.runtimeHandler.Stats(ctx, svc.ContainerId)
	if err != nil {
		return runtime.StatsModel{}, apperr.Wrap(apperr.RuntimeError, err)
	}
	return stats, nil
}

// Logs returns the container output. Tail defaults to the configured line
// count; a follow stream ends when ctx is cancelled.
func (s *LifecycleManager) Logs(ctx context.Context, serviceId string, logsParameter LogsModel) (io.ReadCloser, error) {
	svc, err := s.containerOf(serviceId)
	if err != nil {
		return nil, err
	}
	tail := logsParameter.Tail
	if tail <= 0 {
		tail = s.cfg.LogTail
	}
	rc, err := s.runtimeHandler.Logs(ctx, runtime.LogsModel{
		ContainerId: svc.ContainerId,
		Follow:      logsParameter.Follow,
		Tail:        tail,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.RuntimeError, err)
	}
	return rc, nil
}
