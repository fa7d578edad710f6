package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
)

// == service: remove ==
func (s *LifecycleManager) Remove(ctx context.Context, serviceId string, removeVolumes bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, err := s.registryHandler.GetServiceById(serviceId)
	if err != nil {
		op := s.newOperation("", serviceId)
		return op.result(nil), op.fail(StepValidating, err)
	}
	op := s.newOperation("", svc.Name)

	list, err := s.registryHandler.GetServiceList()
	if err != nil {
		return op.result(nil), op.fail(StepValidating, err)
	}
	for _, child := range list {
		if child.ParentService != svc.Id {
			continue
		}
		op.say(StepCompanion, fmt.Sprintf("Removing companion %s", child.Name))
		if err := s.remove(ctx, op, child, removeVolumes); err != nil {
			op.warn(StepCompanion, fmt.Sprintf("companion %s was not removed: %v", child.Name, err))
		}
	}

	if err := s.remove(ctx, op, svc, removeVolumes); err != nil {
		return op.result(nil), err
	}
	return op.result(nil), nil
}

// remove tears one service down. Only the registry deletion can fail it.
func (s *LifecycleManager) remove(ctx context.Context, op *operation, svc registry.Service, removeVolumes bool) error {
	if svc.ContainerId != "" {
		err := s.runtimeHandler.Remove(ctx, runtime.RemoveModel{ContainerId: svc.ContainerId, Force: true})
		switch {
		case err == nil:
			op.ok(StepContainerRemoving, fmt.Sprintf("Removed container of %s", svc.Name))
		case runtime.IsNotFound(err):
			op.ok(StepContainerRemoving, fmt.Sprintf("Container of %s was already gone", svc.Name))
		default:
			op.warn(StepContainerRemoving, fmt.Sprintf("could not remove container of %s: %v", svc.Name, err))
		}
	}

	if removeVolumes {
		s.removeVolumes(op, svc)
	}

	if err := s.registryHandler.RemoveService(svc.Id); err != nil {
		return op.fail(StepUnregistering, fmt.Errorf("remove %s from registry: %w", svc.Name, err))
	}
	op.ok(StepUnregistering, fmt.Sprintf("Service %s removed", svc.Name))
	return nil
}

// removeVolumes deletes volume directories under the volume base directory.
// Paths outside it were supplied by the operator and are left alone.
func (s *LifecycleManager) removeVolumes(op *operation, svc registry.Service) {
	for _, v := range svc.Volumes {
		if !s.underVolumeBase(v.HostPath) {
			op.warn(StepVolumeRemoving, fmt.Sprintf("kept %s: outside %s", v.HostPath, s.cfg.VolumeBaseDir))
			continue
		}
		if err := s.filesystemHandler.RemoveAll(v.HostPath); err != nil {
			op.warn(StepVolumeRemoving, fmt.Sprintf("could not delete %s: %v", v.HostPath, err))
			continue
		}
		op.say(StepVolumeRemoving, fmt.Sprintf("Deleted %s", v.HostPath))
	}

	serviceDir := filepath.Join(s.cfg.VolumeBaseDir, svc.Name)
	if s.underVolumeBase(serviceDir) {
		if err := s.filesystemHandler.RemoveAll(serviceDir); err != nil {
			op.warn(StepVolumeRemoving, fmt.Sprintf("could not delete %s: %v", serviceDir, err))
			return
		}
	}
	op.ok(StepVolumeRemoving, "Volumes removed")
}

func (s *LifecycleManager) underVolumeBase(path string) bool {
	if s.cfg.VolumeBaseDir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(s.cfg.VolumeBaseDir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
