package service

import (
	"context"
	"fmt"

	"dockmate/internal/apperr"
	"dockmate/internal/portalloc"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

// ListServices returns every registered service with secrets masked.
func (s *LifecycleManager) ListServices() ([]registry.Service, error) {
	list, err := s.registryHandler.GetServiceList()
	if err != nil {
		return nil, err
	}
	out := make([]registry.Service, 0, len(list))
	for _, svc := range list {
		out = append(out, svc.Masked())
	}
	return out, nil
}

func (s *LifecycleManager) GetService(serviceId string) (registry.Service, error) {
	svc, err := s.registryHandler.GetServiceById(serviceId)
	if err != nil {
		return registry.Service{}, err
	}
	return svc.Masked(), nil
}

func (s *LifecycleManager) ListTemplates() []template.Template {
	return s.catalog.List()
}

// ResolveAvailablePort answers with preferred when it is usable, otherwise
// with the first usable port above it. Without a preference the scan starts
// at the configured start port.
func (s *LifecycleManager) ResolveAvailablePort(ctx context.Context, preferred int) (int, bool) {
	if preferred > 0 {
		port, err := s.portResolver.Resolve(ctx, portalloc.ResolveModel{Preferred: preferred})
		if err == nil {
			return port, true
		}
		if !apperr.Is(err, apperr.PortConflict) || preferred >= portalloc.MaxPort {
			return 0, false
		}
		port, err = s.portResolver.Resolve(ctx, portalloc.ResolveModel{Start: preferred + 1})
		return port, err == nil
	}
	port, err := s.portResolver.Resolve(ctx, portalloc.ResolveModel{Start: s.cfg.PortScanStart})
	return port, err == nil
}

func (s *LifecycleManager) ListImages(ctx context.Context) ([]runtime.ImageSummary, error) {
	list, err := s.runtimeHandler.ListImages(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.RuntimeError, err)
	}
	return list, nil
}

func (s *LifecycleManager) ListNetworks(ctx context.Context) ([]runtime.NetworkSummary, error) {
	list, err := s.runtimeHandler.ListNetworks(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.RuntimeError, err)
	}
	return list, nil
}

// BuildImage builds a local image from a tar build context, streaming the
// build output as progress.
func (s *LifecycleManager) BuildImage(ctx context.Context, buildParameter BuildModel) (Result, error) {
	op := s.newOperation(buildParameter.SessionId, buildParameter.Tag)
	if buildParameter.Tag == "" || buildParameter.Context == nil {
		return op.result(nil), op.fail(StepValidating, apperr.New(apperr.InvalidRequest, "a tag and a build context are required"))
	}

	op.say(StepImageBuilding, fmt.Sprintf("Building image %s", buildParameter.Tag))
	err := s.runtimeHandler.BuildImage(ctx, runtime.BuildModel{
		Context:    buildParameter.Context,
		Tag:        buildParameter.Tag,
		Dockerfile: buildParameter.Dockerfile,
	}, func(ev runtime.PullEvent) {
		op.say(StepImageBuilding, ev.Status)
	})
	if err != nil {
		return op.result(nil), op.fail(StepImageBuilding, apperr.Wrap(apperr.RuntimeError, err))
	}
	op.ok(StepImageBuilding, fmt.Sprintf("Built image %s", buildParameter.Tag))
	return op.result(nil), nil
}
