package service

import (
	"context"
	"fmt"
	"path/filepath"

	"dockmate/internal/apperr"
	"dockmate/internal/envvar"
	"dockmate/internal/portalloc"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

// == service: update ==
func (s *LifecycleManager) Update(ctx context.Context, serviceId string, updateParameter UpdateModel) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.registryHandler.GetServiceById(serviceId)
	if err != nil {
		op := s.newOperation(updateParameter.SessionId, serviceId)
		return op.result(nil), op.fail(StepValidating, err)
	}
	op := s.newOperation(updateParameter.SessionId, current.Name)

	svc, err := s.update(ctx, op, current, updateParameter)
	if err != nil {
		return op.result(nil), err
	}
	return op.result(svc), nil
}

func (s *LifecycleManager) update(ctx context.Context, op *operation, current registry.Service, req UpdateModel) (*registry.Service, error) {
	// 1. resolve template and image
	op.say(StepValidating, fmt.Sprintf("Validating update for %s", current.Name))
	tpl := s.templateFor(current)

	next := current
	next.Volumes = append([]registry.Volume{}, current.Volumes...)
	if req.Image != "" && req.Image != current.Image {
		if !s.catalog.IsImageAllowed(req.Image) {
			return nil, op.fail(StepValidating, apperr.New(apperr.ImageNotAllowed, "image %s is not on the allow-list", req.Image))
		}
		next.Image = req.Image
	}
	if req.EnvVars != nil {
		next.EnvVars = envvar.Merge(req.EnvVars, current.EnvVars)
	}
	if req.Command != nil {
		next.Command = req.Command
		if *req.Command == "" {
			next.Command = nil
		}
	}
	if req.NetworkName != "" && req.NetworkName != current.NetworkName {
		if err := s.checkNetwork(ctx, req.NetworkName); err != nil {
			return nil, op.fail(StepValidating, err)
		}
		next.NetworkName = req.NetworkName
	}
	if req.Volumes != nil {
		volumes, err := overrideVolumes(current.Volumes, req.Volumes)
		if err != nil {
			return nil, op.fail(StepValidating, err)
		}
		next.Volumes = volumes
	}
	next.Credentials = credentialsFor(tpl, next.EnvVars)
	op.ok(StepValidating, "Update request is valid")

	// 2. port, only when it changes
	if req.HostPort != 0 && req.HostPort != current.HostPort {
		port, err := s.portResolver.Resolve(ctx, portalloc.ResolveModel{
			Preferred:        req.HostPort,
			ExcludeServiceId: current.Id,
		})
		if err != nil {
			return nil, op.fail(StepPortResolving, err)
		}
		next.HostPort = port
		op.ok(StepPortResolving, fmt.Sprintf("Using host port %d", port))
	}

	// 3. directories for new mounts
	if req.Volumes != nil {
		if err := s.provisionDirectories(op, tpl, next.Volumes); err != nil {
			return nil, err
		}
	}

	// 4. image
	if err := s.ensureImage(ctx, op, next.Image); err != nil {
		return nil, err
	}

	return s.replaceContainer(ctx, op, current, next, tpl)
}

// replaceContainer swaps the container of current for one built from next.
// Once the old container is gone a failure leaves the service down; the
// registry keeps the old record until the new container runs.
func (s *LifecycleManager) replaceContainer(ctx context.Context, op *operation, current, next registry.Service, tpl template.Template) (*registry.Service, error) {
	if current.ContainerId != "" {
		info, err := s.runtimeHandler.Inspect(ctx, current.ContainerId)
		switch {
		case err == nil && info.Running:
			op.say(StepContainerStopping, "Stopping current container")
			if err := s.runtimeHandler.Stop(ctx, current.ContainerId); err != nil {
				op.warn(StepContainerStopping, fmt.Sprintf("stop failed, removing by force: %v", err))
			} else {
				op.ok(StepContainerStopping, "Container stopped")
			}
		case err != nil && !runtime.IsNotFound(err):
			op.warn(StepContainerStopping, fmt.Sprintf("could not inspect current container: %v", err))
		}

		err = s.runtimeHandler.Remove(ctx, runtime.RemoveModel{ContainerId: current.ContainerId, Force: true})
		switch {
		case err == nil:
			op.ok(StepContainerRemoving, "Removed current container")
		case runtime.IsNotFound(err):
			op.ok(StepContainerRemoving, "Current container was already gone")
		default:
			op.warn(StepContainerRemoving, fmt.Sprintf("could not remove current container: %v", err))
		}
	}
	s.removeByName(ctx, op, next.Name)

	next.ContainerId = ""
	next.UpdatedAt = s.now().UTC()
	s.decorate(&next)
	if err := s.createAndStart(ctx, op, &next, tpl); err != nil {
		return nil, err
	}

	if err := s.registryHandler.SaveService(next); err != nil {
		return nil, op.fail(StepRegistered, fmt.Errorf("save service: %w", err))
	}
	op.ok(StepRegistered, fmt.Sprintf("Service %s is running at %s", next.Name, next.Url))
	return &next, nil
}

// removeByName force-removes any container still holding name so the
// runtime does not reject the create with a name conflict.
func (s *LifecycleManager) removeByName(ctx context.Context, op *operation, name string) {
	containers, err := s.runtimeHandler.ListContainers(ctx, true)
	if err != nil {
		op.warn(StepContainerRemoving, fmt.Sprintf("could not list containers: %v", err))
		return
	}
	for _, c := range containers {
		for _, n := range c.Names {
			if n != name {
				continue
			}
			if err := s.runtimeHandler.Remove(ctx, runtime.RemoveModel{ContainerId: c.Id, Force: true}); err != nil && !runtime.IsNotFound(err) {
				op.warn(StepContainerRemoving, fmt.Sprintf("could not remove stale container %s: %v", shortId(c.Id), err))
				continue
			}
			op.say(StepContainerRemoving, fmt.Sprintf("Removed stale container %s named %s", shortId(c.Id), name))
		}
	}
}

// templateFor returns the service's template. A template that has left the
// catalog is tolerated; the stored record then carries everything needed.
func (s *LifecycleManager) templateFor(svc registry.Service) template.Template {
	if tpl, ok := s.catalog.Get(svc.TemplateId); ok {
		return tpl
	}
	return template.Template{Id: svc.TemplateId, ContainerPort: svc.ContainerPort}
}

// overrideVolumes replaces host paths by container path and appends mounts
// that were not there before.
func overrideVolumes(current, overrides []registry.Volume) ([]registry.Volume, error) {
	out := append([]registry.Volume{}, current...)
	for _, o := range overrides {
		if !filepath.IsAbs(o.HostPath) || !filepath.IsAbs(o.ContainerPath) {
			return nil, apperr.New(apperr.InvalidRequest, "volume paths must be absolute: %q -> %q", o.HostPath, o.ContainerPath)
		}
		replaced := false
		for i := range out {
			if out[i].ContainerPath == o.ContainerPath {
				out[i].HostPath = filepath.Clean(o.HostPath)
				replaced = true
			}
		}
		if !replaced {
			out = append(out, registry.Volume{HostPath: filepath.Clean(o.HostPath), ContainerPath: o.ContainerPath})
		}
	}
	return out, nil
}
