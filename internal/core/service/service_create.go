package service

import (
	"context"
	"fmt"
	"strings"

	"dockmate/internal/apperr"
	"dockmate/internal/envvar"
	"dockmate/internal/portalloc"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

// == service: create ==
func (s *LifecycleManager) Create(ctx context.Context, createParameter CreateModel) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op := s.newOperation(createParameter.SessionId, createParameter.Name)
	svc, tpl, err := s.create(ctx, op, createParameter)
	if err != nil {
		return op.result(nil), err
	}

	// companions never unwind the primary service
	if createParameter.WithManager {
		s.provisionManager(ctx, op, svc, tpl)
	}
	return op.result(svc), nil
}

func (s *LifecycleManager) create(ctx context.Context, op *operation, req CreateModel) (*registry.Service, template.Template, error) {
	// 1. validate the request before any side effect
	op.say(StepValidating, fmt.Sprintf("Validating request for %s", req.Name))
	tpl, image, err := s.validateCreate(ctx, req)
	if err != nil {
		return nil, tpl, op.fail(StepValidating, err)
	}
	env, conn, err := s.buildEnv(op, tpl, req)
	if err != nil {
		return nil, tpl, op.fail(StepValidating, err)
	}
	volumes, err := s.resolveVolumes(tpl, req.Name, req.Volumes)
	if err != nil {
		return nil, tpl, op.fail(StepValidating, err)
	}
	op.ok(StepValidating, fmt.Sprintf("Using template %s with image %s", tpl.Id, image))

	// 2. resolve host port
	port, err := s.portResolver.Resolve(ctx, portalloc.ResolveModel{
		Preferred: req.HostPort,
		Start:     tpl.DefaultPort,
	})
	if err != nil {
		return nil, tpl, op.fail(StepPortResolving, err)
	}
	op.ok(StepPortResolving, fmt.Sprintf("Using host port %d", port))

	// 3. host directories
	if err := s.provisionDirectories(op, tpl, volumes); err != nil {
		return nil, tpl, err
	}

	// 4. image
	if err := s.ensureImage(ctx, op, image); err != nil {
		return nil, tpl, err
	}

	// 5. container
	command := req.Command
	if command == nil || strings.TrimSpace(*command) == "" {
		command = defaultCommand(tpl)
	}
	networkName := req.NetworkName
	if networkName == "" {
		networkName = s.cfg.DefaultNetwork
	}
	now := s.now().UTC()
	svc := &registry.Service{
		Id:            s.newId(),
		Name:          req.Name,
		TemplateId:    tpl.Id,
		Image:         image,
		HostPort:      port,
		ContainerPort: tpl.ContainerPort,
		Volumes:       volumes,
		EnvVars:       env,
		Command:       command,
		NetworkName:   networkName,
		CreatedAt:     now,
		UpdatedAt:     now,
		ParentService: req.parentService,
		Credentials:   credentialsFor(tpl, env),
	}
	if req.ConfigureFor != "" {
		svc.ConfiguredFor = req.ConfigureFor
		svc.DbConnection = conn
	}
	s.decorate(svc)

	if err := s.createAndStart(ctx, op, svc, tpl); err != nil {
		return nil, tpl, err
	}

	// 6. persist
	if err := s.registryHandler.SaveService(*svc); err != nil {
		return nil, tpl, op.fail(StepRegistered, fmt.Errorf("save service: %w", err))
	}
	op.ok(StepRegistered, fmt.Sprintf("Service %s is running at %s", svc.Name, svc.Url))
	return svc, tpl, nil
}

func (s *LifecycleManager) validateCreate(ctx context.Context, req CreateModel) (template.Template, string, error) {
	if err := validateName(req.Name); err != nil {
		return template.Template{}, "", err
	}
	used, err := s.registryHandler.IsNameAlreadyUsed(req.Name)
	if err != nil {
		return template.Template{}, "", err
	}
	if used {
		return template.Template{}, "", apperr.New(apperr.InvalidRequest, "service name %s is already in use", req.Name)
	}

	tpl, ok := s.catalog.Get(req.TemplateId)
	if !ok {
		return tpl, "", apperr.New(apperr.InvalidRequest, "unknown template %q", req.TemplateId)
	}

	image := tpl.ImageRef()
	if req.Image != "" {
		image = req.Image
	}
	if !s.catalog.IsImageAllowed(image) {
		return tpl, "", apperr.New(apperr.ImageNotAllowed, "image %s is not on the allow-list", image)
	}

	if req.ConfigureFor != "" {
		if !tpl.HasDbConfigOption {
			return tpl, "", apperr.New(apperr.InvalidRequest, "template %s cannot be configured for a database", tpl.Id)
		}
		if _, err := s.registryHandler.GetServiceById(req.ConfigureFor); err != nil {
			return tpl, "", apperr.New(apperr.InvalidRequest, "service %s to configure for does not exist", req.ConfigureFor)
		}
	}

	if err := s.checkNetwork(ctx, req.NetworkName); err != nil {
		return tpl, "", err
	}
	return tpl, image, nil
}

// buildEnv layers the request over the template defaults, fills generated
// secrets the request left out and, for managers, the connection settings of
// the database they administer.
func (s *LifecycleManager) buildEnv(op *operation, tpl template.Template, req CreateModel) ([]envvar.EnvVar, *registry.DbConnection, error) {
	defaults := make([]envvar.EnvVar, 0, len(tpl.Env))
	for _, e := range tpl.Env {
		defaults = append(defaults, envvar.EnvVar{Key: e.Key, Value: e.Value})
	}
	env := envvar.Overlay(defaults, req.EnvVars)

	for _, key := range tpl.GeneratedSecrets {
		if v, ok := envvar.Lookup(env, key); ok && v != "" {
			continue
		}
		password, err := s.newPassword()
		if err != nil {
			return nil, nil, fmt.Errorf("generate %s: %w", key, err)
		}
		env = envvar.Overlay(env, []envvar.EnvVar{{Key: key, Value: password, Secret: true}})
	}

	if req.ConfigureFor != "" {
		target, err := s.registryHandler.GetServiceById(req.ConfigureFor)
		if err != nil {
			return nil, nil, err
		}
		conn, connEnv, err := s.connectionFor(tpl, target)
		if err != nil {
			// wiring is best-effort; the manager still starts unconfigured
			op.warn(StepValidating, err.Error())
			return env, nil, nil
		}
		return envvar.Overlay(env, connEnv), conn, nil
	}
	return env, nil, nil
}
