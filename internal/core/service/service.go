package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"dockmate/internal/apperr"
	"dockmate/internal/envvar"
	"dockmate/internal/progress"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
	"dockmate/internal/utils"

	"al.essio.dev/pkg/shellescape"
	"github.com/google/uuid"
)

const (
	generatedPasswordLength = 24
	defaultNetwork          = "bridge"
	defaultLogTail          = 200
	defaultPortScanStart    = 3000

	labelService  = "dockmate.service"
	labelTemplate = "dockmate.template"
)

var serviceNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{2,50}$`)

func NewLifecycleManager(
	cfg Config,
	catalog template.CatalogHandler,
	registryHandler registry.RegistryHandler,
	portResolver PortResolver,
	runtimeHandler runtime.RuntimeHandler,
	publisher progress.Publisher,
) *LifecycleManager {
	if cfg.DefaultNetwork == "" {
		cfg.DefaultNetwork = defaultNetwork
	}
	if cfg.LogTail <= 0 {
		cfg.LogTail = defaultLogTail
	}
	if cfg.PortScanStart <= 0 {
		cfg.PortScanStart = defaultPortScanStart
	}
	if cfg.ExternalScheme == "" {
		cfg.ExternalScheme = "https"
	}
	return &LifecycleManager{
		cfg:               cfg,
		catalog:           catalog,
		registryHandler:   registryHandler,
		portResolver:      portResolver,
		runtimeHandler:    runtimeHandler,
		publisher:         publisher,
		filesystemHandler: utils.NewFilesystemExecutor(),
		commandFactory:    utils.NewCommandFactory(),
		now:               time.Now,
		newId:             utils.NewUlid,
		newSession:        uuid.NewString,
		newPassword:       func() (string, error) { return utils.GeneratePassword(generatedPasswordLength) },
	}
}

// LifecycleManager turns service requests into running containers and keeps
// the registry in step. Mutating operations are serialized by mu so a port
// or name checked at the start of an operation is still free when the
// container is created.
type LifecycleManager struct {
	mu sync.Mutex

	cfg               Config
	catalog           template.CatalogHandler
	registryHandler   registry.RegistryHandler
	portResolver      PortResolver
	runtimeHandler    runtime.RuntimeHandler
	publisher         progress.Publisher
	filesystemHandler utils.FilesystemHandler
	commandFactory    utils.CommandFactory

	now         func() time.Time
	newId       func() string
	newSession  func() string
	newPassword func() (string, error)
}

func (s *LifecycleManager) newOperation(sessionId, name string) *operation {
	if sessionId == "" {
		sessionId = s.newSession()
	}
	return newOperation(sessionId, name, s.publisher)
}

func validateName(name string) error {
	if name == "" {
		return apperr.New(apperr.InvalidRequest, "service name is required")
	}
	if !serviceNamePattern.MatchString(name) {
		return apperr.New(apperr.InvalidRequest,
			"service name %q must be 2-50 characters of letters, digits, '-' or '_'", name)
	}
	return nil
}

// resolveVolumes maps every template volume to a host path. Explicit paths
// from the request win; the rest live under <base>/<service>/<placeholder>.
func (s *LifecycleManager) resolveVolumes(tpl template.Template, name string, explicit []registry.Volume) ([]registry.Volume, error) {
	byContainer := map[string]string{}
	for _, v := range explicit {
		if !filepath.IsAbs(v.HostPath) {
			return nil, apperr.New(apperr.InvalidRequest, "volume host path must be absolute: %q", v.HostPath)
		}
		byContainer[v.ContainerPath] = filepath.Clean(v.HostPath)
	}

	out := make([]registry.Volume, 0, len(tpl.Volumes))
	for _, v := range tpl.Volumes {
		host, ok := byContainer[v.ContainerPath]
		if !ok {
			host = filepath.Join(s.cfg.VolumeBaseDir, name, v.HostPathPlaceholder)
		}
		delete(byContainer, v.ContainerPath)
		out = append(out, registry.Volume{HostPath: host, ContainerPath: v.ContainerPath})
	}
	// explicit mounts the template does not know about keep request order
	for _, v := range explicit {
		if host, ok := byContainer[v.ContainerPath]; ok {
			out = append(out, registry.Volume{HostPath: host, ContainerPath: v.ContainerPath})
			delete(byContainer, v.ContainerPath)
		}
	}
	return out, nil
}

// provisionDirectories creates every host path. Ownership fix-ups for
// templates with a volume owner are tolerated failures.
func (s *LifecycleManager) provisionDirectories(op *operation, tpl template.Template, volumes []registry.Volume) error {
	uid, gid, hasOwner, err := tpl.Owner()
	if err != nil {
		op.warn(StepDirectoryProvisioning, err.Error())
		hasOwner = false
	}

	for _, v := range volumes {
		if err := s.filesystemHandler.MkdirAll(v.HostPath, 0o755); err != nil {
			return op.fail(StepDirectoryProvisioning, fmt.Errorf("create directory %s: %w", v.HostPath, err))
		}
		op.say(StepDirectoryProvisioning, fmt.Sprintf("Prepared directory %s", v.HostPath))
		if !hasOwner {
			continue
		}
		if err := s.filesystemHandler.Chown(v.HostPath, uid, gid); err != nil {
			op.warn(StepDirectoryProvisioning, fmt.Sprintf("could not set owner %d:%d on %s: %v", uid, gid, v.HostPath, err))
			continue
		}
		if err := s.filesystemHandler.Chmod(v.HostPath, 0o700); err != nil {
			op.warn(StepDirectoryProvisioning, fmt.Sprintf("could not set permissions on %s: %v", v.HostPath, err))
		}
	}
	op.ok(StepDirectoryProvisioning, "Directories ready")
	return nil
}

// ensureImage inspects ref and pulls it when missing. Pull progress is
// reported once per layer status change.
func (s *LifecycleManager) ensureImage(ctx context.Context, op *operation, ref string) error {
	op.say(StepImageEnsuring, fmt.Sprintf("Checking image %s", ref))
	_, err := s.runtimeHandler.InspectImage(ctx, ref)
	if err == nil {
		op.ok(StepImageEnsuring, fmt.Sprintf("Image %s is available locally", ref))
		return nil
	}
	if !runtime.IsNotFound(err) {
		return op.fail(StepImageEnsuring, apperr.Wrap(apperr.RuntimeError, err))
	}

	op.say(StepImageEnsuring, fmt.Sprintf("Pulling image %s", ref))
	last := map[string]string{}
	err = s.runtimeHandler.PullImage(ctx, ref, func(ev runtime.PullEvent) {
		if ev.LayerId == "" {
			op.say(StepImageEnsuring, ev.Status)
			return
		}
		if last[ev.LayerId] == ev.Status {
			return
		}
		last[ev.LayerId] = ev.Status
		op.say(StepImageEnsuring, fmt.Sprintf("%s: %s", ev.LayerId, ev.Status))
	})
	if err != nil {
		return op.fail(StepImageEnsuring, apperr.Wrap(apperr.RuntimeError, err))
	}
	op.ok(StepImageEnsuring, fmt.Sprintf("Pulled image %s", ref))
	return nil
}

// createAndStart creates the container for svc and starts it. A container
// that was created but failed to start is left in place and reported.
func (s *LifecycleManager) createAndStart(ctx context.Context, op *operation, svc *registry.Service, tpl template.Template) error {
	binds := make([]string, 0, len(svc.Volumes))
	for _, v := range svc.Volumes {
		binds = append(binds, v.HostPath+":"+v.ContainerPath)
	}

	op.say(StepContainerCreating, fmt.Sprintf("Creating container %s", svc.Name))
	containerId, err := s.runtimeHandler.Create(ctx, runtime.CreateModel{
		Name:          svc.Name,
		Image:         svc.Image,
		Env:           envvar.ToEnviron(svc.EnvVars),
		Command:       commandArgv(tpl, svc.Command),
		WorkingDir:    tpl.Workdir,
		HostPort:      svc.HostPort,
		ContainerPort: svc.ContainerPort,
		Binds:         binds,
		NetworkName:   svc.NetworkName,
		Labels: map[string]string{
			labelService:  svc.Name,
			labelTemplate: svc.TemplateId,
		},
	})
	if err != nil {
		return op.fail(StepContainerCreating, apperr.Wrap(apperr.RuntimeError, err))
	}
	op.ok(StepContainerCreating, fmt.Sprintf("Created container %s", shortId(containerId)))

	op.say(StepContainerStarting, "Starting container")
	if err := s.runtimeHandler.Start(ctx, containerId); err != nil {
		op.say(StepContainerStarting, fmt.Sprintf("Container %s was created but not started and has been left in place", shortId(containerId)))
		return op.fail(StepContainerStarting, apperr.Wrap(apperr.RuntimeError, err))
	}
	op.ok(StepContainerStarting, "Container started")

	svc.ContainerId = containerId
	return nil
}

// commandArgv turns the stored command into container arguments. The
// template's own command keeps its argv form and is also used when the
// stored command is blank; anything else runs through sh -c.
func commandArgv(tpl template.Template, command *string) []string {
	if command == nil || strings.TrimSpace(*command) == "" {
		if len(tpl.Command) > 0 {
			return append([]string{}, tpl.Command...)
		}
		return nil
	}
	if len(tpl.Command) > 0 && *command == shellescape.QuoteCommand(tpl.Command) {
		return append([]string{}, tpl.Command...)
	}
	return []string{"sh", "-c", *command}
}

func defaultCommand(tpl template.Template) *string {
	if len(tpl.Command) == 0 {
		return nil
	}
	cmd := shellescape.QuoteCommand(tpl.Command)
	return &cmd
}

// decorate recomputes the fields derived from configuration.
func (s *LifecycleManager) decorate(svc *registry.Service) {
	svc.ServerIP = s.cfg.ServerIP
	host := s.cfg.ServerIP
	if host == "" {
		host = "localhost"
	}
	svc.Url = fmt.Sprintf("http://%s:%d", host, svc.HostPort)
	svc.ExternalUrl = ""
	if s.cfg.ExternalDomain != "" {
		svc.ExternalUrl = fmt.Sprintf("%s://%s.%s", s.cfg.ExternalScheme, strings.ToLower(svc.Name), s.cfg.ExternalDomain)
	}
}

// credentialsFor mirrors the login of a database service out of its env.
func credentialsFor(tpl template.Template, env []envvar.EnvVar) *registry.Credentials {
	if tpl.Credentials == (template.CredentialEnv{}) {
		return nil
	}
	c := &registry.Credentials{}
	if tpl.Credentials.User != "" {
		c.User, _ = envvar.Lookup(env, tpl.Credentials.User)
	}
	if tpl.Credentials.Password != "" {
		c.Password, _ = envvar.Lookup(env, tpl.Credentials.Password)
	}
	if tpl.Credentials.Database != "" {
		c.Database, _ = envvar.Lookup(env, tpl.Credentials.Database)
	}
	return c
}

func (s *LifecycleManager) checkNetwork(ctx context.Context, name string) error {
	if name == "" || name == defaultNetwork || name == s.cfg.DefaultNetwork {
		return nil
	}
	networks, err := s.runtimeHandler.ListNetworks(ctx)
	if err != nil {
		return apperr.Wrap(apperr.RuntimeError, err)
	}
	for _, n := range networks {
		if n.Name == name {
			return nil
		}
	}
	return apperr.New(apperr.InvalidRequest, "network %s does not exist", name)
}

func shortId(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
