package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"dockmate/internal/envvar"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

// dockerBridgeGateway is how containers on the default bridge reach ports
// published on the host when no server address is configured.
const dockerBridgeGateway = "172.17.0.1"

// provisionManager creates the manager companion of primary. Its failure is
// recorded as a warning and never touches primary.
func (s *LifecycleManager) provisionManager(ctx context.Context, op *operation, primary *registry.Service, tpl template.Template) {
	if !tpl.HasManagerOption {
		op.warn(StepCompanion, fmt.Sprintf("template %s has no manager companion", tpl.Id))
		return
	}

	name := primary.Name + "-" + tpl.ManagerTemplateId
	op.say(StepCompanion, fmt.Sprintf("Provisioning manager %s", name))

	child := &operation{name: name, log: op.log}
	companion, _, err := s.create(ctx, child, CreateModel{
		TemplateId:    tpl.ManagerTemplateId,
		Name:          name,
		ConfigureFor:  primary.Id,
		parentService: primary.Id,
	})
	op.absorb(child)
	if err != nil {
		op.warn(StepCompanion, fmt.Sprintf("manager %s was not provisioned: %v", name, err))
		return
	}
	op.ok(StepCompanion, fmt.Sprintf("Manager %s is running at %s", companion.Name, companion.Url))
}

// connectionFor describes how a manager built from managerTpl reaches target
// and renders the manager's connection env from it.
func (s *LifecycleManager) connectionFor(managerTpl template.Template, target registry.Service) (*registry.DbConnection, []envvar.EnvVar, error) {
	targetTpl, ok := s.catalog.Get(target.TemplateId)
	if !ok {
		return nil, nil, fmt.Errorf("template %s of service %s is no longer in the catalog", target.TemplateId, target.Name)
	}
	if targetTpl.DbKind == "" {
		return nil, nil, fmt.Errorf("service %s is not a database", target.Name)
	}
	if managerTpl.DbKind != "" && managerTpl.DbKind != targetTpl.DbKind {
		return nil, nil, fmt.Errorf("%s manages %s databases, but %s is %s", managerTpl.Id, managerTpl.DbKind, target.Name, targetTpl.DbKind)
	}

	host := s.cfg.ServerIP
	if host == "" {
		host = dockerBridgeGateway
	}
	conn := &registry.DbConnection{
		Kind:        targetTpl.DbKind,
		ServiceId:   target.Id,
		ServiceName: target.Name,
		Host:        host,
		Port:        target.HostPort,
	}
	if creds := credentialsFor(targetTpl, target.EnvVars); creds != nil {
		conn.User = creds.User
		conn.Password = creds.Password
		conn.Database = creds.Database
	}

	replacer := strings.NewReplacer(
		"{host}", conn.Host,
		"{port}", strconv.Itoa(conn.Port),
		"{user}", conn.User,
		"{password}", conn.Password,
		"{database}", conn.Database,
		"{url}", connectionURL(conn),
	)
	env := make([]envvar.EnvVar, 0, len(managerTpl.ConnectionEnv))
	for _, e := range managerTpl.ConnectionEnv {
		secret := conn.Password != "" && (strings.Contains(e.Value, "{password}") || strings.Contains(e.Value, "{url}"))
		env = append(env, envvar.EnvVar{Key: e.Key, Value: replacer.Replace(e.Value), Secret: secret})
	}
	return conn, env, nil
}

func connectionURL(conn *registry.DbConnection) string {
	scheme := map[string]string{
		"postgres": "postgresql",
		"mysql":    "mysql",
		"mongo":    "mongodb",
		"redis":    "redis",
	}[conn.Kind]
	if scheme == "" {
		scheme = conn.Kind
	}

	u := url.URL{
		Scheme: scheme,
		Host:   conn.Host + ":" + strconv.Itoa(conn.Port),
		Path:   "/" + conn.Database,
	}
	if conn.User != "" {
		if conn.Password != "" {
			u.User = url.UserPassword(conn.User, conn.Password)
		} else {
			u.User = url.User(conn.User)
		}
	}
	return u.String()
}
