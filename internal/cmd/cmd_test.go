package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dockmate/internal/apperr"
	"dockmate/internal/envvar"
	"dockmate/internal/portalloc"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func clearDockmateEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "DOCKMATE_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func sampleService() registry.Service {
	return registry.Service{
		Id:            "01J0000000000000000000CACHE",
		Name:          "db1",
		TemplateId:    "postgres-db",
		Image:         "postgres:16-alpine",
		ContainerId:   "c01",
		HostPort:      5433,
		ContainerPort: 5432,
		Url:           "http://10.0.0.5:5433",
		EnvVars: []envvar.EnvVar{
			{Key: "POSTGRES_USER", Value: "app"},
			{Key: "POSTGRES_PASSWORD", Value: "hunter2", Secret: true},
		},
		Credentials: &registry.Credentials{User: "app", Password: "hunter2"},
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestPrintServices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printServices(&buf, []registry.Service{sampleService()}))

	out := buf.String()
	assert.Contains(t, out, "db1 (registered)")
	assert.Contains(t, out, "5433 -> 5432")
	assert.Contains(t, out, "http://10.0.0.5:5433")
	assert.Contains(t, out, "app / "+envvar.MaskToken)
	assert.Contains(t, out, "2026-01-02 03:04:05")
	assert.NotContains(t, out, "hunter2")
}

func TestPrintServicesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printServices(&buf, nil))
	assert.Equal(t, "No services registered\n", buf.String())
}

func TestPrintTemplates(t *testing.T) {
	var buf bytes.Buffer
	printTemplates(&buf, template.NewCatalog("", nil).List())

	lines := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		id, _, _ := strings.Cut(line, " ")
		lines[id] = line
	}
	require.Contains(t, lines, "postgres-db")
	assert.Contains(t, lines["postgres-db"], "postgres:16-alpine")
	assert.Contains(t, lines["postgres-db"], "manager:pgadmin")
	assert.Contains(t, lines["node-app"], "[project]")
	assert.Contains(t, lines["pgadmin"], "manages:postgres")
}

type fakeResolver struct {
	used map[int]bool
}

func (f *fakeResolver) Resolve(_ context.Context, req portalloc.ResolveModel) (int, error) {
	if req.Preferred != 0 {
		if f.used[req.Preferred] {
			return 0, apperr.New(apperr.PortConflict, "port %d is already used by service cache1", req.Preferred)
		}
		return req.Preferred, nil
	}
	for port := req.Start; port <= portalloc.MaxPort; port++ {
		if !f.used[port] {
			return port, nil
		}
	}
	return 0, portalloc.ErrNoPortAvailable
}

func TestCheckPort(t *testing.T) {
	resolver := &fakeResolver{used: map[int]bool{3000: true, 6380: true, 6381: true}}

	cases := []struct {
		name      string
		preferred int
		want      []string
	}{
		{name: "scan from default start", preferred: 0, want: []string{"3001\n"}},
		{name: "free preference", preferred: 6390, want: []string{"6390 free"}},
		{name: "taken preference", preferred: 6380, want: []string{"6380 in use", "cache1", "next free: 6382"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, checkPort(context.Background(), &buf, resolver, tc.preferred))
			for _, w := range tc.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	cfg := "registry:\n" +
		"  backend: json\n" +
		"  path: " + filepath.Join(dir, "registry.json") + "\n" +
		"volumeBaseDir: " + filepath.Join(dir, "volumes") + "\n" +
		"templateOverlayPath: " + filepath.Join(dir, "templates.yaml") + "\n"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestServicesCommandReadsRegistry(t *testing.T) {
	clearDockmateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	store := registry.NewFileStore(filepath.Join(dir, "registry.json"))
	require.NoError(t, store.Init())
	require.NoError(t, registry.NewRegistryManager(store).SaveService(sampleService()))

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--env-file", "", "services"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "db1 (registered)")
	assert.NotContains(t, out.String(), "hunter2")
}

func TestTemplatesCommandUsesOverlay(t *testing.T) {
	clearDockmateEnv(t)
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	overlay := `templates:
  - id: memcached
    name: Memcached
    image: memcached
    tag: "1.6"
    defaultPort: 11212
    containerPort: 11211
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates.yaml"), []byte(overlay), 0o600))

	root := NewRootCmd("test")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", cfgPath, "--env-file", "", "templates", "--images"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "memcached")
	assert.Contains(t, out.String(), "memcached:1.6")
	assert.Contains(t, out.String(), "Allowed images:")
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	clearDockmateEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volumeBaseDir: relative/dir\n"), 0o600))

	root := NewRootCmd("test")
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", path, "--env-file", "", "port"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "volumeBaseDir")
}
