package template

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsAreValid(t *testing.T) {
	c := NewCatalog("", nil)
	for _, tpl := range c.List() {
		assert.NoError(t, tpl.Validate(), tpl.Id)
		if tpl.HasManagerOption {
			_, ok := c.Get(tpl.ManagerTemplateId)
			assert.True(t, ok, "%s references unknown manager %s", tpl.Id, tpl.ManagerTemplateId)
		}
	}
}

func TestListSorted(t *testing.T) {
	list := NewCatalog("", nil).List()
	require.NotEmpty(t, list)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].Id, list[i].Id)
	}
}

func TestPostgresDefaults(t *testing.T) {
	tpl, ok := NewCatalog("", nil).Get("postgres-db")
	require.True(t, ok)
	assert.Equal(t, 5433, tpl.DefaultPort)
	assert.Equal(t, 5432, tpl.ContainerPort)

	uid, gid, set, err := tpl.Owner()
	require.NoError(t, err)
	assert.True(t, set)
	assert.Equal(t, 70, uid)
	assert.Equal(t, 70, gid)
}

func TestImageAllowList(t *testing.T) {
	c := NewCatalog("", []string{"busybox"})

	cases := []struct {
		ref  string
		want bool
	}{
		{ref: "postgres:16-alpine", want: true},
		{ref: "redis:7-alpine", want: true},
		{ref: "busybox", want: true},
		{ref: "busybox:latest", want: true},
		{ref: "postgres:9", want: false},
		{ref: "evil.example.com/postgres:16-alpine", want: false},
		{ref: "", want: false},
		{ref: "postgres:16-alpine; rm -rf /", want: false},
	}
	for _, tc := range cases {
		t.Run(tc.ref, func(t *testing.T) {
			assert.Equal(t, tc.want, c.IsImageAllowed(tc.ref))
		})
	}
}

func TestNormalizeRef(t *testing.T) {
	assert.Equal(t, "nginx:latest", normalizeRef("nginx"))
	assert.Equal(t, "localhost:5000/app:latest", normalizeRef("localhost:5000/app"))
	assert.Equal(t, "localhost:5000/app:v1", normalizeRef("localhost:5000/app:v1"))
}

func TestValidate(t *testing.T) {
	base := Template{Id: "x", Image: "alpine", DefaultPort: 8080, ContainerPort: 80}

	cases := []struct {
		name    string
		mutate  func(*Template)
		wantErr bool
	}{
		{name: "ok", mutate: func(*Template) {}},
		{name: "missing id", mutate: func(t *Template) { t.Id = "" }, wantErr: true},
		{name: "missing image", mutate: func(t *Template) { t.Image = "" }, wantErr: true},
		{name: "port range", mutate: func(t *Template) { t.DefaultPort = 70000 }, wantErr: true},
		{name: "relative volume", mutate: func(t *Template) {
			t.Volumes = []VolumeTemplate{{HostPathPlaceholder: "d", ContainerPath: "data"}}
		}, wantErr: true},
		{name: "relative workdir", mutate: func(t *Template) { t.Workdir = "app" }, wantErr: true},
		{name: "bad owner", mutate: func(t *Template) { t.VolumeOwner = "root" }, wantErr: true},
		{name: "manager without id", mutate: func(t *Template) { t.HasManagerOption = true }, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := base
			tc.mutate(&tpl)
			err := tpl.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

const overlayYaml = `
templates:
  - id: redis-cache
    image: redis
    tag: "7.2"
    defaultPort: 6390
    containerPort: 6379
  - id: whoami
    image: traefik/whoami
    tag: v1.10
    defaultPort: 8090
    containerPort: 80
`

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlayYaml), 0o644))

	c := NewCatalog(path, nil)
	require.NoError(t, c.Load())

	redis, ok := c.Get("redis-cache")
	require.True(t, ok)
	assert.Equal(t, 6390, redis.DefaultPort)
	assert.True(t, c.IsImageAllowed("traefik/whoami:v1.10"))
	assert.False(t, c.IsImageAllowed("redis:7-alpine"))

	_, ok = c.Get("postgres-db")
	assert.True(t, ok, "built-ins survive an overlay")
}

func TestLoadInvalidOverlayKeepsCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlayYaml), 0o644))

	c := NewCatalog(path, nil)
	require.NoError(t, c.Load())

	bad := "templates:\n  - id: broken\n    image: alpine\n    defaultPort: 0\n    containerPort: 80\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
	assert.Error(t, c.Load())

	_, ok := c.Get("whoami")
	assert.True(t, ok)
	_, ok = c.Get("broken")
	assert.False(t, ok)
}

func TestLoadMissingOverlay(t *testing.T) {
	c := NewCatalog(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.NoError(t, c.Load())
	assert.Len(t, c.List(), len(builtinTemplates))
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	c := NewCatalog(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Watch(ctx) }()

	// give the watcher time to register the directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(overlayYaml), 0o644))

	require.Eventually(t, func() bool {
		_, ok := c.Get("whoami")
		return ok
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
