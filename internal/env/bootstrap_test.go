package env

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupRuntimeJson(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.VolumeBaseDir = filepath.Join(dir, "volumes")
	cfg.Registry.Path = filepath.Join(dir, "store", "registry.json")
	cfg.AuditLogPath = filepath.Join(dir, "log", "audit.log")

	store, err := NewBootstrapManager(cfg).SetupRuntime()
	require.NoError(t, err)
	defer store.Close()

	assert.DirExists(t, cfg.VolumeBaseDir)
	assert.DirExists(t, filepath.Join(dir, "log"))
	assert.FileExists(t, cfg.Registry.Path)
}

func TestOpenRegistryStoreUnknownBackend(t *testing.T) {
	cfg := Default()
	cfg.Registry.Backend = "etcd"
	_, err := OpenRegistryStore(cfg)
	assert.Error(t, err)
}
