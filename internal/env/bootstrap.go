package env

import (
	"fmt"
	"path/filepath"

	"dockmate/internal/logger"
	"dockmate/internal/store/registry"
	"dockmate/internal/utils"
)

func NewBootstrapManager(cfg *Config) *BootstrapManager {
	return &BootstrapManager{
		cfg:               cfg,
		filesystemHandler: utils.NewFilesystemExecutor(),
	}
}

type BootstrapManager struct {
	cfg               *Config
	filesystemHandler utils.FilesystemHandler
}

// SetupRuntime prepares the host directories and returns the initialized
// registry store selected by the configuration.
func (m *BootstrapManager) SetupRuntime() (registry.Store, error) {
	// 1. create runtime directories
	if err := m.setupRuntimeDirectory(); err != nil {
		return nil, err
	}

	// 2. open the registry store
	store, err := OpenRegistryStore(m.cfg)
	if err != nil {
		return nil, err
	}

	// 3. initialize the registry document
	if err := store.Init(); err != nil {
		store.Close()
		return nil, fmt.Errorf("init registry: %w", err)
	}
	logger.Infof("registry ready (backend=%s)", m.cfg.Registry.Backend)
	return store, nil
}

func (m *BootstrapManager) setupRuntimeDirectory() error {
	dirs := []string{m.cfg.VolumeBaseDir, filepath.Dir(m.registryPath())}
	if m.cfg.AuditLogPath != "" {
		dirs = append(dirs, filepath.Dir(m.cfg.AuditLogPath))
	}
	for _, dir := range dirs {
		if err := m.filesystemHandler.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func (m *BootstrapManager) registryPath() string {
	if m.cfg.Registry.Backend == RegistryBackendSqlite {
		return m.cfg.Registry.SqlitePath
	}
	return m.cfg.Registry.Path
}

// OpenRegistryStore returns the store for the configured backend without
// initializing it.
func OpenRegistryStore(cfg *Config) (registry.Store, error) {
	switch cfg.Registry.Backend {
	case RegistryBackendSqlite:
		store, err := registry.NewSqliteStore(cfg.Registry.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite registry: %w", err)
		}
		return store, nil
	case RegistryBackendJson, "":
		return registry.NewFileStore(cfg.Registry.Path), nil
	}
	return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
}
