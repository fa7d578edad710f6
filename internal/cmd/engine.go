package cmd

import (
	"fmt"

	"dockmate/internal/env"
	"dockmate/internal/portalloc"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

// localState is the part of the engine that works without a Docker daemon:
// the catalog, the registry and the port allocator.
type localState struct {
	catalog   *template.Catalog
	store     registry.Store
	registry  *registry.RegistryManager
	allocator *portalloc.Allocator
}

func openLocalState(cfg *env.Config, bootstrap bool) (*localState, error) {
	catalog := template.NewCatalog(cfg.TemplateOverlayPath, cfg.AllowedImages)
	if err := catalog.Load(); err != nil {
		return nil, fmt.Errorf("load template catalog: %w", err)
	}

	var (
		store registry.Store
		err   error
	)
	if bootstrap {
		store, err = env.NewBootstrapManager(cfg).SetupRuntime()
	} else {
		store, err = env.OpenRegistryStore(cfg)
	}
	if err != nil {
		return nil, err
	}

	registryManager := registry.NewRegistryManager(store)
	return &localState{
		catalog:   catalog,
		store:     store,
		registry:  registryManager,
		allocator: portalloc.NewAllocator(registryManager, portalloc.NewTCPBindChecker(cfg.PortBindTimeout)),
	}, nil
}

func (s *localState) Close() error {
	return s.store.Close()
}
