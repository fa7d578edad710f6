package monitor

import (
	"context"

	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
)

type ServiceLister interface {
	GetServiceList() ([]registry.Service, error)
}

type ContainerReader interface {
	ListContainers(ctx context.Context, all bool) ([]runtime.ContainerSummary, error)
	Stats(ctx context.Context, containerId string) (runtime.StatsModel, error)
}

type RecordWriter interface {
	WriteJSONL(v any) error
}
