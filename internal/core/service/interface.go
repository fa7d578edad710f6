package service

import (
	"context"
	"io"

	"dockmate/internal/portalloc"
	"dockmate/internal/runtime"
	"dockmate/internal/store/registry"
	"dockmate/internal/template"
)

type ServiceHandler interface {
	ListServices() ([]registry.Service, error)
	GetService(serviceId string) (registry.Service, error)
	Create(ctx context.Context, createParameter CreateModel) (Result, error)
	Update(ctx context.Context, serviceId string, updateParameter UpdateModel) (Result, error)
	UploadProject(ctx context.Context, serviceId string, uploadParameter UploadModel) (Result, error)
	Remove(ctx context.Context, serviceId string, removeVolumes bool) (Result, error)
	Start(ctx context.Context, serviceId string) error
	Stop(ctx context.Context, serviceId string) error
	Restart(ctx context.Context, serviceId string) error
	Stats(ctx context.Context, serviceId string) (runtime.StatsModel, error)
	Logs(ctx context.Context, serviceId string, logsParameter LogsModel) (io.ReadCloser, error)
	ResolveAvailablePort(ctx context.Context, preferred int) (int, bool)
	ListTemplates() []template.Template
	ListImages(ctx context.Context) ([]runtime.ImageSummary, error)
	ListNetworks(ctx context.Context) ([]runtime.NetworkSummary, error)
	BuildImage(ctx context.Context, buildParameter BuildModel) (Result, error)
}

type PortResolver interface {
	Resolve(ctx context.Context, req portalloc.ResolveModel) (int, error)
}
