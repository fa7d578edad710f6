package runtime

import (
	"context"
	"io"
)

// RuntimeHandler is the container runtime the engine drives. Failures are
// returned with the runtime's own message.
type RuntimeHandler interface {
	ListContainers(ctx context.Context, all bool) ([]ContainerSummary, error)
	ListImages(ctx context.Context) ([]ImageSummary, error)
	ListNetworks(ctx context.Context) ([]NetworkSummary, error)

	// InspectImage returns an error satisfying IsNotFound when the image is
	// not present locally.
	InspectImage(ctx context.Context, ref string) (ImageInfo, error)
	PullImage(ctx context.Context, ref string, onProgress func(PullEvent)) error
	BuildImage(ctx context.Context, buildParameter BuildModel, onProgress func(PullEvent)) error

	Create(ctx context.Context, createParameter CreateModel) (string, error)
	Start(ctx context.Context, containerId string) error
	Stop(ctx context.Context, containerId string) error
	Restart(ctx context.Context, containerId string) error
	Remove(ctx context.Context, removeParameter RemoveModel) error
	Inspect(ctx context.Context, containerId string) (ContainerInfo, error)
	Stats(ctx context.Context, containerId string) (StatsModel, error)
	Logs(ctx context.Context, logsParameter LogsModel) (io.ReadCloser, error)
}
