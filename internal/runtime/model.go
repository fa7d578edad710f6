package runtime

import (
	"errors"
	"io"
	"time"
)

// ErrNotFound marks a missing image or container.
var ErrNotFound = errors.New("not found")

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

type ContainerSummary struct {
	Id     string
	Names  []string
	Image  string
	State  string
	Status string
}

type ImageSummary struct {
	Id       string
	RepoTags []string
	Size     int64
	Created  time.Time
}

type NetworkSummary struct {
	Id     string
	Name   string
	Driver string
	Scope  string
}

type ImageInfo struct {
	Id       string
	RepoTags []string
	Created  string
}

// PullEvent is one progress record of a pull or build. LayerId is empty for
// messages about the whole operation.
type PullEvent struct {
	LayerId string
	Status  string
	Current int64
	Total   int64
}

type CreateModel struct {
	Name          string
	Image         string
	Env           []string
	Command       []string
	WorkingDir    string
	HostPort      int
	ContainerPort int
	// Binds are "hostPath:containerPath" pairs.
	Binds       []string
	NetworkName string
	Labels      map[string]string
}

type RemoveModel struct {
	ContainerId string
	Force       bool
}

type ContainerInfo struct {
	Id        string
	Name      string
	Image     string
	Status    string
	Running   bool
	StartedAt string
	ExitCode  int
}

type StatsModel struct {
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryUsage   uint64  `json:"memoryUsage"`
	MemoryLimit   uint64  `json:"memoryLimit"`
	MemoryPercent float64 `json:"memoryPercent"`
	NetworkRx     uint64  `json:"networkRx"`
	NetworkTx     uint64  `json:"networkTx"`
}

type LogsModel struct {
	ContainerId string
	Follow      bool
	// Tail is the number of trailing lines, 0 for all.
	Tail int
}

type BuildModel struct {
	// Context is a tar stream of the build context.
	Context    io.Reader
	Tag        string
	Dockerfile string
}
