package service

import (
	"io"

	"dockmate/internal/envvar"
	"dockmate/internal/store/registry"
)

// Config holds the host facts the manager stamps onto every service.
type Config struct {
	VolumeBaseDir  string
	ServerIP       string
	ExternalDomain string
	ExternalScheme string
	DefaultNetwork string
	// PortScanStart is where an availability query without a preference
	// begins its scan.
	PortScanStart int
	LogTail       int
}

type CreateModel struct {
	TemplateId  string            `json:"templateId"`
	Name        string            `json:"name"`
	HostPort    int               `json:"hostPort,omitempty"`
	Image       string            `json:"image,omitempty"`
	EnvVars     []envvar.EnvVar   `json:"envVars,omitempty"`
	Command     *string           `json:"command,omitempty"`
	NetworkName string            `json:"networkName,omitempty"`
	Volumes     []registry.Volume `json:"volumes,omitempty"`
	// WithManager provisions the template's manager companion.
	WithManager bool `json:"withManager,omitempty"`
	// ConfigureFor wires a manager to an existing database service id.
	ConfigureFor string `json:"configureFor,omitempty"`
	// SessionId lets a client subscribe to progress before sending the
	// request. One is generated when empty.
	SessionId string `json:"sessionId,omitempty"`

	parentService string
}

// UpdateModel fields left nil or zero keep the stored value.
type UpdateModel struct {
	HostPort    int               `json:"hostPort,omitempty"`
	Image       string            `json:"image,omitempty"`
	EnvVars     []envvar.EnvVar   `json:"envVars"`
	Command     *string           `json:"command,omitempty"`
	NetworkName string            `json:"networkName,omitempty"`
	Volumes     []registry.Volume `json:"volumes,omitempty"`
	SessionId   string            `json:"sessionId,omitempty"`
}

type UploadModel struct {
	Filename  string
	Content   io.Reader
	SessionId string
}

type LogsModel struct {
	Follow bool
	Tail   int
}

type BuildModel struct {
	Context    io.Reader
	Tag        string
	Dockerfile string
	SessionId  string
}

// Result is returned by every mutating operation, on success and on failure.
// Service is masked.
type Result struct {
	Service   *registry.Service `json:"service,omitempty"`
	Progress  []string          `json:"progress"`
	SessionId string            `json:"sessionId"`
	Outcomes  []Outcome         `json:"outcomes"`
}
