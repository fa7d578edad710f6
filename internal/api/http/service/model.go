package service

import (
	"dockmate/internal/envvar"
	"dockmate/internal/store/registry"
)

type CreateServiceRequest struct {
	TemplateId   string            `json:"templateId"`
	Name         string            `json:"name"`
	HostPort     int               `json:"hostPort,omitempty"`
	Image        string            `json:"image,omitempty"`
	EnvVars      []envvar.EnvVar   `json:"envVars,omitempty"`
	Command      *string           `json:"command,omitempty"`
	NetworkName  string            `json:"networkName,omitempty"`
	Volumes      []registry.Volume `json:"volumes,omitempty"`
	WithManager  bool              `json:"withManager,omitempty"`
	ConfigureFor string            `json:"configureFor,omitempty"`
	SessionId    string            `json:"sessionId,omitempty"`
}

type UpdateServiceRequest struct {
	HostPort    int               `json:"hostPort,omitempty"`
	Image       string            `json:"image,omitempty"`
	EnvVars     []envvar.EnvVar   `json:"envVars,omitempty"`
	Command     *string           `json:"command,omitempty"`
	NetworkName string            `json:"networkName,omitempty"`
	Volumes     []registry.Volume `json:"volumes,omitempty"`
	SessionId   string            `json:"sessionId,omitempty"`
}

// AvailablePortResponse carries the port to use. When Preferred is taken,
// Port is the first free port above it.
type AvailablePortResponse struct {
	Port      int  `json:"port"`
	Preferred int  `json:"preferred,omitempty"`
	Available bool `json:"available"`
}

type LogsResponse struct {
	ServiceId string `json:"serviceId"`
	Logs      string `json:"logs"`
}

type RemoveServiceResponse struct {
	ServiceId string   `json:"serviceId"`
	Progress  []string `json:"progress"`
	SessionId string   `json:"sessionId"`
}
