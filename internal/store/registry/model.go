package registry

import (
	"time"

	"dockmate/internal/envvar"
)

type Volume struct {
	HostPath      string `json:"hostPath"`
	ContainerPath string `json:"containerPath"`
}

// DbConnection describes how a manager reaches the database it administers.
type DbConnection struct {
	Kind        string `json:"kind"`
	ServiceId   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user,omitempty"`
	Password    string `json:"password,omitempty"`
	Database    string `json:"database,omitempty"`
}

type Credentials struct {
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	Database string `json:"database,omitempty"`
}

// Service is the persisted record of a provisioned service. The registry
// document is a JSON array of these.
type Service struct {
	Id            string          `json:"id"`
	Name          string          `json:"name"`
	TemplateId    string          `json:"templateId"`
	Image         string          `json:"image"`
	ContainerId   string          `json:"containerId"`
	HostPort      int             `json:"hostPort"`
	ContainerPort int             `json:"containerPort"`
	Volumes       []Volume        `json:"volumes"`
	EnvVars       []envvar.EnvVar `json:"envVars"`
	Command       *string         `json:"command"`
	NetworkName   string          `json:"networkName"`
	Url           string          `json:"url"`
	ExternalUrl   string          `json:"externalUrl"`
	ServerIP      string          `json:"serverIP"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	HasProject    bool            `json:"hasProject"`

	ParentService string        `json:"parentService,omitempty"`
	ConfiguredFor string        `json:"configuredFor,omitempty"`
	DbConnection  *DbConnection `json:"dbConnection,omitempty"`
	Credentials   *Credentials  `json:"credentials,omitempty"`
}

// Masked returns a copy safe to hand to clients: secret env values and
// stored passwords are replaced by the mask token.
func (s Service) Masked() Service {
	out := s
	out.EnvVars = envvar.Mask(s.EnvVars)
	out.Volumes = append([]Volume(nil), s.Volumes...)
	if s.Credentials != nil {
		c := *s.Credentials
		if c.Password != "" {
			c.Password = envvar.MaskToken
		}
		out.Credentials = &c
	}
	if s.DbConnection != nil {
		c := *s.DbConnection
		if c.Password != "" {
			c.Password = envvar.MaskToken
		}
		out.DbConnection = &c
	}
	return out
}

// CommandString returns the stored command or "" when none is set.
func (s Service) CommandString() string {
	if s.Command == nil {
		return ""
	}
	return *s.Command
}
