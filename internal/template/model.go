package template

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

// Template is an immutable blueprint for a kind of service.
type Template struct {
	Id            string           `yaml:"id" json:"id"`
	Name          string           `yaml:"name" json:"name"`
	Description   string           `yaml:"description" json:"description"`
	Category      string           `yaml:"category" json:"category"`
	Image         string           `yaml:"image" json:"image"`
	Tag           string           `yaml:"tag" json:"tag"`
	DefaultPort   int              `yaml:"defaultPort" json:"defaultPort"`
	ContainerPort int              `yaml:"containerPort" json:"containerPort"`
	Volumes       []VolumeTemplate `yaml:"volumes" json:"volumes"`
	Env           []EnvDefault     `yaml:"env" json:"env"`
	Command       []string         `yaml:"command" json:"command,omitempty"`
	Workdir       string           `yaml:"workdir" json:"workdir,omitempty"`

	HasProjectOption  bool `yaml:"hasProjectOption" json:"hasProjectOption"`
	HasManagerOption  bool `yaml:"hasManagerOption" json:"hasManagerOption"`
	HasDbConfigOption bool `yaml:"hasDbConfigOption" json:"hasDbConfigOption"`
	IsManager         bool `yaml:"isManager" json:"isManager"`

	// ManagerTemplateId names the companion provisioned when a request asks
	// for a manager alongside this service.
	ManagerTemplateId string `yaml:"managerTemplateId" json:"managerTemplateId,omitempty"`
	// DbKind is the database flavour a service provides, or for managers,
	// the flavour it administers.
	DbKind string `yaml:"dbKind" json:"dbKind,omitempty"`
	// VolumeOwner is "uid:gid" applied to provisioned volumes.
	VolumeOwner string `yaml:"volumeOwner" json:"volumeOwner,omitempty"`
	// GeneratedSecrets lists env keys filled with a random password when the
	// request leaves them out.
	GeneratedSecrets []string      `yaml:"generatedSecrets" json:"generatedSecrets,omitempty"`
	Credentials      CredentialEnv `yaml:"credentials" json:"credentials,omitempty"`
	// ConnectionEnv values may contain {host} {port} {user} {password}
	// {database} {url} and are filled from the wired database connection.
	ConnectionEnv []EnvDefault `yaml:"connectionEnv" json:"connectionEnv,omitempty"`
}

type VolumeTemplate struct {
	HostPathPlaceholder string `yaml:"hostPathPlaceholder" json:"hostPathPlaceholder"`
	ContainerPath       string `yaml:"containerPath" json:"containerPath"`
}

type EnvDefault struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// CredentialEnv names the env keys that carry a database's login.
type CredentialEnv struct {
	User     string `yaml:"user" json:"user,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	Database string `yaml:"database" json:"database,omitempty"`
}

// ImageRef is the repository:tag reference of the template image.
func (t Template) ImageRef() string {
	tag := t.Tag
	if tag == "" {
		tag = "latest"
	}
	return t.Image + ":" + tag
}

// Owner parses VolumeOwner. ok is false when no owner is configured.
func (t Template) Owner() (uid int, gid int, ok bool, err error) {
	if t.VolumeOwner == "" {
		return 0, 0, false, nil
	}
	parts := strings.SplitN(t.VolumeOwner, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false, fmt.Errorf("volumeOwner must be uid:gid, got %q", t.VolumeOwner)
	}
	uid, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid uid in volumeOwner %q", t.VolumeOwner)
	}
	gid, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid gid in volumeOwner %q", t.VolumeOwner)
	}
	return uid, gid, true, nil
}

func (t Template) Validate() error {
	if t.Id == "" {
		return fmt.Errorf("template id is required")
	}
	if t.Image == "" {
		return fmt.Errorf("template %s: image is required", t.Id)
	}
	if t.DefaultPort <= 0 || t.DefaultPort > 65535 {
		return fmt.Errorf("template %s: defaultPort out of range: %d", t.Id, t.DefaultPort)
	}
	if t.ContainerPort <= 0 || t.ContainerPort > 65535 {
		return fmt.Errorf("template %s: containerPort out of range: %d", t.Id, t.ContainerPort)
	}
	for _, v := range t.Volumes {
		if !path.IsAbs(v.ContainerPath) {
			return fmt.Errorf("template %s: volume container path must be absolute: %q", t.Id, v.ContainerPath)
		}
	}
	if t.Workdir != "" && !path.IsAbs(t.Workdir) {
		return fmt.Errorf("template %s: workdir must be absolute: %q", t.Id, t.Workdir)
	}
	if _, _, _, err := t.Owner(); err != nil {
		return fmt.Errorf("template %s: %w", t.Id, err)
	}
	if t.HasManagerOption && t.ManagerTemplateId == "" {
		return fmt.Errorf("template %s: hasManagerOption requires managerTemplateId", t.Id)
	}
	return nil
}
