package env

const (
	RootDir   = "/etc/dockmate"
	StoreDir  = "/etc/dockmate/store"
	LogDir    = "/var/log/dockmate"
	VolumeDir = "/srv/dockmate/volumes"

	DefaultConfigPath     = "/etc/dockmate/config.yaml"
	DefaultDotenvPath     = ".env"
	RegistryStorePath     = "/etc/dockmate/store/registry.json"
	RegistrySqlitePath    = "/etc/dockmate/store/registry.db"
	TemplateOverlayPath   = "/etc/dockmate/templates.yaml"
	MetricsLogPath        = "/var/log/dockmate/metrics.jsonl"
	DefaultListenAddr     = "127.0.0.1:7755"
	DefaultExternalScheme = "https"
	DefaultNetwork        = "bridge"
)
