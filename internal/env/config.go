package env

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DOCKMATE_"

const (
	RegistryBackendJson   = "json"
	RegistryBackendSqlite = "sqlite"
)

type RegistryConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	SqlitePath string `yaml:"sqlitePath"`
}

// MonitorConfig drives the background service monitor. A zero Interval
// disables it; an empty MetricsLogPath keeps state tracking but writes no
// metrics.
type MonitorConfig struct {
	Interval       time.Duration `yaml:"interval"`
	MetricsEvery   int           `yaml:"metricsEvery"`
	MetricsLogPath string        `yaml:"metricsLogPath"`
}

type Config struct {
	ListenAddr          string         `yaml:"listenAddr"`
	LogLevel            string         `yaml:"logLevel"`
	LogFormat           string         `yaml:"logFormat"`
	AuditLogPath        string         `yaml:"auditLogPath"`
	Registry            RegistryConfig `yaml:"registry"`
	VolumeBaseDir       string         `yaml:"volumeBaseDir"`
	TemplateOverlayPath string         `yaml:"templateOverlayPath"`
	ServerIP            string         `yaml:"serverIP"`
	ExternalDomain      string         `yaml:"externalDomain"`
	ExternalScheme      string         `yaml:"externalScheme"`
	DockerHost          string         `yaml:"dockerHost"`
	DefaultNetwork      string         `yaml:"defaultNetwork"`
	AllowedImages       []string       `yaml:"allowedImages"`
	PortBindTimeout     time.Duration  `yaml:"portBindTimeout"`
	Monitor             MonitorConfig  `yaml:"monitor"`
}

func Default() *Config {
	return &Config{
		ListenAddr: DefaultListenAddr,
		LogLevel:   "info",
		LogFormat:  "json",
		Registry: RegistryConfig{
			Backend:    RegistryBackendJson,
			Path:       RegistryStorePath,
			SqlitePath: RegistrySqlitePath,
		},
		VolumeBaseDir:       VolumeDir,
		TemplateOverlayPath: TemplateOverlayPath,
		ExternalScheme:      DefaultExternalScheme,
		DefaultNetwork:      DefaultNetwork,
		PortBindTimeout:     time.Second,
		Monitor: MonitorConfig{
			Interval:       5 * time.Second,
			MetricsEvery:   6,
			MetricsLogPath: MetricsLogPath,
		},
	}
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML file at path, the dotenv file at dotenvPath and DOCKMATE_*
// variables of the process environment. Missing files are skipped.
func Load(path, dotenvPath string) (*Config, error) {
	cfg := Default()

	// 1. yaml file
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	// 2. dotenv file, never overriding the real environment
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}

	// 3. environment overrides
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// 4. validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"LISTEN_ADDR":           &c.ListenAddr,
		"LOG_LEVEL":             &c.LogLevel,
		"LOG_FORMAT":            &c.LogFormat,
		"AUDIT_LOG_PATH":        &c.AuditLogPath,
		"REGISTRY_BACKEND":      &c.Registry.Backend,
		"REGISTRY_PATH":         &c.Registry.Path,
		"REGISTRY_SQLITE_PATH":  &c.Registry.SqlitePath,
		"VOLUME_BASE_DIR":       &c.VolumeBaseDir,
		"TEMPLATE_OVERLAY_PATH": &c.TemplateOverlayPath,
		"SERVER_IP":             &c.ServerIP,
		"EXTERNAL_DOMAIN":       &c.ExternalDomain,
		"EXTERNAL_SCHEME":       &c.ExternalScheme,
		"DOCKER_HOST":           &c.DockerHost,
		"DEFAULT_NETWORK":       &c.DefaultNetwork,
		"METRICS_LOG_PATH":      &c.Monitor.MetricsLogPath,
	}
	for key, field := range strs {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			*field = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv(envPrefix + "ALLOWED_IMAGES"); ok {
		c.AllowedImages = nil
		for _, ref := range strings.Split(v, ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				c.AllowedImages = append(c.AllowedImages, ref)
			}
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "PORT_BIND_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sPORT_BIND_TIMEOUT: %w", envPrefix, err)
		}
		c.PortBindTimeout = d
	}
	if v, ok := os.LookupEnv(envPrefix + "MONITOR_INTERVAL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sMONITOR_INTERVAL: %w", envPrefix, err)
		}
		c.Monitor.Interval = d
	}
	return nil
}

func (c *Config) Validate() error {
	var problems []string

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		problems = append(problems, fmt.Sprintf("listenAddr %q: %v", c.ListenAddr, err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logFormat must be json or text, got %q", c.LogFormat))
	}
	switch c.Registry.Backend {
	case RegistryBackendJson:
		if !filepath.IsAbs(c.Registry.Path) {
			problems = append(problems, fmt.Sprintf("registry.path must be absolute, got %q", c.Registry.Path))
		}
	case RegistryBackendSqlite:
		if !filepath.IsAbs(c.Registry.SqlitePath) {
			problems = append(problems, fmt.Sprintf("registry.sqlitePath must be absolute, got %q", c.Registry.SqlitePath))
		}
	default:
		problems = append(problems, fmt.Sprintf("registry.backend must be %s or %s, got %q", RegistryBackendJson, RegistryBackendSqlite, c.Registry.Backend))
	}
	if !filepath.IsAbs(c.VolumeBaseDir) {
		problems = append(problems, fmt.Sprintf("volumeBaseDir must be absolute, got %q", c.VolumeBaseDir))
	}
	if c.ServerIP != "" && net.ParseIP(c.ServerIP) == nil {
		problems = append(problems, fmt.Sprintf("serverIP %q is not an IP address", c.ServerIP))
	}
	switch c.ExternalScheme {
	case "http", "https":
	default:
		problems = append(problems, fmt.Sprintf("externalScheme must be http or https, got %q", c.ExternalScheme))
	}
	if c.PortBindTimeout <= 0 {
		problems = append(problems, "portBindTimeout must be positive")
	}
	if c.Monitor.Interval < 0 {
		problems = append(problems, "monitor.interval must not be negative")
	}
	if c.Monitor.MetricsLogPath != "" && !filepath.IsAbs(c.Monitor.MetricsLogPath) {
		problems = append(problems, fmt.Sprintf("monitor.metricsLogPath must be absolute, got %q", c.Monitor.MetricsLogPath))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
