package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	gderrors "github.com/odvcencio/geodash/pkg/errors"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBridgeTimeout   = 60 * time.Second
	DefaultCloseTimeout    = 5 * time.Second
	DefaultOffloadWorkers  = 8
	DefaultInboxSize       = 64
	DefaultListConcurrency = 4
	DefaultEEBaseURL       = "https://earthengine.googleapis.com/v1"
	DefaultEERequestRate   = 10.0
	DefaultEEBurst         = 20
	DefaultEEMaxRetries    = 3
	DefaultRequestTimeout  = 2 * time.Minute
	DefaultBaseRemotePath  = "/home/sepal-user"
	DefaultDriveBaseURL    = "https://www.googleapis.com/drive/v3"
	DefaultDrivePageSize   = 1000
	DefaultModule          = "default"
	DefaultBusBackend      = BusBackendMemory
	DefaultSubjectPrefix   = "geodash"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultServiceName     = "geodash"
)

// Bus backends
const (
	BusBackendMemory = "memory"
	BusBackendNATS   = "nats"
)

// Config represents the complete geodash configuration
type Config struct {
	Bridge      BridgeConfig      `yaml:"bridge"`
	EarthEngine EarthEngineConfig `yaml:"earthengine"`
	Sepal       SepalConfig       `yaml:"sepal"`
	Drive       DriveConfig       `yaml:"drive"`
	Session     SessionConfig     `yaml:"session"`
	Bus         BusConfig         `yaml:"bus"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// BridgeConfig controls the background loop owned by each bridge.
type BridgeConfig struct {
	// DefaultTimeout bounds blocking calls that do not pass their own timeout.
	DefaultTimeout time.Duration `yaml:"default_timeout"`
	// CloseTimeout bounds how long Close waits for the loop to drain.
	CloseTimeout time.Duration `yaml:"close_timeout"`
	// OffloadWorkers caps concurrent legacy (blocking) SDK calls.
	OffloadWorkers int `yaml:"offload_workers"`
	// InboxSize is the buffer of the loop's job inbox.
	InboxSize int `yaml:"inbox_size"`
	// ListConcurrency caps concurrent folder listings during recursive asset walks.
	ListConcurrency int `yaml:"list_concurrency"`
}

// EarthEngineConfig configures the REST client for the compute backend.
type EarthEngineConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Project           string        `yaml:"project"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	// CredentialsPath is the local credentials file used by the single-tenant path.
	CredentialsPath string `yaml:"credentials_path"`
}

// SepalConfig configures the bulk-storage client.
type SepalConfig struct {
	Host           string        `yaml:"host"`
	BaseRemotePath string        `yaml:"base_remote_path"`
	InsecureHosts  []string      `yaml:"insecure_hosts"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DriveConfig configures the remote-drive client.
type DriveConfig struct {
	BaseURL  string `yaml:"base_url"`
	PageSize int    `yaml:"page_size"`
}

// SessionConfig configures the session registry.
type SessionConfig struct {
	DefaultModule string `yaml:"default_module"`
	// TestMode builds authentication headers from the environment instead of the connection.
	TestMode bool `yaml:"test_mode"`
}

// BusConfig selects the message bus used for session lifecycle events.
type BusConfig struct {
	Backend       string `yaml:"backend"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	Tracing     bool   `yaml:"tracing"`
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			DefaultTimeout:  DefaultBridgeTimeout,
			CloseTimeout:    DefaultCloseTimeout,
			OffloadWorkers:  DefaultOffloadWorkers,
			InboxSize:       DefaultInboxSize,
			ListConcurrency: DefaultListConcurrency,
		},
		EarthEngine: EarthEngineConfig{
			BaseURL:           DefaultEEBaseURL,
			RequestsPerSecond: DefaultEERequestRate,
			Burst:             DefaultEEBurst,
			MaxRetries:        DefaultEEMaxRetries,
			RequestTimeout:    DefaultRequestTimeout,
			CredentialsPath:   defaultCredentialsPath(),
		},
		Sepal: SepalConfig{
			BaseRemotePath: DefaultBaseRemotePath,
			InsecureHosts:  []string{"host.docker.internal"},
			RequestTimeout: DefaultRequestTimeout,
		},
		Drive: DriveConfig{
			BaseURL:  DefaultDriveBaseURL,
			PageSize: DefaultDrivePageSize,
		},
		Session: SessionConfig{
			DefaultModule: DefaultModule,
		},
		Bus: BusConfig{
			Backend:       DefaultBusBackend,
			SubjectPrefix: DefaultSubjectPrefix,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
	}
}

// defaultCredentialsPath mirrors where the hosting platform drops the
// earth engine credentials for the local user.
func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	name := ".config/earthengine/sepal_credentials"
	if strings.Contains(filepath.Base(home), "sepal-user") {
		name = ".config/earthengine/credentials"
	}
	return filepath.Join(home, name)
}

// Load loads configuration from default locations with proper precedence
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".geodash", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, gderrors.Wrap(err, gderrors.ErrCodeConfigLoad, "loading user config")
		}
	}

	projectConfigPath := filepath.Join(".", ".geodash", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, gderrors.Wrap(err, gderrors.ErrCodeConfigLoad, "loading project config")
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		return nil, gderrors.Wrap(err, gderrors.ErrCodeConfigLoad, fmt.Sprintf("loading config from %s", path))
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SEPAL_HOST"); v != "" {
		cfg.Sepal.Host = v
	}
	if val, ok := envBool("SOLARA_TEST"); ok {
		cfg.Session.TestMode = val
	}
	if v := os.Getenv("GEODASH_EE_PROJECT"); v != "" {
		cfg.EarthEngine.Project = v
	}
	if v := os.Getenv("GEODASH_EE_CREDENTIALS"); v != "" {
		cfg.EarthEngine.CredentialsPath = v
	}
	if v := os.Getenv("GEODASH_BRIDGE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bridge.DefaultTimeout = d
		}
	}
	if v := os.Getenv("GEODASH_OFFLOAD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.OffloadWorkers = n
		}
	}
	if v := os.Getenv("GEODASH_BUS_URL"); v != "" {
		cfg.Bus.URL = v
		cfg.Bus.Backend = BusBackendNATS
	}
	if v := os.Getenv("GEODASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GEODASH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if val, ok := envBool("GEODASH_TRACING"); ok {
		cfg.Telemetry.Tracing = val
	}
}

// ApplyEnvOverridesForTest exposes env override logic for tests without file I/O.
func ApplyEnvOverridesForTest(cfg *Config) {
	applyEnvOverrides(cfg)
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

// Validate checks the configuration for values the runtime cannot work with
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return gderrors.Newf(gderrors.ErrCodeConfigInvalid, format, args...)
	}

	if c.Bridge.DefaultTimeout <= 0 {
		return invalid("bridge.default_timeout must be positive, got %s", c.Bridge.DefaultTimeout)
	}
	if c.Bridge.CloseTimeout <= 0 {
		return invalid("bridge.close_timeout must be positive, got %s", c.Bridge.CloseTimeout)
	}
	if c.Bridge.OffloadWorkers < 1 {
		return invalid("bridge.offload_workers must be at least 1, got %d", c.Bridge.OffloadWorkers)
	}
	if c.Bridge.InboxSize < 0 {
		return invalid("bridge.inbox_size cannot be negative")
	}
	if c.Bridge.ListConcurrency < 1 {
		return invalid("bridge.list_concurrency must be at least 1, got %d", c.Bridge.ListConcurrency)
	}
	if strings.TrimSpace(c.EarthEngine.BaseURL) == "" {
		return invalid("earthengine.base_url is required")
	}
	if c.EarthEngine.RequestsPerSecond <= 0 {
		return invalid("earthengine.requests_per_second must be positive")
	}
	if c.EarthEngine.MaxRetries < 0 {
		return invalid("earthengine.max_retries cannot be negative")
	}
	switch c.Bus.Backend {
	case BusBackendMemory:
	case BusBackendNATS:
		if strings.TrimSpace(c.Bus.URL) == "" {
			return invalid("bus.url is required for the nats backend")
		}
	default:
		return invalid("bus.backend must be %q or %q, got %q", BusBackendMemory, BusBackendNATS, c.Bus.Backend)
	}
	if strings.TrimSpace(c.Session.DefaultModule) == "" {
		return invalid("session.default_module is required")
	}
	return nil
}

// IsInsecureHost reports whether TLS verification is disabled for the configured sepal host.
func (c SepalConfig) IsInsecureHost() bool {
	for _, h := range c.InsecureHosts {
		if strings.EqualFold(strings.TrimSpace(h), c.Host) {
			return true
		}
	}
	return false
}
