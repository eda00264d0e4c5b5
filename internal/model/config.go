package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Missing-body policies. MissingBodyDrop silently discards an envelope
// without a body; MissingBodyError reports it to the caller.
const (
	MissingBodyDrop  = "drop"
	MissingBodyError = "error"
)

// DefaultTable is the ServiceNow table used when none is configured.
const DefaultTable = "change_request"

// defaultHealthIntervalSec is how often an instance is probed when the
// configuration does not say otherwise.
const defaultHealthIntervalSec = 60

// AuthConfig holds the basic-auth credentials for an instance.
type AuthConfig struct {
	Username string `mapstructure:"username" yaml:"username"`

	// Password may be left empty; it is then read from the system keyring.
	Password string `mapstructure:"password" yaml:"password"`
}

// AdapterConfig is the property bundle of a single adapter instance.
type AdapterConfig struct {
	// ID tags every event and log line produced by the instance.
	ID string `mapstructure:"id" yaml:"id"`

	// Name is an optional human-readable label.
	Name string `mapstructure:"name" yaml:"name"`

	// URL is the root URL of the ServiceNow instance.
	URL string `mapstructure:"url" yaml:"url"`

	Auth AuthConfig `mapstructure:"auth" yaml:"auth"`

	// Table is the target resource (ServiceNow table) name.
	Table string `mapstructure:"table" yaml:"table"`

	// Enabled controls whether the instance is health-checked by the poller.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// HealthIntervalSec is the delay between periodic health checks.
	HealthIntervalSec int `mapstructure:"health_interval_sec" yaml:"health_interval_sec"`

	// MissingBody selects what happens to a response without a body
	// (MissingBodyDrop or MissingBodyError).
	MissingBody string `mapstructure:"missing_body" yaml:"missing_body"`
}

// LogConfig selects the log output format and verbosity.
type LogConfig struct {
	Env   string `mapstructure:"env" yaml:"env"`
	Level string `mapstructure:"level" yaml:"level"`
}

// StoreConfig locates the local SQLite database.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Instances []AdapterConfig `mapstructure:"instances" yaml:"instances"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// Instance returns the configuration of the instance with the given ID.
func (c *AppConfig) Instance(id string) (AdapterConfig, bool) {
	for _, inst := range c.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return AdapterConfig{}, false
}

// Validate reports configuration errors that would prevent an instance
// from being constructed.
func (c AdapterConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("instance id is required")
	}
	if c.URL == "" {
		return fmt.Errorf("instance %s: url is required", c.ID)
	}
	switch c.MissingBody {
	case "", MissingBodyDrop, MissingBodyError:
	default:
		return fmt.Errorf(
			"instance %s: unknown missing_body policy %q", c.ID, c.MissingBody,
		)
	}
	return nil
}

// configDir returns ~/.config/changeadapter, falling back to the
// working directory when the home directory is unknown.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "changeadapter")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/changeadapter/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Instances: []AdapterConfig{},
		Log: LogConfig{
			Env:   "production",
			Level: "info",
		},
		Store: StoreConfig{
			Path: filepath.Join(configDir(), "adapter.db"),
		},
		Metrics: MetricsConfig{
			Addr: ":9108",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with CHANGEADAPTER_ override file values
// (e.g. CHANGEADAPTER_LOG_LEVEL). If the file does not exist, the defaults
// are returned.
func LoadConfig(path string) (*AppConfig, error) {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CHANGEADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.env", def.Log.Env)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("store.path", def.Store.Path)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if _, ok := err.(*os.PathError); !ok && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := def
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if inst.Table == "" {
			inst.Table = DefaultTable
		}
		if inst.HealthIntervalSec <= 0 {
			inst.HealthIntervalSec = defaultHealthIntervalSec
		}
		if inst.MissingBody == "" {
			inst.MissingBody = MissingBodyDrop
		}
		if !inst.Enabled && !enabledSet(v, i) {
			inst.Enabled = true
		}
		if err := inst.Validate(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	return cfg, nil
}

// enabledSet reports whether the i-th instance spells out "enabled".
// Unmarshal turns a missing bool into false, which must not disable it.
func enabledSet(v *viper.Viper, i int) bool {
	raw, ok := v.Get("instances").([]any)
	if !ok || i >= len(raw) {
		return false
	}
	m, ok := raw[i].(map[string]any)
	if !ok {
		return false
	}
	_, ok = m["enabled"]
	return ok
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("instances", cfg.Instances)
	v.Set("log", cfg.Log)
	v.Set("store", cfg.Store)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
