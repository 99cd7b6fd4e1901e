package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all agent configuration.
type Config struct {
	Collector CollectorConfig
	App       AppConfig
	Harvest   HarvestConfig
	Logging   LogConfig
	Server    ServerConfig
}

// CollectorConfig holds the collector endpoint settings.
type CollectorConfig struct {
	Host       string        `envconfig:"MONITOR_COLLECTOR_HOST" default:"collector.newrelic.com"`
	Port       int           `envconfig:"MONITOR_COLLECTOR_PORT" default:"80"`
	SSL        bool          `envconfig:"MONITOR_COLLECTOR_SSL" default:"false"`
	LicenseKey string        `envconfig:"MONITOR_LICENSE_KEY"`
	Encoding   string        `envconfig:"MONITOR_CONTENT_ENCODING" default:"identity"`
	Timeout    time.Duration `envconfig:"MONITOR_COLLECTOR_TIMEOUT" default:"30s"`
}

// AppConfig describes the monitored application.
type AppConfig struct {
	Names        []string `envconfig:"MONITOR_APP_NAME" default:"Go Application"`
	SettingsFile string   `envconfig:"MONITOR_SETTINGS_FILE"`
}

// HarvestConfig holds harvest loop settings.
type HarvestConfig struct {
	MaxSamples int           `envconfig:"MONITOR_HARVEST_MAX_SAMPLES" default:"100"`
	BackoffMin time.Duration `envconfig:"MONITOR_BACKOFF_MIN" default:"1s"`
	BackoffMax time.Duration `envconfig:"MONITOR_BACKOFF_MAX" default:"5m"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ServerConfig holds the sample application's HTTP and gRPC settings.
// An empty GRPCPort disables the gRPC listener.
type ServerConfig struct {
	Port           string `envconfig:"PORT" default:"8000"`
	GRPCPort       string `envconfig:"GRPC_PORT" default:"50051"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Collector: CollectorConfig{
			Host:     "collector.newrelic.com",
			Port:     80,
			Encoding: "identity",
			Timeout:  30 * time.Second,
		},
		App: AppConfig{
			Names: []string{"Go Application"},
		},
		Harvest: HarvestConfig{
			MaxSamples: 100,
			BackoffMin: time.Second,
			BackoffMax: 5 * time.Minute,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Port:           "8000",
			GRPCPort:       "50051",
			MetricsEnabled: true,
		},
	}
}

// Validate checks values envconfig cannot express as types.
func (c *Config) Validate() error {
	if c.Collector.Port <= 0 || c.Collector.Port > 65535 {
		return fmt.Errorf("invalid collector port %d", c.Collector.Port)
	}
	if c.Harvest.MaxSamples <= 0 {
		return fmt.Errorf("harvest max samples must be positive, got %d", c.Harvest.MaxSamples)
	}
	if c.Harvest.BackoffMin > c.Harvest.BackoffMax {
		return fmt.Errorf("backoff min %s exceeds max %s", c.Harvest.BackoffMin, c.Harvest.BackoffMax)
	}
	names := c.App.Names[:0]
	for _, name := range c.App.Names {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("at least one application name is required")
	}
	c.App.Names = names
	return nil
}

// LoadSettings reads a local settings file. The format follows the file
// extension: .toml, .yaml/.yml or .json. An empty path yields no settings.
func LoadSettings(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	settings := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &settings)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &settings)
	case ".json":
		err = sonic.Unmarshal(data, &settings)
	default:
		return nil, fmt.Errorf("unsupported settings format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return settings, nil
}
