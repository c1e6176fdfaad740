// ABOUTME: Configuration loading and parsing for relaydeck-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Default timing values for the device liveness sweep.
const (
	DefaultSweepInterval    = 30 * time.Second
	DefaultHeartbeatTimeout = 60 * time.Second
)

// Config represents the complete relaydeck-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Devices  DevicesConfig  `yaml:"devices"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DevicesConfig holds device liveness timing configuration.
// The heartbeat timeout must be strictly greater than the sweep interval,
// so a device always survives at least one missed heartbeat before eviction.
type DevicesConfig struct {
	SweepInterval    time.Duration `yaml:"-"`
	HeartbeatTimeout time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SweepIntervalRaw    string `yaml:"sweep_interval"`
	HeartbeatTimeoutRaw string `yaml:"heartbeat_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in timing defaults for fields left unset.
func (c *Config) applyDefaults() {
	if c.Devices.SweepInterval == 0 {
		c.Devices.SweepInterval = DefaultSweepInterval
	}
	if c.Devices.HeartbeatTimeout == 0 {
		c.Devices.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Devices.SweepInterval <= 0 {
		return fmt.Errorf("devices.sweep_interval must be positive")
	}

	// A timeout at or below the sweep interval would evict devices that
	// simply haven't had a chance to heartbeat yet.
	if c.Devices.HeartbeatTimeout <= c.Devices.SweepInterval {
		return fmt.Errorf("devices.heartbeat_timeout (%s) must be greater than devices.sweep_interval (%s)",
			c.Devices.HeartbeatTimeout, c.Devices.SweepInterval)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Devices.SweepIntervalRaw != "" {
		cfg.Devices.SweepInterval, err = time.ParseDuration(cfg.Devices.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing sweep_interval %q: %w", cfg.Devices.SweepIntervalRaw, err)
		}
	}

	if cfg.Devices.HeartbeatTimeoutRaw != "" {
		cfg.Devices.HeartbeatTimeout, err = time.ParseDuration(cfg.Devices.HeartbeatTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing heartbeat_timeout %q: %w", cfg.Devices.HeartbeatTimeoutRaw, err)
		}
	}

	return nil
}
