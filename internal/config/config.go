// Package config loads top-level process configuration for the data-plane
// and control-plane binaries: a YAML file with hardcoded defaults and
// environment-variable overrides, following the donor's pkg/config
// convention.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the global process configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane"`
	Composition  CompositionConfig  `yaml:"composition"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds the data-plane and admin/control-plane listen
// addresses.
type ServerConfig struct {
	DataAddress  string `yaml:"data_address"`
	AdminAddress string `yaml:"admin_address"`
}

// TelemetryConfig holds OpenTelemetry exporter settings.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// ControlPlaneConfig holds settings for the control-plane HTTP API,
// including an optional TLS certificate for the admin listener.
// JWTPublicKeyPath is parsed but not used: the API verifies no bearer tokens.
type ControlPlaneConfig struct {
	Enabled           bool   `yaml:"enabled"`
	JWTPublicKeyPath  string `yaml:"jwt_public_key_path"`
	HeartbeatInterval string `yaml:"heartbeat_interval"`
	TLSCertFile       string `yaml:"tls_cert_file"`
	TLSKeyFile        string `yaml:"tls_key_file"`
}

// CompositionConfig points at the pipeline composition file to load, and
// whether to watch it for changes. A watched change is only logged; the
// running processor keeps the composition it loaded at startup until the
// process is restarted.
type CompositionConfig struct {
	File              string `yaml:"file"`
	Watch             bool   `yaml:"watch"`
	HopCap            int    `yaml:"hop_cap"`
	EnvFile           string `yaml:"env_file"`
	RequestsPerSecond int    `yaml:"requests_per_second"`
	BurstSize         int    `yaml:"burst_size"`
}

// LoggingConfig holds the structured logger's configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from path (empty skips the file read) and
// applies environment variable overrides on top of hardcoded defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			DataAddress:  ":8090",
			AdminAddress: ":19090",
		},
		Composition: CompositionConfig{
			HopCap: 32,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("POLIS_DATA_ADDR"); v != "" {
		cfg.Server.DataAddress = v
	}
	if v := os.Getenv("POLIS_ADMIN_ADDR"); v != "" {
		cfg.Server.AdminAddress = v
	}
	if v := os.Getenv("POLIS_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("POLIS_OTLP_INSECURE"); v == "true" {
		cfg.Telemetry.Insecure = true
	}
	if v := os.Getenv("POLIS_CONTROL_PLANE_ENABLED"); v == "true" {
		cfg.ControlPlane.Enabled = true
	}
	if v := os.Getenv("POLIS_CONTROL_PLANE_TLS_CERT"); v != "" {
		cfg.ControlPlane.TLSCertFile = v
	}
	if v := os.Getenv("POLIS_CONTROL_PLANE_TLS_KEY"); v != "" {
		cfg.ControlPlane.TLSKeyFile = v
	}
	if v := os.Getenv("POLIS_COMPOSITION_FILE"); v != "" {
		cfg.Composition.File = v
	}
	if v := os.Getenv("POLIS_COMPOSITION_WATCH"); v == "true" {
		cfg.Composition.Watch = true
	}
	if v := os.Getenv("POLIS_HOP_CAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Composition.HopCap = n
		}
	}
	if v := os.Getenv("POLIS_ENV_FILE"); v != "" {
		cfg.Composition.EnvFile = v
	}
	if v := os.Getenv("POLIS_REQUESTS_PER_SECOND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Composition.RequestsPerSecond = n
		}
	}
	if v := os.Getenv("POLIS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate normalizes defaults and rejects malformed values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.DataAddress) == "" {
		c.Server.DataAddress = ":8090"
	}
	if strings.TrimSpace(c.Server.AdminAddress) == "" {
		c.Server.AdminAddress = ":19090"
	}
	if c.Composition.HopCap <= 0 {
		c.Composition.HopCap = 32
	}

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = "info"
	}
	switch level {
	case "debug", "info", "warn", "error":
		c.Logging.Level = level
	default:
		return fmt.Errorf("invalid log level %q, supported levels: debug, info, warn, error", c.Logging.Level)
	}
	return nil
}
