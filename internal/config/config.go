// Package config provides configuration loading for ergon.
//
// Configuration comes from an optional YAML file overlaid with environment
// variables. Every field has a default, so an empty environment yields a
// working configuration that stores data under ./data.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete ergon configuration.
type Config struct {
	Data          DataConfig          `koanf:"data"`
	Server        ServerConfig        `koanf:"server"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
	GitHub        GitHubConfig        `koanf:"github"`
	Sources       SourcesConfig       `koanf:"sources"`
	Watch         WatchConfig         `koanf:"watch"`
}

// DataConfig locates the data directory.
type DataConfig struct {
	Dir string `koanf:"dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"http_host"`
	Port            int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// EnableMCP mounts the MCP streamable HTTP endpoint at /mcp.
	EnableMCP bool `koanf:"enable_mcp"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or console
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	OTLPEndpoint    string `koanf:"otlp_endpoint"`
	OTLPProtocol    string `koanf:"otlp_protocol"` // grpc or http/protobuf
	OTLPInsecure    bool   `koanf:"otlp_insecure"`
}

// GitHubConfig holds defaults for github context sources.
type GitHubConfig struct {
	Token             Secret  `koanf:"token"`
	BaseURL           string  `koanf:"base_url"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// SourcesConfig restricts context sources.
type SourcesConfig struct {
	// AllowedDirs lists the host directories filesystem sources may import
	// from. Empty disables external imports.
	AllowedDirs []string `koanf:"allowed_dirs"`
}

// WatchConfig tunes the context tree watcher.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
}

// Default values.
const (
	DefaultDataDir         = "data"
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 3000
	DefaultShutdownTimeout = 10 * time.Second
	DefaultServiceName     = "ergon"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultOTLPEndpoint    = "localhost:4317"
	DefaultOTLPProtocol    = "grpc"
	DefaultGitHubRate      = 5.0
	DefaultWatchDebounce   = 250 * time.Millisecond
)

// Addr returns the host:port the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate validates the configuration.
//
// Returns an error if:
//   - The data directory is empty
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - Log format is neither json nor console
//   - Service name is empty (when telemetry is enabled)
//   - OTLP protocol is unknown (when telemetry is enabled)
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Data.Dir) == "" {
		return errors.New("data directory is required")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Logging.Format)
	}

	if c.GitHub.RequestsPerSecond < 0 {
		return errors.New("github requests per second cannot be negative")
	}

	for _, dir := range c.Sources.AllowedDirs {
		if strings.TrimSpace(dir) == "" {
			return errors.New("sources allowed_dirs cannot contain an empty entry")
		}
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when telemetry is enabled")
		}
		switch c.Observability.OTLPProtocol {
		case "grpc", "http/protobuf":
		default:
			return fmt.Errorf("invalid otlp protocol: %q (must be grpc or http/protobuf)", c.Observability.OTLPProtocol)
		}
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = DefaultDataDir
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultHost
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = DefaultServiceName
	}
	if cfg.Observability.OTLPEndpoint == "" {
		cfg.Observability.OTLPEndpoint = DefaultOTLPEndpoint
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = DefaultOTLPProtocol
	}

	if cfg.GitHub.RequestsPerSecond == 0 {
		cfg.GitHub.RequestsPerSecond = DefaultGitHubRate
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = DefaultWatchDebounce
	}
}
