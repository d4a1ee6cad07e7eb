// Package config loads the ambient settings the job engine itself doesn't
// track in the database: HTTP server timeouts, CORS default, and log
// format/destination. The managed library root is NOT here — that's
// settings.Resolver's job (DB-backed, overridable at runtime via the API).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the application configuration loaded from TOML.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Logging  LoggingConfig  `toml:"logging"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Port           string   `toml:"port"`
	Host           string   `toml:"host"`
	AllowedOrigins []string `toml:"allowed_origins"`
	ReadTimeout    int      `toml:"read_timeout_seconds"`
	WriteTimeout   int      `toml:"write_timeout_seconds"`
	IdleTimeout    int      `toml:"idle_timeout_seconds"`
}

// DatabaseConfig contains database-related configuration.
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level          string `toml:"level"`
	Format         string `toml:"format"`
	File           string `toml:"file"`
	RequestLogging bool   `toml:"request_logging"`
}

// DefaultConfig returns a configuration populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			AllowedOrigins: nil, // empty means "*", see api.corsMiddleware
			ReadTimeout:    30,
			WriteTimeout:   30,
			IdleTimeout:    120,
		},
		Database: DatabaseConfig{
			Path:           "./truetrack.db",
			MaxConnections: 10,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			File:           "",
			RequestLogging: true,
		},
	}
}

// LoadConfig loads configuration from a TOML file or creates a new file with
// defaults if one does not yet exist. It validates resulting values.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
		fmt.Printf("Created default configuration file at: %s\n", configPath)
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to a TOML file (overwriting existing).
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# TrueTrack configuration
# Ambient settings only - the managed library root is stored in the
# database and configured via PUT /settings/music-library-path, or the
# MUSIC_LIBRARY_ROOT env var.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must not be negative")
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must not be negative")
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server idle timeout must not be negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// GetAddress returns the host:port string for listening.
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}
