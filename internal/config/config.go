// Package config loads server configuration from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Jeux server. The listen port is
// deliberately absent: it comes from the mandatory -p command line flag.
type Config struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	MaxClients  int    `yaml:"max_clients"`

	// Logging: one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// HTTP serves the websocket transport and the leaderboard page.
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig configures the optional HTTP listener.
type HTTPConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		BindAddress: "0.0.0.0",
		MaxClients:  64,
		LogLevel:    "info",
		HTTP: HTTPConfig{
			Enabled:     false,
			BindAddress: "0.0.0.0",
			Port:        8080,
		},
	}
}

// Load reads config from a YAML file, applying defaults for anything the
// file does not set. A missing file is not an error: defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.MaxClients <= 0 {
		return cfg, fmt.Errorf("config %s: max_clients must be positive, got %d", path, cfg.MaxClients)
	}

	return cfg, nil
}

// SlogLevel maps the configured log level name onto a slog level.
// Unknown names fall back to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
