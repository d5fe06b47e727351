// Package config holds the top-level scxtcp configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/scx-projects/scx-tcp/internal/tcpclient"
	"github.com/scx-projects/scx-tcp/internal/tcpserver"
	"github.com/scx-projects/scx-tcp/internal/tlsctx"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultListen is the default listen address.
	DefaultListen = "127.0.0.1:8899"
)

// Config aggregates the subsystem configurations. It is populated from a
// YAML file via Parse, or from Default when no file is given.
type Config struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// Listen is the address the server binds.
	// Default: 127.0.0.1:8899
	Listen string `yaml:"listen"`

	Server tcpserver.Options `yaml:"server"`
	TLS    tlsctx.Config     `yaml:"tls"`
	Client tcpclient.Config  `yaml:"client"`
}

// Default returns a Config with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	c.Server.ApplyDefaults()
	c.TLS.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	if c.Listen == "" {
		return errors.New("config: listen is required")
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	return nil
}

// Parse reads a YAML configuration file, applies defaults and validates it.
func Parse(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load parses path, or returns Default when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Parse(path)
}
