// Package agent holds the top-level vipsync configuration.
package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plexsphere/vipsync/internal/discovery"
	"github.com/plexsphere/vipsync/internal/hostroute"
	"github.com/plexsphere/vipsync/internal/metrics"
	"github.com/plexsphere/vipsync/internal/reconcile"
	"github.com/plexsphere/vipsync/internal/routetable"
)

const (
	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultConfigPath is the default configuration file location.
	DefaultConfigPath = "/etc/vipsync/config.yaml"
)

// AgentConfig is the top-level configuration for vipsync.
// It aggregates all subsystem configurations and is populated from
// a YAML configuration file via ParseConfig.
type AgentConfig struct {
	// LogLevel is the log level: "debug", "info", "warn", "error".
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	Discovery  discovery.Config  `yaml:"discovery"`
	RouteTable routetable.Config `yaml:"route_table"`
	PeerRoutes hostroute.Config  `yaml:"peer_routes"`
	Reconcile  reconcile.Config  `yaml:"reconcile"`
	Metrics    metrics.Config    `yaml:"metrics"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *AgentConfig) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.Discovery.ApplyDefaults()
	c.RouteTable.ApplyDefaults()
	c.Reconcile.ApplyDefaults()
	c.Metrics.ApplyDefaults()
}

// Validate checks that required fields are set and values are acceptable.
func (c *AgentConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent: config: invalid log_level %q", c.LogLevel)
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.RouteTable.Validate(); err != nil {
		return err
	}
	if err := c.PeerRoutes.Validate(); err != nil {
		return err
	}
	if err := c.Reconcile.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}

// ParseConfig reads a YAML configuration file and returns an AgentConfig.
// It applies defaults and validates the configuration.
func ParseConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig is like ParseConfig but returns a default configuration when
// path does not exist. Defaults are applied; validation is left to the
// caller so command-line overrides can be merged first.
func LoadConfig(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := &AgentConfig{}
		cfg.ApplyDefaults()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("agent: config: read %s: %w", path, err)
	}
	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: config: parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
