package reconcile

import (
	"errors"
	"fmt"
	"time"
)

// Mode selects whether the loop exits after its first convergence.
type Mode string

const (
	// ModeInit runs until the first converged tick that applied a route, then
	// returns.
	ModeInit Mode = "init"
	// ModeSidecar runs until the context is cancelled.
	ModeSidecar Mode = "sidecar"
)

// Config holds the configuration for the reconciliation loop.
// It is passed to NewReconciler by value.
type Config struct {
	// Interval is the time between steady-state ticks.
	// Default: 500ms
	Interval time.Duration `yaml:"interval"`

	// BootstrapRetryInterval is the pause between failed bootstrap attempts.
	// Default: 1s
	BootstrapRetryInterval time.Duration `yaml:"bootstrap_retry_interval"`

	// Mode is "init" or "sidecar".
	// Default: "init"
	Mode Mode `yaml:"mode"`

	// StateFile receives the applied observation after every converged tick.
	// Default: /var/run/vipsync/state.yaml
	StateFile string `yaml:"state_file"`

	// DisableStateFile turns off state file writes.
	DisableStateFile bool `yaml:"disable_state_file"`
}

// DefaultInterval is the default steady-state tick interval.
const DefaultInterval = 500 * time.Millisecond

// MinInterval is the smallest accepted tick interval.
const MinInterval = 100 * time.Millisecond

// DefaultBootstrapRetryInterval is the default pause between bootstrap attempts.
const DefaultBootstrapRetryInterval = time.Second

// DefaultStateFile is the default state file path.
const DefaultStateFile = "/var/run/vipsync/state.yaml"

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.BootstrapRetryInterval == 0 {
		c.BootstrapRetryInterval = DefaultBootstrapRetryInterval
	}
	if c.Mode == "" {
		c.Mode = ModeInit
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.Interval < MinInterval {
		return fmt.Errorf("reconcile: config: Interval must be at least %s", MinInterval)
	}
	if c.BootstrapRetryInterval <= 0 {
		return errors.New("reconcile: config: BootstrapRetryInterval must be positive")
	}
	switch c.Mode {
	case ModeInit, ModeSidecar:
	default:
		return fmt.Errorf("reconcile: config: unknown Mode %q", c.Mode)
	}
	return nil
}
