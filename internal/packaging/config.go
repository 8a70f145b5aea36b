// Package packaging installs vipsync as a systemd service on Linux hosts.
package packaging

import (
	"fmt"
	"path/filepath"
)

// Install locations used when InstallConfig leaves a path empty.
const (
	DefaultBinaryPath   = "/usr/local/bin/vipsync"
	DefaultConfigDir    = "/etc/vipsync"
	DefaultRunDir       = "/var/run/vipsync"
	DefaultServiceName  = "vipsync"
	DefaultUnitFilePath = "/etc/systemd/system/vipsync.service"
)

// InstallConfig describes where vipsync is installed and how the generated
// default config and unit are seeded. It is passed to NewInstaller by value.
type InstallConfig struct {
	BinaryPath   string
	ConfigDir    string
	UnitFilePath string
	ServiceName  string

	// RunDir holds the state file read by `vipsync status`. The unit grants
	// write access to it.
	RunDir string

	// RouteTableFilter and SubnetLoopbacks seed a newly written config.
	// An existing config is never rewritten.
	RouteTableFilter string
	SubnetLoopbacks  bool

	// Enable enables the unit on boot.
	Enable bool
	// Start starts the unit, or restarts it when it is already running so
	// an upgraded binary takes effect.
	Start bool
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *InstallConfig) ApplyDefaults() {
	setDefault(&c.BinaryPath, DefaultBinaryPath)
	setDefault(&c.ConfigDir, DefaultConfigDir)
	setDefault(&c.RunDir, DefaultRunDir)
	setDefault(&c.ServiceName, DefaultServiceName)
	setDefault(&c.UnitFilePath, DefaultUnitFilePath)
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// Validate checks that every path and the service name are set.
func (c *InstallConfig) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"BinaryPath", c.BinaryPath},
		{"ConfigDir", c.ConfigDir},
		{"RunDir", c.RunDir},
		{"ServiceName", c.ServiceName},
		{"UnitFilePath", c.UnitFilePath},
	} {
		if f.value == "" {
			return fmt.Errorf("packaging: config: %s is required", f.name)
		}
	}
	return nil
}

// ConfigPath returns the agent config file inside ConfigDir.
func (c *InstallConfig) ConfigPath() string {
	return filepath.Join(c.ConfigDir, "config.yaml")
}

// EnvironmentPath returns the optional EnvironmentFile of the unit, used for
// AWS credentials or region overrides.
func (c *InstallConfig) EnvironmentPath() string {
	return filepath.Join(c.ConfigDir, "environment")
}

// StateFilePath returns the state file the default config points at.
func (c *InstallConfig) StateFilePath() string {
	return filepath.Join(c.RunDir, "state.yaml")
}
