// Package metrics exposes vipsync counters in the Prometheus format.
package metrics

import (
	"errors"
	"net"
	"time"
)

// DefaultReadHeaderTimeout bounds how long the metrics listener waits for
// request headers.
const DefaultReadHeaderTimeout = 5 * time.Second

// Config holds the configuration for the metrics listener.
type Config struct {
	// ListenAddr is the host:port the /metrics endpoint is served on.
	// Default: empty (listener disabled; counters are still maintained).
	ListenAddr string `yaml:"listen_addr"`

	// ReadHeaderTimeout bounds header reads on the listener.
	// Default: 5s
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.ReadHeaderTimeout < 0 {
		return errors.New("metrics: config: ReadHeaderTimeout must not be negative")
	}
	if c.ListenAddr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		return errors.New("metrics: config: ListenAddr must be host:port")
	}
	return nil
}
