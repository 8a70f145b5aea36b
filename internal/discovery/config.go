package discovery

import (
	"errors"
	"time"

	"github.com/plexsphere/vipsync/internal/routetable"
)

// Config holds the configuration for the discovery bootstrap.
type Config struct {
	// RouteTableFilter selects the route tables to manage: "ALL", a tag key,
	// or "key=value".
	// Default: "ALL"
	RouteTableFilter string `yaml:"route_table_filter"`

	// SubnetLoopbacks enables subnet-aware resolution: host addresses are
	// advertised as the VPC subnet that contains them.
	// Default: false
	SubnetLoopbacks bool `yaml:"subnet_loopbacks"`

	// SubnetMissFallback advertises the host /32 for an address that lies in
	// no cataloged subnet instead of skipping it.
	// Default: false
	SubnetMissFallback bool `yaml:"subnet_miss_fallback"`

	// Region overrides the region reported by the instance identity document.
	Region string `yaml:"region"`

	// MetadataTimeout bounds reading the instance identity from the metadata
	// service.
	// Default: 5s
	MetadataTimeout time.Duration `yaml:"metadata_timeout"`

	// APITimeout bounds each EC2 describe sequence.
	// Default: 10s
	APITimeout time.Duration `yaml:"api_timeout"`
}

// DefaultMetadataTimeout is the default metadata read timeout.
const DefaultMetadataTimeout = 5 * time.Second

// DefaultAPITimeout is the default EC2 describe timeout.
const DefaultAPITimeout = 10 * time.Second

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.RouteTableFilter == "" {
		c.RouteTableFilter = routetable.MatchAll
	}
	if c.MetadataTimeout == 0 {
		c.MetadataTimeout = DefaultMetadataTimeout
	}
	if c.APITimeout == 0 {
		c.APITimeout = DefaultAPITimeout
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if _, err := routetable.ParseFilter(c.RouteTableFilter); err != nil {
		return errors.New("discovery: config: " + err.Error())
	}
	if c.MetadataTimeout <= 0 {
		return errors.New("discovery: config: MetadataTimeout must be positive")
	}
	if c.APITimeout <= 0 {
		return errors.New("discovery: config: APITimeout must be positive")
	}
	return nil
}
