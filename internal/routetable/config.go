package routetable

import (
	"errors"
	"time"
)

// Config holds the configuration for route table mutation.
// It is passed to NewInstaller by value.
type Config struct {
	// WorkerTimeout bounds each per-route-table worker, covering both the
	// replace attempt and the create fallback.
	// Default: 10s
	WorkerTimeout time.Duration `yaml:"worker_timeout"`

	// MaxConcurrency caps the number of route tables mutated in parallel
	// for one destination.
	// Default: 16
	MaxConcurrency int `yaml:"max_concurrency"`

	// APIRateLimit is the sustained rate of mutating EC2 calls per second.
	// Default: 20
	APIRateLimit float64 `yaml:"api_rate_limit"`

	// APIBurst is the burst size for mutating EC2 calls.
	// Default: 40
	APIBurst int `yaml:"api_burst"`
}

// DefaultWorkerTimeout is the default per-table worker timeout.
const DefaultWorkerTimeout = 10 * time.Second

// DefaultMaxConcurrency is the default cap on parallel table workers.
const DefaultMaxConcurrency = 16

// DefaultAPIRateLimit is the default mutating call rate.
const DefaultAPIRateLimit = 20

// DefaultAPIBurst is the default mutating call burst.
const DefaultAPIBurst = 40

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.WorkerTimeout == 0 {
		c.WorkerTimeout = DefaultWorkerTimeout
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.APIRateLimit == 0 {
		c.APIRateLimit = DefaultAPIRateLimit
	}
	if c.APIBurst == 0 {
		c.APIBurst = DefaultAPIBurst
	}
}

// Validate checks that configuration values are acceptable.
func (c *Config) Validate() error {
	if c.WorkerTimeout <= 0 {
		return errors.New("routetable: config: WorkerTimeout must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return errors.New("routetable: config: MaxConcurrency must be positive")
	}
	if c.APIRateLimit <= 0 {
		return errors.New("routetable: config: APIRateLimit must be positive")
	}
	if c.APIBurst <= 0 {
		return errors.New("routetable: config: APIBurst must be positive")
	}
	return nil
}
