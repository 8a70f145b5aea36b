package hostroute

// Config holds the configuration for peer route installation.
type Config struct {
	// Peers maps an interface device index to the peer prefixes or
	// addresses routed through that interface's subnet gateway.
	Peers map[string][]string `yaml:"peers"`

	// RetryOnFailure leaves an interface eligible for another attempt on
	// the next change when any of its peer routes failed to install.
	// Default: false
	RetryOnFailure bool `yaml:"retry_on_failure"`
}

// Validate checks that the peer lists parse.
func (c *Config) Validate() error {
	_, err := ParsePeers(c.Peers)
	return err
}
