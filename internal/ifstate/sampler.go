package ifstate

import "context"

// DefaultExclude lists the interfaces never sampled: the primary interface
// and loopback.
var DefaultExclude = []string{"eth0", "lo"}

// Sampler returns the current interface bindings of the host.
type Sampler interface {
	Sample(ctx context.Context) (Observation, error)
}
