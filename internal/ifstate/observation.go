// Package ifstate samples the IPv4 addresses bound to the host's network
// interfaces and tracks the last observation that was applied.
package ifstate

import (
	"net/netip"
	"sort"
)

// Interface is one local network interface and the host addresses bound to it.
type Interface struct {
	MAC    string
	Device string
	// Addrs holds /32 host prefixes in the order they were sampled.
	Addrs []netip.Prefix
}

// Observation is a point-in-time sample of interface bindings, ordered by MAC.
type Observation []Interface

// NewObservation returns an Observation built from ifaces, sorted by MAC.
// ifaces is not modified.
func NewObservation(ifaces ...Interface) Observation {
	obs := Observation(ifaces).Clone()
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].MAC < obs[j].MAC })
	return obs
}

// IsEmpty reports whether the observation has no interfaces or no addresses.
func (o Observation) IsEmpty() bool {
	for _, iface := range o {
		if len(iface.Addrs) > 0 {
			return false
		}
	}
	return true
}

// AddrCount returns the total number of addresses across all interfaces.
func (o Observation) AddrCount() int {
	n := 0
	for _, iface := range o {
		n += len(iface.Addrs)
	}
	return n
}

// Equal reports whether o and other hold the same interfaces with the same
// addresses in the same order.
func (o Observation) Equal(other Observation) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		a, b := o[i], other[i]
		if a.MAC != b.MAC || a.Device != b.Device || len(a.Addrs) != len(b.Addrs) {
			return false
		}
		for j := range a.Addrs {
			if a.Addrs[j] != b.Addrs[j] {
				return false
			}
		}
	}
	return true
}

// Clone returns a deep copy of o.
func (o Observation) Clone() Observation {
	if o == nil {
		return nil
	}
	out := make(Observation, len(o))
	for i, iface := range o {
		out[i] = Interface{
			MAC:    iface.MAC,
			Device: iface.Device,
			Addrs:  append([]netip.Prefix(nil), iface.Addrs...),
		}
	}
	return out
}
