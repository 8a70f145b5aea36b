// Package hostroute installs static on-link routes towards configured peer
// prefixes in the host's kernel routing table.
package hostroute

import "net/netip"

// RouteController abstracts kernel route insertion for testability.
// AddOnlinkRoute must be idempotent: adding a route that already exists returns nil.
type RouteController interface {
	// AddOnlinkRoute adds a route for dst via gw on iface. The gateway is
	// treated as directly reachable on iface regardless of the addresses
	// configured on it.
	AddOnlinkRoute(dst netip.Prefix, gw netip.Addr, iface string) error
}
