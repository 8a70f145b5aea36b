package hostroute

import (
	"fmt"
	"net"
	"net/netip"
	"sort"
	"strings"

	"github.com/apparentlymart/go-cidr/cidr"
)

// PeerSet maps an interface device index ("1", "2", ...) to the peer
// prefixes reachable through that interface.
type PeerSet map[string][]netip.Prefix

// ParsePeers converts raw peer lists keyed by device index into a PeerSet.
// Entries may be prefixes or bare IPv4 addresses; bare addresses become /32
// host prefixes. Blank entries are ignored.
func ParsePeers(raw map[string][]string) (PeerSet, error) {
	peers := make(PeerSet, len(raw))
	for idx, entries := range raw {
		idx = strings.TrimSpace(idx)
		if idx == "" {
			return nil, fmt.Errorf("hostroute: parse peers: empty device index")
		}
		for _, e := range entries {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			p, err := parsePeer(e)
			if err != nil {
				return nil, fmt.Errorf("hostroute: parse peers for device %s: %w", idx, err)
			}
			peers[idx] = append(peers[idx], p)
		}
	}
	return peers, nil
}

func parsePeer(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		if !p.Addr().Is4() {
			return netip.Prefix{}, fmt.Errorf("peer %q is not IPv4", s)
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	if !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("peer %q is not IPv4", s)
	}
	return netip.PrefixFrom(addr, 32), nil
}

// SplitList splits a comma or whitespace separated peer list.
func SplitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// For returns the peer prefixes of the given device index.
func (s PeerSet) For(deviceIndex string) []netip.Prefix {
	return s[deviceIndex]
}

// Len returns the total number of peer prefixes.
func (s PeerSet) Len() int {
	n := 0
	for _, p := range s {
		n += len(p)
	}
	return n
}

// DeviceIndexes returns the configured device indexes in sorted order.
func (s PeerSet) DeviceIndexes() []string {
	out := make([]string, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	sort.Strings(out)
	return out
}

// Gateway returns the address a VPC reserves for the router of subnet,
// which is the network address plus one.
func Gateway(subnet netip.Prefix) (netip.Addr, error) {
	if !subnet.IsValid() || !subnet.Addr().Is4() {
		return netip.Addr{}, fmt.Errorf("hostroute: gateway: invalid IPv4 subnet %q", subnet)
	}
	subnet = subnet.Masked()
	ipnet := &net.IPNet{
		IP:   net.IP(subnet.Addr().AsSlice()),
		Mask: net.CIDRMask(subnet.Bits(), 32),
	}
	ip, err := cidr.Host(ipnet, 1)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("hostroute: gateway for %s: %w", subnet, err)
	}
	gw, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, fmt.Errorf("hostroute: gateway for %s: invalid address %v", subnet, ip)
	}
	return gw.Unmap(), nil
}
