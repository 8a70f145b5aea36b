//go:build linux

package ifstate

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"slices"

	"github.com/vishvananda/netlink"
)

// linkLister is the netlink surface used by NetlinkSampler.
type linkLister interface {
	LinkList() ([]netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

type netlinkHandle struct{}

func (netlinkHandle) LinkList() ([]netlink.Link, error) { return netlink.LinkList() }

func (netlinkHandle) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// NetlinkSampler implements Sampler using Linux netlink.
type NetlinkSampler struct {
	exclude []string
	nl      linkLister
}

// NewNetlinkSampler returns a sampler skipping the named interfaces. A nil
// exclude list means DefaultExclude.
func NewNetlinkSampler(exclude []string) *NetlinkSampler {
	if exclude == nil {
		exclude = DefaultExclude
	}
	return &NetlinkSampler{exclude: exclude, nl: netlinkHandle{}}
}

// Sample lists every non-loopback, non-excluded link with a hardware address
// and collects its globally scoped IPv4 addresses as /32 prefixes. Links
// without such addresses are omitted.
func (s *NetlinkSampler) Sample(ctx context.Context) (Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	links, err := s.nl.LinkList()
	if err != nil {
		return nil, fmt.Errorf("ifstate: list links: %w", err)
	}

	var ifaces []Interface
	for _, link := range links {
		attrs := link.Attrs()
		if attrs == nil || attrs.Flags&net.FlagLoopback != 0 || len(attrs.HardwareAddr) == 0 {
			continue
		}
		if slices.Contains(s.exclude, attrs.Name) {
			continue
		}

		addrs, err := s.nl.AddrList(link, netlink.FAMILY_V4)
		if err != nil {
			return nil, fmt.Errorf("ifstate: list addresses of %s: %w", attrs.Name, err)
		}

		iface := Interface{MAC: attrs.HardwareAddr.String(), Device: attrs.Name}
		for _, a := range addrs {
			if a.IPNet == nil || a.Scope != int(netlink.SCOPE_UNIVERSE) {
				continue
			}
			ip, ok := netip.AddrFromSlice(a.IPNet.IP)
			if !ok {
				continue
			}
			ip = ip.Unmap()
			if !ip.Is4() {
				continue
			}
			iface.Addrs = append(iface.Addrs, netip.PrefixFrom(ip, 32))
		}
		if len(iface.Addrs) > 0 {
			ifaces = append(ifaces, iface)
		}
	}
	return NewObservation(ifaces...), nil
}
