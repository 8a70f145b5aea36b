//go:build linux

package hostroute

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NetlinkRouteController implements RouteController using Linux netlink.
type NetlinkRouteController struct {
	logger *slog.Logger
}

// NewNetlinkRouteController returns a new NetlinkRouteController.
func NewNetlinkRouteController(logger *slog.Logger) *NetlinkRouteController {
	return &NetlinkRouteController{logger: logger}
}

// AddOnlinkRoute adds a static route for dst via gw on iface with the
// onlink next-hop flag set.
// Idempotent: adding an existing route returns nil.
func (c *NetlinkRouteController) AddOnlinkRoute(dst netip.Prefix, gw netip.Addr, iface string) error {
	if !dst.IsValid() || !gw.IsValid() {
		return fmt.Errorf("hostroute: add route: invalid destination %q or gateway %q", dst, gw)
	}

	link, err := netlink.LinkByName(iface)
	if err != nil {
		return fmt.Errorf("hostroute: add route: lookup interface %q: %w", iface, err)
	}

	dst = dst.Masked()
	route := &netlink.Route{
		LinkIndex: link.Attrs().Index,
		Dst: &net.IPNet{
			IP:   net.IP(dst.Addr().AsSlice()),
			Mask: net.CIDRMask(dst.Bits(), dst.Addr().BitLen()),
		},
		Gw:       net.IP(gw.AsSlice()),
		Flags:    int(netlink.FLAG_ONLINK),
		Protocol: unix.RTPROT_STATIC,
	}

	if err := netlink.RouteAdd(route); err != nil {
		if errors.Is(err, unix.EEXIST) {
			c.logger.Debug("peer route already exists, idempotent success",
				"component", "hostroute",
				"dst", dst.String(),
				"gateway", gw.String(),
				"interface", iface,
			)
			return nil
		}
		return fmt.Errorf("hostroute: add route %s via %s dev %s: %w", dst, gw, iface, err)
	}

	c.logger.Debug("peer route added",
		"component", "hostroute",
		"dst", dst.String(),
		"gateway", gw.String(),
		"interface", iface,
	)
	return nil
}
