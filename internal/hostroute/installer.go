package hostroute

import (
	"log/slog"
	"net/netip"
	"sync"

	"github.com/plexsphere/vipsync/internal/metrics"
)

// PeerInstaller installs the peer routes of each interface at most once per
// process lifetime, keyed by interface MAC.
type PeerInstaller struct {
	peers   PeerSet
	ctrl    RouteController
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	done map[string]bool
}

// NewPeerInstaller creates a PeerInstaller. m may be nil.
func NewPeerInstaller(peers PeerSet, ctrl RouteController, cfg Config, m *metrics.Metrics, logger *slog.Logger) *PeerInstaller {
	return &PeerInstaller{
		peers:   peers,
		ctrl:    ctrl,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		done:    make(map[string]bool),
	}
}

// Installed reports whether the interface with the given MAC has been
// handled.
func (p *PeerInstaller) Installed(mac string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done[mac]
}

// InstallOnce installs the peer routes configured for deviceIndex on device,
// through the gateway of subnet. It returns true if an attempt was made.
// Individual route failures are logged and do not stop the remaining peers.
func (p *PeerInstaller) InstallOnce(mac, deviceIndex string, subnet netip.Prefix, device string) bool {
	if p.Installed(mac) {
		return false
	}

	prefixes := p.peers.For(deviceIndex)
	if len(prefixes) == 0 {
		p.markDone(mac)
		return false
	}

	gw, err := Gateway(subnet)
	if err != nil {
		p.logger.Error("cannot derive peer gateway",
			"component", "hostroute",
			"mac", mac,
			"device", device,
			"subnet", subnet.String(),
			"error", err,
		)
		p.metrics.ObservePeerRoute(metrics.OutcomeError)
		p.finish(mac, false)
		return true
	}

	ok := true
	for _, dst := range prefixes {
		if err := p.ctrl.AddOnlinkRoute(dst, gw, device); err != nil {
			ok = false
			p.metrics.ObservePeerRoute(metrics.OutcomeError)
			p.logger.Error("peer route install failed",
				"component", "hostroute",
				"mac", mac,
				"device", device,
				"dst", dst.String(),
				"gateway", gw.String(),
				"error", err,
			)
			continue
		}
		p.metrics.ObservePeerRoute(metrics.OutcomeSuccess)
	}

	p.logger.Info("peer routes processed",
		"component", "hostroute",
		"mac", mac,
		"device", device,
		"device_index", deviceIndex,
		"gateway", gw.String(),
		"peers", len(prefixes),
		"ok", ok,
	)
	p.finish(mac, ok)
	return true
}

func (p *PeerInstaller) finish(mac string, ok bool) {
	if !ok && p.cfg.RetryOnFailure {
		return
	}
	p.markDone(mac)
}

func (p *PeerInstaller) markDone(mac string) {
	p.mu.Lock()
	p.done[mac] = true
	p.mu.Unlock()
}
