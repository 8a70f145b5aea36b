// Package reconcile runs the bootstrap and steady-state loop that keeps VPC
// route tables and host peer routes in step with local interface bindings.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"runtime/debug"
	"sync"
	"time"

	"github.com/plexsphere/vipsync/internal/discovery"
	"github.com/plexsphere/vipsync/internal/ifstate"
	"github.com/plexsphere/vipsync/internal/metrics"
	"github.com/plexsphere/vipsync/internal/routetable"
)

// Bootstrapper acquires the bootstrap state. *discovery.Discoverer satisfies it.
type Bootstrapper interface {
	Discover(ctx context.Context) (*discovery.State, error)
}

// RouteInstaller applies one destination across a route table pool.
// *routetable.Installer satisfies it.
type RouteInstaller interface {
	Install(ctx context.Context, pool *routetable.Pool, eniID string, dst netip.Prefix) routetable.InstallResult
}

// PeerRouter installs the peer routes of an interface once.
// *hostroute.PeerInstaller satisfies it.
type PeerRouter interface {
	InstallOnce(mac, deviceIndex string, subnet netip.Prefix, device string) bool
}

// Reconciler bootstraps once and then applies interface changes to the
// route tables on every tick.
type Reconciler struct {
	cfg       Config
	bootstrap Bootstrapper
	sampler   ifstate.Sampler
	installer RouteInstaller
	peers     PeerRouter
	metrics   *metrics.Metrics
	logger    *slog.Logger

	tracker   *ifstate.Tracker
	ready     chan struct{}
	triggerCh chan struct{}

	mu    sync.RWMutex
	state *discovery.State
}

// NewReconciler creates a new Reconciler with the given configuration.
// Config defaults are applied automatically. m may be nil.
func NewReconciler(cfg Config, bootstrap Bootstrapper, sampler ifstate.Sampler, installer RouteInstaller, peers PeerRouter, m *metrics.Metrics, logger *slog.Logger) *Reconciler {
	cfg.ApplyDefaults()
	return &Reconciler{
		cfg:       cfg,
		bootstrap: bootstrap,
		sampler:   sampler,
		installer: installer,
		peers:     peers,
		metrics:   m,
		logger:    logger,
		tracker:   ifstate.NewTracker(),
		ready:     make(chan struct{}),
		triggerCh: make(chan struct{}, 1),
	}
}

// Ready is closed once bootstrap has succeeded.
func (r *Reconciler) Ready() <-chan struct{} {
	return r.ready
}

// State returns the bootstrap state, or nil before bootstrap succeeded.
func (r *Reconciler) State() *discovery.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Applied returns a copy of the last applied observation.
func (r *Reconciler) Applied() ifstate.Observation {
	return r.tracker.Applied()
}

// TriggerResync requests that every current address be re-applied on an
// immediate tick. Multiple rapid calls are coalesced.
func (r *Reconciler) TriggerResync() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

// Run bootstraps and then ticks until ctx is cancelled. In init mode Run
// returns nil after the first converged tick that applied at least one route.
// Otherwise it returns ctx.Err().
func (r *Reconciler) Run(ctx context.Context) error {
	if r.bootstrap == nil || r.sampler == nil || r.installer == nil || r.peers == nil {
		return errors.New("reconcile: missing collaborator")
	}

	r.logger.Info("reconciler started",
		"component", "reconcile",
		"mode", string(r.cfg.Mode),
		"interval", r.cfg.Interval,
	)

	state, err := r.runBootstrap(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
	r.metrics.SetRouteTables(state.Pool.Len())
	close(r.ready)

	// First tick runs immediately.
	if done, err := r.step(ctx, state); done {
		return err
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped", "component", "reconcile")
			return ctx.Err()

		case <-ticker.C:
			if done, err := r.step(ctx, state); done {
				return err
			}

		case <-r.triggerCh:
			r.logger.Info("resync requested", "component", "reconcile")
			r.tracker.Commit(nil)
			if done, err := r.step(ctx, state); done {
				return err
			}
			ticker.Reset(r.cfg.Interval)
		}
	}
}

// step runs one tick and reports whether Run should return.
func (r *Reconciler) step(ctx context.Context, state *discovery.State) (bool, error) {
	res := r.safeTick(ctx, state)
	r.metrics.ObserveTick(res.Outcome.String())

	switch res.Outcome {
	case OutcomeFatal:
		return true, ctx.Err()
	case OutcomeRetry:
		r.logger.Warn("tick failed",
			"component", "reconcile",
			"error", res.Err,
		)
	case OutcomeConverged:
		if r.cfg.Mode != ModeInit {
			break
		}
		if res.Routes == 0 {
			r.logger.Warn("converged without a routable address, waiting for a change",
				"component", "reconcile",
				"skipped", res.Skipped,
			)
			break
		}
		r.logger.Info("initial convergence reached, exiting",
			"component", "reconcile",
			"routes", res.Routes,
			"failed_tables", res.FailedTables,
		)
		return true, nil
	}
	return false, nil
}

// runBootstrap retries discovery from scratch until it succeeds or ctx is
// cancelled.
func (r *Reconciler) runBootstrap(ctx context.Context) (*discovery.State, error) {
	for attempt := 1; ; attempt++ {
		state, err := r.safeDiscover(ctx)
		if err == nil {
			r.metrics.ObserveBootstrap(metrics.OutcomeSuccess)
			r.logger.Info("bootstrap complete",
				"component", "reconcile",
				"attempt", attempt,
				"instance_id", state.Identity.InstanceID,
				"route_tables", state.Pool.Len(),
			)
			return state, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.metrics.ObserveBootstrap(metrics.OutcomeError)
		r.logger.Warn("bootstrap failed, retrying",
			"component", "reconcile",
			"attempt", attempt,
			"retry_in", r.cfg.BootstrapRetryInterval,
			"error", err,
		)

		timer := time.NewTimer(r.cfg.BootstrapRetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (r *Reconciler) safeDiscover(ctx context.Context) (state *discovery.State, err error) {
	defer func() {
		if v := recover(); v != nil {
			state, err = nil, fmt.Errorf("bootstrap panicked: %v\n%s", v, debug.Stack())
		}
	}()
	state, err = r.bootstrap.Discover(ctx)
	if err == nil && state == nil {
		err = errors.New("reconcile: bootstrap returned no state")
	}
	return state, err
}

// safeTick calls tick with panic recovery.
func (r *Reconciler) safeTick(ctx context.Context, state *discovery.State) (res TickResult) {
	defer func() {
		if v := recover(); v != nil {
			res = TickResult{Outcome: OutcomeRetry, Err: fmt.Errorf("tick panicked: %v\n%s", v, debug.Stack())}
		}
	}()
	return r.tick(ctx, state)
}

type routeKey struct {
	eni string
	dst netip.Prefix
}

// tick performs one sample → diff → apply → commit pass.
func (r *Reconciler) tick(ctx context.Context, state *discovery.State) TickResult {
	obs, err := r.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return TickResult{Outcome: OutcomeFatal, Err: ctx.Err()}
		}
		return TickResult{Outcome: OutcomeRetry, Err: fmt.Errorf("reconcile: sample interfaces: %w", err)}
	}
	if obs.IsEmpty() {
		return TickResult{Outcome: OutcomeIdle}
	}
	if !r.tracker.Changed(obs) {
		return TickResult{Outcome: OutcomeUnchanged}
	}

	start := time.Now()
	res := TickResult{Outcome: OutcomeConverged}
	applied := make(map[routeKey]bool)

	for _, iface := range obs {
		info, ok := state.Identity.Interface(iface.MAC)
		if !ok {
			r.metrics.IncUnknownInterface()
			r.logger.Warn("interface not present at bootstrap, skipping",
				"component", "reconcile",
				"mac", iface.MAC,
				"device", iface.Device,
			)
			res.Skipped += len(iface.Addrs)
			continue
		}

		for _, addr := range iface.Addrs {
			dst, ok := r.resolve(state, iface, addr)
			if !ok {
				res.Skipped++
				continue
			}
			key := routeKey{eni: info.ENIID, dst: dst}
			if applied[key] {
				continue
			}
			applied[key] = true

			out := r.installer.Install(ctx, state.Pool, info.ENIID, dst)
			res.Routes++
			res.FailedTables += len(out.Failed)
		}

		r.peers.InstallOnce(iface.MAC, info.DeviceIndex, info.Subnet, iface.Device)
	}

	if ctx.Err() != nil {
		return TickResult{Outcome: OutcomeFatal, Err: ctx.Err()}
	}

	r.tracker.Commit(obs)
	r.persist(state, obs)

	r.logger.Info("interface change applied",
		"component", "reconcile",
		"interfaces", len(obs),
		"addresses", obs.AddrCount(),
		"routes", res.Routes,
		"failed_tables", res.FailedTables,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	return res
}

// resolve maps a host address to the destination to advertise.
func (r *Reconciler) resolve(state *discovery.State, iface ifstate.Interface, addr netip.Prefix) (netip.Prefix, bool) {
	dst, ok := state.Resolver.Resolve(addr)
	if ok {
		return dst, true
	}

	r.metrics.IncResolutionMiss()
	if state.SubnetMissFallback {
		r.logger.Warn("address in no known subnet, advertising host route",
			"component", "reconcile",
			"mac", iface.MAC,
			"device", iface.Device,
			"address", addr.String(),
		)
		return addr, true
	}
	r.logger.Warn("address in no known subnet, skipping",
		"component", "reconcile",
		"mac", iface.MAC,
		"device", iface.Device,
		"address", addr.String(),
	)
	return netip.Prefix{}, false
}

// persist writes the applied observation to the state file. Failures are
// logged only.
func (r *Reconciler) persist(state *discovery.State, obs ifstate.Observation) {
	if r.cfg.DisableStateFile {
		return
	}
	if err := WriteStatus(r.cfg.StateFile, NewStatus(state, obs, time.Now())); err != nil {
		r.logger.Warn("state file write failed",
			"component", "reconcile",
			"path", r.cfg.StateFile,
			"error", err,
		)
	}
}
