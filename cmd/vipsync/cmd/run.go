package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/vipsync/internal/agent"
	"github.com/plexsphere/vipsync/internal/discovery"
	"github.com/plexsphere/vipsync/internal/hostroute"
	"github.com/plexsphere/vipsync/internal/ifstate"
	"github.com/plexsphere/vipsync/internal/metrics"
	"github.com/plexsphere/vipsync/internal/reconcile"
	"github.com/plexsphere/vipsync/internal/routetable"
)

// runFlags holds the run command's overrides. Each is applied only when the
// flag was set on the command line.
type runFlags struct {
	routeTableTag   string
	intf1Peers      string
	intf2Peers      string
	subnetLoopbacks bool
	runAsSidecar    bool
	metricsAddr     string
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Synchronize VPC routes with local interface addresses",
	Long: "Bootstrap from the instance metadata service, then keep the selected VPC\n" +
		"route tables pointing at the interfaces that own each secondary address.\n" +
		"Without --run-as-sidecar the command exits after the first converged pass.",
	RunE: runRun,
}

func init() {
	bindRunFlags(runCmd, &runOpts)
	rootCmd.AddCommand(runCmd)
}

func bindRunFlags(cmd *cobra.Command, o *runFlags) {
	f := cmd.Flags()
	f.StringVar(&o.routeTableTag, "route-table-tag", "", "route table filter: ALL, <tag-key> or <tag-key>=<value>")
	f.StringVar(&o.intf1Peers, "intf1-peers", "", "comma separated peer prefixes routed via device index 1")
	f.StringVar(&o.intf2Peers, "intf2-peers", "", "comma separated peer prefixes routed via device index 2")
	f.BoolVar(&o.subnetLoopbacks, "subnet-loopbacks", false, "advertise the enclosing VPC subnet instead of the host address")
	f.BoolVar(&o.runAsSidecar, "run-as-sidecar", false, "keep running after the first converged pass")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "address for the Prometheus /metrics listener (empty disables)")
}

// apply merges the flags that were set on cmd into cfg.
func (o runFlags) apply(cmd *cobra.Command, cfg *agent.AgentConfig) {
	changed := cmd.Flags().Changed
	if changed("route-table-tag") {
		cfg.Discovery.RouteTableFilter = o.routeTableTag
	}
	if changed("subnet-loopbacks") {
		cfg.Discovery.SubnetLoopbacks = o.subnetLoopbacks
	}
	if changed("run-as-sidecar") {
		if o.runAsSidecar {
			cfg.Reconcile.Mode = reconcile.ModeSidecar
		} else {
			cfg.Reconcile.Mode = reconcile.ModeInit
		}
	}
	if changed("metrics-addr") {
		cfg.Metrics.ListenAddr = o.metricsAddr
	}
	for _, p := range []struct{ flag, deviceIndex, value string }{
		{"intf1-peers", "1", o.intf1Peers},
		{"intf2-peers", "2", o.intf2Peers},
	} {
		if !changed(p.flag) {
			continue
		}
		if cfg.PeerRoutes.Peers == nil {
			cfg.PeerRoutes.Peers = make(map[string][]string)
		}
		cfg.PeerRoutes.Peers[p.deviceIndex] = hostroute.SplitList(p.value)
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	// 1. Load config and merge flags.
	cfg, err := loadConfig(func(c *agent.AgentConfig) error {
		runOpts.apply(cmd, c)
		return nil
	})
	if err != nil {
		return fmt.Errorf("vipsync run: %w", err)
	}

	// 2. Set up structured logger.
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting vipsync",
		"version", buildVersion,
		"mode", cfg.Reconcile.Mode,
		"route_table_filter", cfg.Discovery.RouteTableFilter,
		"subnet_loopbacks", cfg.Discovery.SubnetLoopbacks,
	)

	// 3. Build the reconciler and its collaborators.
	m := metrics.New()
	rec, err := newReconciler(cfg, m, logger)
	if err != nil {
		return fmt.Errorf("vipsync run: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	// 4. Bind the optional metrics listener. Route sync runs without it.
	ms := metrics.NewServer(cfg.Metrics, m, logger)
	if err := ms.Listen(); err != nil {
		logger.Warn("metrics listener disabled", "error", err)
		ms = metrics.NewServer(metrics.Config{}, m, logger)
	}

	// 5. Run until the reconciler returns or a signal arrives.
	err = serve(ctx, rec, ms, hup, cfg.Reconcile.Mode == reconcile.ModeSidecar, logger)
	if err != nil {
		return fmt.Errorf("vipsync run: %w", err)
	}
	logger.Info("vipsync stopped")
	return nil
}

// newReconciler wires the production collaborators into a Reconciler.
func newReconciler(cfg *agent.AgentConfig, m *metrics.Metrics, logger *slog.Logger) (*reconcile.Reconciler, error) {
	disc, err := discovery.NewDiscoverer(cfg.Discovery, discovery.NewMetadataClient(), discovery.AWSClients, logger)
	if err != nil {
		return nil, err
	}

	limiter := routetable.NewLimiter(cfg.RouteTable.APIRateLimit, cfg.RouteTable.APIBurst)
	installer := routetable.NewInstaller(cfg.RouteTable, limiter, m, logger)

	peers, err := hostroute.ParsePeers(cfg.PeerRoutes.Peers)
	if err != nil {
		return nil, err
	}
	var ctrl hostroute.RouteController
	if peers.Len() > 0 {
		if ctrl, err = newRouteController(logger); err != nil {
			return nil, err
		}
	}
	peerInstaller := hostroute.NewPeerInstaller(peers, ctrl, cfg.PeerRoutes, m, logger)

	sampler := ifstate.NewNetlinkSampler(nil)

	return reconcile.NewReconciler(cfg.Reconcile, disc, sampler, installer, peerInstaller, m, logger), nil
}

// reconcileRunner is the part of *reconcile.Reconciler that serve drives.
type reconcileRunner interface {
	Run(ctx context.Context) error
	Ready() <-chan struct{}
	TriggerResync()
}

// metricsServer is the part of *metrics.Server that serve drives.
type metricsServer interface {
	Serve(ctx context.Context) error
}

// serve runs the reconciler next to the metrics listener and the signal
// watcher. It returns when the reconciler returns; a metrics failure is
// logged and never stops the reconciler. In sidecar mode a
// cancellation of ctx is a clean shutdown; in init mode it means the host
// never converged and is reported as an error.
func serve(ctx context.Context, rec reconcileRunner, ms metricsServer, hup <-chan os.Signal, sidecar bool, logger *slog.Logger) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer cancel()
		return rec.Run(gctx)
	})
	g.Go(func() error {
		if err := ms.Serve(gctx); err != nil {
			logger.Warn("metrics listener failed, route sync continues", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		watchSignals(gctx, rec, hup, sidecar, logger)
		return nil
	})

	err := g.Wait()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		logger.Info("shutting down", "reason", ctx.Err())
		if sidecar {
			return nil
		}
		return errors.New("interrupted before the first converged pass")
	default:
		return err
	}
}

// watchSignals reports readiness to systemd once bootstrap completes and
// turns SIGHUP into a forced resync. It returns when ctx is done.
func watchSignals(ctx context.Context, rec reconcileRunner, hup <-chan os.Signal, sidecar bool, logger *slog.Logger) {
	ready := rec.Ready()
	for {
		select {
		case <-ctx.Done():
			if sidecar {
				notify(daemon.SdNotifyStopping, logger)
			}
			return
		case <-ready:
			ready = nil
			logger.Debug("reconciler ready")
			if sidecar {
				notify(daemon.SdNotifyReady, logger)
			}
		case <-hup:
			logger.Info("SIGHUP received, forcing resync")
			rec.TriggerResync()
		}
	}
}

func notify(state string, logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("sd_notify sent", "state", state)
	}
}
