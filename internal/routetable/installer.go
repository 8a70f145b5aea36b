package routetable

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"

	"github.com/plexsphere/vipsync/internal/metrics"
)

// errCodeRouteNotFound is the EC2 error code returned by ReplaceRoute when
// the table has no route for the destination.
const errCodeRouteNotFound = "InvalidRoute.NotFound"

// InstallResult summarizes one Install call. Each pooled table appears in
// exactly one of the slices.
type InstallResult struct {
	Replaced []string
	Created  []string
	Failed   []string
}

// OK reports whether every table ended up with the route.
func (r InstallResult) OK() bool {
	return len(r.Failed) == 0
}

// Installer applies a destination → interface route across a route table
// pool.
type Installer struct {
	cfg     Config
	limiter *Limiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewInstaller creates an Installer. Config defaults are applied
// automatically. limiter and m may be nil.
func NewInstaller(cfg Config, limiter *Limiter, m *metrics.Metrics, logger *slog.Logger) *Installer {
	cfg.ApplyDefaults()
	return &Installer{
		cfg:     cfg,
		limiter: limiter,
		metrics: m,
		logger:  logger.With("component", "routetable"),
	}
}

type tableOutcome int

const (
	tableReplaced tableOutcome = iota
	tableCreated
	tableFailed
)

// Install points dst at the network interface eniID in every table of pool.
// Tables are mutated concurrently, each in its own worker bounded by
// cfg.WorkerTimeout. Install returns once every worker has finished or been
// abandoned at its deadline, so a client that ignores ctx cannot stall it. A
// failure in one table never prevents the others from being attempted.
func (i *Installer) Install(ctx context.Context, pool *Pool, eniID string, dst netip.Prefix) InstallResult {
	start := time.Now()

	var (
		mu     sync.Mutex
		result InstallResult
		g      errgroup.Group
	)
	g.SetLimit(i.cfg.MaxConcurrency)

	pool.Each(func(id string, client API) {
		g.Go(func() error {
			outcome := i.applyBounded(ctx, id, client, eniID, dst)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case tableReplaced:
				result.Replaced = append(result.Replaced, id)
			case tableCreated:
				result.Created = append(result.Created, id)
			default:
				result.Failed = append(result.Failed, id)
			}
			return nil
		})
	})
	_ = g.Wait()

	i.logger.Info("route applied to route tables",
		"cidr", dst.String(),
		"eni", eniID,
		"replaced", len(result.Replaced),
		"created", len(result.Created),
		"failed", len(result.Failed),
		"duration", time.Since(start),
	)
	return result
}

// applyBounded runs apply in its own goroutine and waits at most
// cfg.WorkerTimeout for it. A worker still blocked in a client call that
// ignores ctx is abandoned and the table is reported as failed; its mutation
// may still complete in the background and records its own metrics.
func (i *Installer) applyBounded(ctx context.Context, tableID string, client API, eniID string, dst netip.Prefix) tableOutcome {
	ctx, cancel := context.WithTimeout(ctx, i.cfg.WorkerTimeout)
	defer cancel()

	done := make(chan tableOutcome, 1)
	go func() {
		done <- i.apply(ctx, tableID, client, eniID, dst)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
	}
	select {
	case outcome := <-done:
		return outcome
	default:
		i.logger.Warn("route table worker abandoned",
			"route_table", tableID,
			"cidr", dst.String(),
			"eni", eniID,
			"timeout", i.cfg.WorkerTimeout,
			"error", ctx.Err(),
		)
		return tableFailed
	}
}

// apply runs the replace-then-create protocol against one table. ctx carries
// the worker deadline.
func (i *Installer) apply(ctx context.Context, tableID string, client API, eniID string, dst netip.Prefix) tableOutcome {
	cidr := dst.String()
	log := i.logger.With("route_table", tableID, "cidr", cidr, "eni", eniID)

	if err := i.limiter.Wait(ctx); err != nil {
		log.Warn("rate limiter wait aborted", "error", err)
		i.metrics.ObserveRouteOperation(metrics.OperationReplace, outcomeFor(err))
		return tableFailed
	}

	_, err := client.ReplaceRoute(ctx, &ec2.ReplaceRouteInput{
		RouteTableId:         aws.String(tableID),
		DestinationCidrBlock: aws.String(cidr),
		NetworkInterfaceId:   aws.String(eniID),
	})
	if err == nil {
		i.metrics.ObserveRouteOperation(metrics.OperationReplace, metrics.OutcomeSuccess)
		log.Debug("route replaced")
		return tableReplaced
	}
	if errorCode(err) != errCodeRouteNotFound {
		i.metrics.ObserveRouteOperation(metrics.OperationReplace, outcomeFor(err))
		log.Warn("replace route failed", "error_code", errorCode(err), "error", err)
		return tableFailed
	}

	i.metrics.ObserveRouteOperation(metrics.OperationReplace, metrics.OutcomeNotFound)
	log.Info("route not present, creating")

	if err := i.limiter.Wait(ctx); err != nil {
		log.Warn("rate limiter wait aborted", "error", err)
		i.metrics.ObserveRouteOperation(metrics.OperationCreate, outcomeFor(err))
		return tableFailed
	}

	_, err = client.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(tableID),
		DestinationCidrBlock: aws.String(cidr),
		NetworkInterfaceId:   aws.String(eniID),
	})
	if err != nil {
		i.metrics.ObserveRouteOperation(metrics.OperationCreate, outcomeFor(err))
		log.Warn("create route failed, route may already exist",
			"error_code", errorCode(err),
			"error", err,
		)
		return tableFailed
	}

	i.metrics.ObserveRouteOperation(metrics.OperationCreate, metrics.OutcomeSuccess)
	log.Debug("route created")
	return tableCreated
}

// errorCode returns the API error code carried by err, or "" if err is not
// an API error.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

func outcomeFor(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
