// Package discovery acquires everything vipsync needs before it can route:
// the instance identity, the pool of route tables to manage, and the subnet
// catalog used for subnet-aware resolution.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/plexsphere/vipsync/internal/cidr"
	"github.com/plexsphere/vipsync/internal/routetable"
)

// EC2API is the subset of the EC2 API used during discovery.
// *ec2.Client satisfies it.
type EC2API interface {
	ec2.DescribeRouteTablesAPIClient
	ec2.DescribeSubnetsAPIClient
}

// Clients bundles the EC2 clients for one region.
type Clients struct {
	EC2 EC2API
	// NewTableClient builds the dedicated client of one route table.
	NewTableClient routetable.ClientFactory
}

// ClientsFactory builds the EC2 clients for region.
type ClientsFactory func(ctx context.Context, region string) (*Clients, error)

// State is the immutable result of a successful bootstrap.
type State struct {
	Identity *Identity
	Pool     *routetable.Pool
	Resolver *cidr.Resolver
	Filter   routetable.Filter

	// SubnetMissFallback mirrors Config.SubnetMissFallback.
	SubnetMissFallback bool
}

// Discoverer performs the discovery bootstrap.
type Discoverer struct {
	cfg        Config
	filter     routetable.Filter
	md         MetadataAPI
	newClients ClientsFactory
	logger     *slog.Logger
}

// NewDiscoverer creates a Discoverer. Config defaults are applied
// automatically.
func NewDiscoverer(cfg Config, md MetadataAPI, newClients ClientsFactory, logger *slog.Logger) (*Discoverer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filter, err := routetable.ParseFilter(cfg.RouteTableFilter)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return &Discoverer{
		cfg:        cfg,
		filter:     filter,
		md:         md,
		newClients: newClients,
		logger:     logger.With("component", "discovery"),
	}, nil
}

// Discover runs one complete bootstrap. It either returns a fully populated
// State or an error; no partial result is ever returned.
func (d *Discoverer) Discover(ctx context.Context) (*State, error) {
	start := time.Now()

	mdCtx, cancel := context.WithTimeout(ctx, d.cfg.MetadataTimeout)
	identity, err := ReadIdentity(mdCtx, d.md)
	cancel()
	if err != nil {
		return nil, err
	}
	if d.cfg.Region != "" {
		identity.Region = d.cfg.Region
	}
	if identity.Region == "" {
		return nil, fmt.Errorf("discovery: region unknown")
	}

	d.logger.Info("instance identity acquired",
		"instance_id", identity.InstanceID,
		"region", identity.Region,
		"interfaces", len(identity.Interfaces),
	)

	clients, err := d.newClients(ctx, identity.Region)
	if err != nil {
		return nil, fmt.Errorf("discovery: create EC2 clients: %w", err)
	}

	vpcIDs := identity.VPCIDs()
	pool := routetable.NewPool()
	apiCtx, cancel := context.WithTimeout(ctx, d.cfg.APITimeout)
	added, err := pool.Discover(apiCtx, clients.EC2, vpcIDs, d.filter, clients.NewTableClient)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	if pool.Len() == 0 {
		return nil, fmt.Errorf("discovery: vpcs %v filter %s: %w", vpcIDs, d.filter, routetable.ErrNoRouteTables)
	}
	for _, id := range added {
		d.logger.Info("route table pooled", "route_table", id)
	}

	catalog := cidr.NewCatalog()
	if d.cfg.SubnetLoopbacks {
		apiCtx, cancel := context.WithTimeout(ctx, d.cfg.APITimeout)
		err := d.loadSubnets(apiCtx, clients.EC2, vpcIDs, catalog)
		cancel()
		if err != nil {
			return nil, err
		}
	}

	d.logger.Info("discovery complete",
		"vpcs", vpcIDs,
		"route_tables", pool.Len(),
		"filter", d.filter.String(),
		"subnet_aware", d.cfg.SubnetLoopbacks,
		"subnets", catalog.Len(),
		"duration", time.Since(start),
	)

	return &State{
		Identity:           identity,
		Pool:               pool,
		Resolver:           cidr.NewResolver(catalog, d.cfg.SubnetLoopbacks),
		Filter:             d.filter,
		SubnetMissFallback: d.cfg.SubnetMissFallback,
	}, nil
}

// loadSubnets adds every subnet of vpcIDs to catalog.
func (d *Discoverer) loadSubnets(ctx context.Context, client ec2.DescribeSubnetsAPIClient, vpcIDs []string, catalog *cidr.Catalog) error {
	input := &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("vpc-id"), Values: vpcIDs},
		},
	}

	paginator := ec2.NewDescribeSubnetsPaginator(client, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("discovery: describe subnets: %w", err)
		}
		for _, s := range output.Subnets {
			block := aws.ToString(s.CidrBlock)
			prefix, err := netip.ParsePrefix(block)
			if err != nil {
				d.logger.Warn("skipping subnet with unparsable CIDR",
					"subnet_id", aws.ToString(s.SubnetId),
					"cidr", block,
					"error", err,
				)
				continue
			}
			if !catalog.Add(prefix, aws.ToString(s.SubnetId)) {
				d.logger.Debug("duplicate subnet CIDR ignored",
					"subnet_id", aws.ToString(s.SubnetId),
					"cidr", block,
				)
			}
		}
	}
	return nil
}
