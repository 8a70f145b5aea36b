// Package routetable manages the pool of VPC route tables and applies
// interface routes across all of them.
package routetable

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// ErrNoRouteTables is returned when discovery finds no route table for the
// configured filter.
var ErrNoRouteTables = errors.New("routetable: no route tables found")

// API is the subset of the EC2 API used to mutate a single route table.
// *ec2.Client satisfies it.
type API interface {
	ReplaceRoute(ctx context.Context, params *ec2.ReplaceRouteInput, optFns ...func(*ec2.Options)) (*ec2.ReplaceRouteOutput, error)
	CreateRoute(ctx context.Context, params *ec2.CreateRouteInput, optFns ...func(*ec2.Options)) (*ec2.CreateRouteOutput, error)
}

// RouteTableLister lists route tables. *ec2.Client satisfies it.
type RouteTableLister interface {
	ec2.DescribeRouteTablesAPIClient
}

// ClientFactory builds the client owned by one route table.
type ClientFactory func() (API, error)

// Pool maps route table IDs to the client that mutates them. Entries are
// only ever added; a table stays in the pool for the lifetime of the run.
type Pool struct {
	mu      sync.RWMutex
	ids     []string
	clients map[string]API
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{clients: make(map[string]API)}
}

// Add inserts a table with its client. It returns false, leaving the
// existing client in place, if the table is already pooled.
func (p *Pool) Add(id string, client API) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.clients[id]; ok {
		return false
	}
	p.ids = append(p.ids, id)
	p.clients[id] = client
	return true
}

// Contains reports whether id is pooled.
func (p *Pool) Contains(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.clients[id]
	return ok
}

// Len returns the number of pooled tables.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.ids)
}

// IDs returns the pooled table IDs in insertion order.
func (p *Pool) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Each calls fn for every pooled table in insertion order.
func (p *Pool) Each(fn func(id string, client API)) {
	p.mu.RLock()
	ids := make([]string, len(p.ids))
	copy(ids, p.ids)
	clients := make(map[string]API, len(p.clients))
	for k, v := range p.clients {
		clients[k] = v
	}
	p.mu.RUnlock()

	for _, id := range ids {
		fn(id, clients[id])
	}
}

// Discover lists the route tables in vpcIDs that match filter and adds the
// ones not yet pooled, building a dedicated client for each. It returns the
// IDs that were added. Client construction errors abort discovery.
func (p *Pool) Discover(ctx context.Context, lister RouteTableLister, vpcIDs []string, filter Filter, newClient ClientFactory) ([]string, error) {
	input := &ec2.DescribeRouteTablesInput{
		Filters: filter.EC2Filters(vpcIDs),
	}

	var added []string
	paginator := ec2.NewDescribeRouteTablesPaginator(lister, input)
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return added, fmt.Errorf("routetable: describe route tables: %w", err)
		}
		for _, rt := range output.RouteTables {
			id := aws.ToString(rt.RouteTableId)
			if id == "" || p.Contains(id) {
				continue
			}
			client, err := newClient()
			if err != nil {
				return added, fmt.Errorf("routetable: create client for %s: %w", id, err)
			}
			if p.Add(id, client) {
				added = append(added, id)
			}
		}
	}
	return added, nil
}
