// Package cidr resolves host addresses to the destination prefix that is
// advertised in the VPC route tables.
package cidr

import (
	"net/netip"
	"sync"
)

// Subnet describes one VPC subnet known to the catalog.
type Subnet struct {
	ID   string
	CIDR netip.Prefix
}

// Catalog is an ordered set of subnets keyed by prefix. Iteration order is
// insertion order, so lookups that scan the catalog are reproducible for the
// lifetime of the process.
type Catalog struct {
	mu      sync.RWMutex
	order   []netip.Prefix
	subnets map[netip.Prefix]Subnet
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		subnets: make(map[netip.Prefix]Subnet),
	}
}

// Add inserts a subnet. The prefix is masked before insertion. Add returns
// false if the prefix was already cataloged; the existing entry is kept.
func (c *Catalog) Add(prefix netip.Prefix, id string) bool {
	prefix = prefix.Masked()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.subnets[prefix]; ok {
		return false
	}
	c.order = append(c.order, prefix)
	c.subnets[prefix] = Subnet{ID: id, CIDR: prefix}
	return true
}

// Lookup returns the subnet cataloged under exactly prefix.
func (c *Catalog) Lookup(prefix netip.Prefix) (Subnet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subnets[prefix]
	return s, ok
}

// Containing returns the first cataloged subnet, in insertion order, whose
// range contains addr.
func (c *Catalog) Containing(addr netip.Addr) (Subnet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.order {
		if p.Contains(addr) {
			return c.subnets[p], true
		}
	}
	return Subnet{}, false
}

// Len returns the number of cataloged subnets.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

// Subnets returns a copy of the catalog in insertion order.
func (c *Catalog) Subnets() []Subnet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Subnet, 0, len(c.order))
	for _, p := range c.order {
		out = append(out, c.subnets[p])
	}
	return out
}
