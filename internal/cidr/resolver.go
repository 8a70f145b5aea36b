package cidr

import "net/netip"

// Resolver maps a host address to the prefix that should be advertised.
//
// With subnet-aware resolution disabled every address is advertised as its
// own host route. When enabled, host routes are replaced by the cataloged
// subnet that encloses them; this is how loopback subnets carved out of the
// VPC are routed to a single interface.
type Resolver struct {
	catalog     *Catalog
	subnetAware bool
}

// NewResolver returns a Resolver. catalog may be nil when subnetAware is false.
func NewResolver(catalog *Catalog, subnetAware bool) *Resolver {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Resolver{catalog: catalog, subnetAware: subnetAware}
}

// SubnetAware reports whether subnet-aware resolution is enabled.
func (r *Resolver) SubnetAware() bool {
	return r.subnetAware
}

// Catalog returns the subnet catalog backing the resolver.
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Resolve returns the prefix to advertise for p. The boolean is false when
// subnet-aware resolution is enabled and no cataloged subnet matches; the
// caller must skip the address in that case.
func (r *Resolver) Resolve(p netip.Prefix) (netip.Prefix, bool) {
	if !r.subnetAware {
		return p, true
	}

	if p.Bits() == p.Addr().BitLen() {
		s, ok := r.catalog.Containing(p.Addr())
		if !ok {
			return netip.Prefix{}, false
		}
		return s.CIDR, true
	}

	if _, ok := r.catalog.Lookup(p); ok {
		return p, true
	}
	return netip.Prefix{}, false
}
