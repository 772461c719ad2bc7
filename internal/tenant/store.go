package tenant

import "context"

// Store describes the tenant lookups the resolver and the module gate need.
type Store interface {
	// FindByIDOrSubdomain returns the tenant whose id or subdomain equals the
	// identifier (single lookup, OR predicate, case-sensitive). ErrNotFound
	// when no row matches.
	FindByIDOrSubdomain(ctx context.Context, identifier string) (*Tenant, error)

	// ModuleActive reports whether an activation row with is_active=true
	// exists for the exact (tenant, module) pair.
	ModuleActive(ctx context.Context, tenantID string, module Module) (bool, error)
}
