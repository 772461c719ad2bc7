package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// HeaderTenantID carries an explicit tenant identifier and wins over any
// subdomain present on the host.
const HeaderTenantID = "X-Tenant-Id"

// reservedLabels are hostname labels that never identify a tenant.
var reservedLabels = map[string]struct{}{
	"www":   {},
	"api":   {},
	"app":   {},
	"admin": {},
}

// Resolver derives a tenant identity from request metadata and validates it
// against the tenant store. It runs first in the request pipeline.
type Resolver struct {
	store Store
	log   *logrus.Logger
	now   func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithClock overrides the time source used for subscription checks.
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver constructs a Resolver backed by the given store.
func NewResolver(store Store, log *logrus.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CandidateFromHost extracts a potential tenant subdomain from the request
// host. The leftmost label qualifies only when the host has more than two
// dot-separated labels and the label is not reserved.
func CandidateFromHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return ""
	}
	if _, reserved := reservedLabels[labels[0]]; reserved {
		return ""
	}
	return labels[0]
}

// identifier picks the tenant identifier for a request. An explicit header
// wins unconditionally over a derivable subdomain; that is the documented
// contract, not a reconciliation gap.
func identifier(host, header string) string {
	if header = strings.TrimSpace(header); header != "" {
		return header
	}
	return CandidateFromHost(host)
}

// Identify resolves a tenant id without requiring one. Public routes use it:
// a missing or unknown tenant yields an empty id and no error, so the route
// can still acquire a tenant later (e.g. from a verified credential). Store
// failures are still propagated; resolution never fails open on them.
func (r *Resolver) Identify(ctx context.Context, host, header string) (string, error) {
	id := identifier(host, header)
	if id == "" {
		return "", nil
	}
	t, err := r.store.FindByIDOrSubdomain(ctx, id)
	if errors.Is(err, ErrNotFound) {
		r.log.WithFields(logrus.Fields{"identifier": id, "host": host}).Debug("no tenant matched identifier")
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return t.ID, nil
}

// Require resolves a tenant and enforces that it is servable: it must exist,
// be ACTIVE, and hold a valid subscription. Any failure terminates the
// pipeline before data access.
func (r *Resolver) Require(ctx context.Context, host, header string) (*Tenant, error) {
	id := identifier(host, header)
	if id == "" {
		// A previously attached tenant id (e.g. from a verified credential)
		// still satisfies the requirement.
		ctxID, ok := IDFromContext(ctx)
		if !ok {
			return nil, ErrTenantRequired
		}
		id = ctxID
	}
	t, err := r.store.FindByIDOrSubdomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusActive {
		return nil, fmt.Errorf("%w: tenant access is currently %s", ErrInactive, t.Status)
	}
	if !t.SubscriptionValid(r.now()) {
		return nil, ErrSubscriptionExpired
	}
	return t, nil
}
