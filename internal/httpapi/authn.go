package httpapi

import (
	"fmt"
	"net/http"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/tenant"
)

// authenticate verifies the bearer credential and hydrates the caller's
// identity. The identity is rebuilt from the store on every request; role or
// status changes apply on the next call, not at the token's expiry.
func (a *API) authenticate(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := trimBearer(r.Header.Get("Authorization"))
		if !ok {
			a.respondDomainError(w, r, auth.ErrUnauthenticated)
			return
		}
		if a.blacklist.Revoked(r.Context(), token) {
			a.respondDomainError(w, r, auth.ErrTokenRevoked)
			return
		}
		claims, err := a.codec.Verify(token)
		if err != nil {
			a.respondDomainError(w, r, err)
			return
		}
		identity, err := a.identities.Load(r.Context(), claims)
		if err != nil {
			a.respondDomainError(w, r, err)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, token)
		// Routes authenticated without a subdomain or header still get a
		// tenant scope from the verified credential.
		if _, ok := tenant.IDFromContext(ctx); !ok && claims.TenantID != "" {
			ctx = tenant.ContextWithID(ctx, claims.TenantID)
		}
		next(w, r.WithContext(ctx))
	}
}

// requirePermission gates a handler on one permission from the caller's
// effective set. The denial names the missing permission.
func (a *API) requirePermission(perm string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			a.respondDomainError(w, r, auth.ErrUnauthenticated)
			return
		}
		if !identity.HasPermission(perm) {
			a.respondDomainError(w, r, fmt.Errorf("%w: missing permission %s", auth.ErrForbidden, perm))
			return
		}
		next(w, r)
	}
}

// requireModule gates a handler on the tenant having the module switched on.
// The check is an exact activation-row match; no module implies another.
func (a *API) requireModule(m tenant.Module, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := tenant.IDFromContext(r.Context())
		if !ok {
			a.respondDomainError(w, r, tenant.ErrTenantRequired)
			return
		}
		active, err := a.store.ModuleActive(r.Context(), tenantID, m)
		if err != nil {
			a.respondDomainError(w, r, err)
			return
		}
		if !active {
			a.respondDomainError(w, r, fmt.Errorf("%w: %s", tenant.ErrModuleDisabled, m))
			return
		}
		next(w, r)
	}
}
