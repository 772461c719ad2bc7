package httpapi

import (
	"net/http"

	"plannersuite.org/internal/tenant"
)

// identifyTenant attaches the tenant id when one resolves from the request.
// Public routes keep working without a tenant; a store outage still fails
// the request rather than silently proceeding untenanted.
func (a *API) identifyTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.tenants.Identify(r.Context(), r.Host, r.Header.Get(tenant.HeaderTenantID))
		if err != nil {
			a.respondDomainError(w, r, err)
			return
		}
		if id != "" {
			r = r.WithContext(tenant.ContextWithID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// requireTenant gates a handler on a resolved, servable tenant.
func (a *API) requireTenant(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := a.tenants.Require(r.Context(), r.Host, r.Header.Get(tenant.HeaderTenantID))
		if err != nil {
			a.respondDomainError(w, r, err)
			return
		}
		next(w, r.WithContext(tenant.ContextWithID(r.Context(), t.ID)))
	}
}

func tenantIDFrom(r *http.Request) string {
	id, _ := tenant.IDFromContext(r.Context())
	return id
}
