package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/ratelimit"
	"plannersuite.org/internal/tenant"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userSummary struct {
	ID             string   `json:"id"`
	Email          string   `json:"email"`
	OrganizationID string   `json:"organizationId"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
}

func summarize(u *auth.User) userSummary {
	s := userSummary{ID: u.ID, Email: u.Email, OrganizationID: u.OrganizationID}
	if u.Profile != nil {
		s.FirstName = u.Profile.FirstName
		s.LastName = u.Profile.LastName
	}
	return s
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	tenantID := tenantIDFrom(r)

	// A second window keyed by the claimed account, so guessing one
	// password from many addresses still trips the limit.
	res := a.limiters.Login.Take(r.Context(), ratelimit.AccountKey(tenantID, req.Email))
	if !res.Allowed {
		setRateHeaders(w, res)
		obs.ObserveRateLimited("login_account")
		writeError(w, http.StatusTooManyRequests, "too many login attempts, please try again later")
		return
	}

	result, err := a.authsvc.Login(r.Context(), tenantID, req.Email, req.Password)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "login successful", map[string]any{
		"accessToken": result.AccessToken,
		"expiresAt":   result.ExpiresAt.UTC().Format(time.RFC3339),
		"user":        summarize(result.User),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, _ := auth.TokenFromContext(r.Context())
	claims, err := a.codec.Verify(token)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	if err := a.blacklist.Revoke(r.Context(), token, a.codec.Remaining(claims)); err != nil {
		a.log.WithError(err).Warn("failed to blacklist token on logout")
	}
	writeData(w, http.StatusOK, "logged out", nil)
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	s := summarize(identity.User)
	s.Permissions = identity.PermissionNames()
	writeData(w, http.StatusOK, "", map[string]any{
		"user":         s,
		"organization": identity.User.Organization,
	})
}

type registerTenantRequest struct {
	TenantName       string   `json:"tenantName" validate:"required,max=120"`
	Subdomain        string   `json:"subdomain" validate:"required"`
	OrganizationName string   `json:"organizationName" validate:"max=120"`
	Email            string   `json:"email" validate:"required,email"`
	Password         string   `json:"password" validate:"required,min=8"`
	FirstName        string   `json:"firstName" validate:"max=80"`
	LastName         string   `json:"lastName" validate:"max=80"`
	Modules          []string `json:"modules"`
}

func (a *API) handleRegisterTenant(w http.ResponseWriter, r *http.Request) {
	var req registerTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}

	sub := strings.ToLower(strings.TrimSpace(req.Subdomain))
	if !tenant.ValidSubdomain(sub) {
		writeValidationErrors(w, []fieldError{{
			Field:   "subdomain",
			Message: "subdomain must be a lowercase label of 3-63 characters and not reserved",
			Value:   req.Subdomain,
		}})
		return
	}

	modules := []tenant.Module{tenant.ModuleStage}
	for _, raw := range req.Modules {
		m := tenant.Module(strings.ToUpper(strings.TrimSpace(raw)))
		if !m.Valid() {
			writeValidationErrors(w, []fieldError{{
				Field:   "modules",
				Message: "unknown module",
				Value:   raw,
			}})
			return
		}
		if m != tenant.ModuleStage {
			modules = append(modules, m)
		}
	}

	available, err := a.registrar.SubdomainAvailable(r.Context(), sub)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	if !available {
		writeError(w, http.StatusConflict, "subdomain is already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	orgName := strings.TrimSpace(req.OrganizationName)
	if orgName == "" {
		orgName = req.TenantName
	}
	account, err := a.registrar.CreateAccount(r.Context(), tenant.Registration{
		TenantName:        strings.TrimSpace(req.TenantName),
		Subdomain:         sub,
		OrganizationName:  orgName,
		AdminEmail:        strings.ToLower(strings.TrimSpace(req.Email)),
		AdminPasswordHash: hash,
		AdminFirstName:    strings.TrimSpace(req.FirstName),
		AdminLastName:     strings.TrimSpace(req.LastName),
		Modules:           modules,
	})
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "tenant registered", map[string]any{
		"tenant":         account.Tenant,
		"organizationId": account.OrganizationID,
		"adminUserId":    account.AdminUserID,
	})
}

func (a *API) handleValidateSubdomain(w http.ResponseWriter, r *http.Request) {
	sub := strings.ToLower(strings.TrimSpace(mux.Vars(r)["subdomain"]))
	if !tenant.ValidSubdomain(sub) {
		writeData(w, http.StatusOK, "", map[string]any{"subdomain": sub, "valid": false, "available": false})
		return
	}
	available, err := a.registrar.SubdomainAvailable(r.Context(), sub)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"subdomain": sub, "valid": true, "available": available})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(req); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	if err := a.authsvc.ChangePassword(r.Context(), identity.User.ID, req.CurrentPassword, req.NewPassword); err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "password changed, please sign in again", nil)
}
