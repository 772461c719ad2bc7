// Package httpapi is the HTTP surface: routing, middleware and handlers.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/ratelimit"
	"plannersuite.org/internal/schedule"
	"plannersuite.org/internal/tenant"
)

// Pinger reports backing-store reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles the persistence interfaces the API depends on.
type Stores struct {
	Tenants   tenant.Store
	Registrar tenant.Registrar
}

// Limiters bundles the per-route rate limit windows.
type Limiters struct {
	Login              *ratelimit.Limiter
	TenantRegistration *ratelimit.Limiter
	PasswordReset      *ratelimit.Limiter
}

// Config carries everything New needs.
type Config struct {
	Log *logrus.Logger
	Dev bool
	// TrustProxy enables X-Forwarded-For as the rate-limit client address.
	// Only set it when the API runs behind a proxy that rewrites the header.
	TrustProxy bool
	Version    string
	Stores    Stores
	Resolver  *tenant.Resolver
	Codec     *auth.Codec
	Loader    *auth.Loader
	Auth      *auth.Service
	Planner   *schedule.Service
	Blacklist *ratelimit.Blacklist
	Limiters  Limiters
	Probe     Pinger
}

// API is the HTTP layer.
type API struct {
	router     *mux.Router
	log        *logrus.Logger
	dev        bool
	trustProxy bool
	version    string
	store      tenant.Store
	registrar  tenant.Registrar
	tenants    *tenant.Resolver
	codec      *auth.Codec
	identities *auth.Loader
	authsvc    *auth.Service
	planner    *schedule.Service
	blacklist  *ratelimit.Blacklist
	limiters   Limiters
	probe      Pinger
}

// New wires the router.
func New(cfg Config) *API {
	a := &API{
		router:     mux.NewRouter(),
		log:        cfg.Log,
		dev:        cfg.Dev,
		trustProxy: cfg.TrustProxy,
		version:    cfg.Version,
		store:      cfg.Stores.Tenants,
		registrar:  cfg.Stores.Registrar,
		tenants:    cfg.Resolver,
		codec:      cfg.Codec,
		identities: cfg.Loader,
		authsvc:    cfg.Auth,
		planner:    cfg.Planner,
		blacklist:  cfg.Blacklist,
		limiters:   cfg.Limiters,
		probe:      cfg.Probe,
	}
	a.routes()
	return a
}

func (a *API) routes() {
	r := a.router
	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", a.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", obs.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Auth surface. Login requires a servable tenant; registration and the
	// subdomain probe are public by nature.
	api.HandleFunc("/auth/login",
		a.requireTenant(a.perRouteLimit(a.limiters.Login, "login", a.handleLogin))).
		Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", a.authenticate(a.handleLogout)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", a.authenticate(a.handleMe)).Methods(http.MethodGet)
	api.HandleFunc("/auth/register-tenant",
		a.perRouteLimit(a.limiters.TenantRegistration, "register_tenant", a.handleRegisterTenant)).
		Methods(http.MethodPost)
	api.HandleFunc("/auth/validate-subdomain/{subdomain}", a.handleValidateSubdomain).Methods(http.MethodGet)
	api.HandleFunc("/auth/change-password", a.authenticate(a.handleChangePassword)).Methods(http.MethodPost)

	// Flows the platform does not serve yet.
	api.HandleFunc("/auth/refresh-token", notImplemented).Methods(http.MethodPost)
	api.HandleFunc("/auth/forgot-password",
		a.perRouteLimit(a.limiters.PasswordReset, "password_reset", notImplemented)).
		Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", notImplemented).Methods(http.MethodPost)
	api.HandleFunc("/auth/invitations", notImplemented).Methods(http.MethodPost)
	api.HandleFunc("/auth/verify-email", notImplemented).Methods(http.MethodPost)
	api.HandleFunc("/exports", notImplemented).Methods(http.MethodPost)

	// Stage planner. Every route needs an authenticated caller, a servable
	// tenant with the stage module on, and the operation's permission.
	sp := api.PathPrefix("/stageplanner").Subrouter()
	gate := func(perm string, h http.HandlerFunc) http.HandlerFunc {
		return a.authenticate(a.requireTenant(a.requireModule(tenant.ModuleStage, a.requirePermission(perm, h))))
	}
	sp.HandleFunc("/dashboard", gate(auth.PermReadEvent, a.handleDashboard)).Methods(http.MethodGet)

	sp.HandleFunc("/events", gate(auth.PermReadEvent, a.handleListEvents)).Methods(http.MethodGet)
	sp.HandleFunc("/events", gate(auth.PermCreateEvent, a.handleCreateEvent)).Methods(http.MethodPost)
	sp.HandleFunc("/events/{id}", gate(auth.PermReadEvent, a.handleGetEvent)).Methods(http.MethodGet)
	sp.HandleFunc("/events/{id}", gate(auth.PermUpdateEvent, a.handleUpdateEvent)).Methods(http.MethodPut)
	sp.HandleFunc("/events/{id}", gate(auth.PermDeleteEvent, a.handleDeleteEvent)).Methods(http.MethodDelete)
	sp.HandleFunc("/events/{id}/publish", gate(auth.PermUpdateEvent, a.handlePublishEvent)).Methods(http.MethodPost)
	sp.HandleFunc("/events/{id}/cancel", gate(auth.PermUpdateEvent, a.handleCancelEvent)).Methods(http.MethodPost)

	sp.HandleFunc("/teams", gate(auth.PermReadTeam, a.handleListTeams)).Methods(http.MethodGet)
	sp.HandleFunc("/teams", gate(auth.PermCreateTeam, a.handleCreateTeam)).Methods(http.MethodPost)
	sp.HandleFunc("/teams/{id}", gate(auth.PermReadTeam, a.handleGetTeam)).Methods(http.MethodGet)
	sp.HandleFunc("/teams/{id}", gate(auth.PermUpdateTeam, a.handleUpdateTeam)).Methods(http.MethodPut)
	sp.HandleFunc("/teams/{id}", gate(auth.PermDeleteTeam, a.handleDeleteTeam)).Methods(http.MethodDelete)
	sp.HandleFunc("/teams/{id}/members", gate(auth.PermUpdateTeam, a.handleSetTeamMembers)).Methods(http.MethodPut)

	sp.HandleFunc("/events/{id}/assignments", gate(auth.PermReadAssignment, a.handleListAssignments)).Methods(http.MethodGet)
	sp.HandleFunc("/assignments", gate(auth.PermCreateAssignment, a.handleCreateAssignment)).Methods(http.MethodPost)
	sp.HandleFunc("/assignments/{id}/status", gate(auth.PermUpdateAssignment, a.handleSetAssignmentStatus)).Methods(http.MethodPut)
	sp.HandleFunc("/assignments/{id}", gate(auth.PermDeleteAssignment, a.handleDeleteAssignment)).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "resource not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler assembles the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", tenant.HeaderTenantID},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           600,
	})

	var h http.Handler = a.router
	h = a.identifyTenant(h)
	h = MaxBodyBytes(1 << 20)(h)
	h = GlobalRateLimit(50, 100, a.trustProxy)(h)
	h = SecurityHeaders(h)
	h = c.Handler(h)
	h = Logging(a.log)(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
