package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ulule/limiter/v3"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/ratelimit"
	"plannersuite.org/internal/schedule"
	"plannersuite.org/internal/tenant"
)

type fakeTenantStore struct {
	tenants map[string]*tenant.Tenant
	modules map[string]bool
}

func (f *fakeTenantStore) FindByIDOrSubdomain(_ context.Context, identifier string) (*tenant.Tenant, error) {
	for _, t := range f.tenants {
		if t.ID == identifier || t.Subdomain == identifier {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (f *fakeTenantStore) ModuleActive(_ context.Context, tenantID string, m tenant.Module) (bool, error) {
	return f.modules[tenantID+"/"+string(m)], nil
}

func (f *fakeTenantStore) SubdomainAvailable(_ context.Context, subdomain string) (bool, error) {
	_, err := f.FindByIDOrSubdomain(context.Background(), subdomain)
	return err != nil, nil
}

func (f *fakeTenantStore) CreateAccount(_ context.Context, reg tenant.Registration) (*tenant.Account, error) {
	t := tenant.Tenant{ID: "tnt_new", Name: reg.TenantName, Subdomain: reg.Subdomain, Status: tenant.StatusActive}
	f.tenants[t.ID] = &t
	return &tenant.Account{Tenant: t, OrganizationID: "org_new", AdminUserID: "usr_new"}, nil
}

// spyUserStore counts credential-store reads so tests can assert that a
// rejected request never touched user data.
type spyUserStore struct {
	user      *auth.User
	loads     atomic.Int64
	loginHits atomic.Int64
	attempts  atomic.Int64
}

func (s *spyUserStore) FindUserByID(_ context.Context, id string) (*auth.User, error) {
	s.loads.Add(1)
	if s.user == nil || s.user.ID != id {
		return nil, auth.ErrNotFound
	}
	cp := *s.user
	return &cp, nil
}

func (s *spyUserStore) FindUserForLogin(_ context.Context, tenantID, email string) (*auth.User, error) {
	s.loginHits.Add(1)
	if s.user == nil || !strings.EqualFold(s.user.Email, email) {
		return nil, auth.ErrNotFound
	}
	if s.user.Organization == nil || s.user.Organization.TenantID != tenantID {
		return nil, auth.ErrNotFound
	}
	cp := *s.user
	return &cp, nil
}

func (s *spyUserStore) IncrementLoginAttempts(_ context.Context, _ string) error {
	s.attempts.Add(1)
	return nil
}

func (s *spyUserStore) RecordLogin(_ context.Context, _ string) error    { return nil }
func (s *spyUserStore) UpdatePassword(_ context.Context, _, _ string) error { return nil }
func (s *spyUserStore) BumpTokenVersion(_ context.Context, _ string) error  { return nil }

// spyPlannerStore fails loudly if a gated-off request reaches the planner.
type spyPlannerStore struct {
	schedule.Store
	touched atomic.Int64
}

func (s *spyPlannerStore) Dashboard(_ context.Context, _ string, _ time.Time) (*schedule.DashboardSummary, error) {
	s.touched.Add(1)
	return &schedule.DashboardSummary{}, nil
}

func (s *spyPlannerStore) ListEvents(_ context.Context, _ string, _, _ time.Time) ([]schedule.Event, error) {
	s.touched.Add(1)
	return nil, nil
}

type testEnv struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	codec   *auth.Codec
	users   *spyUserStore
	planner *spyPlannerStore
	tenants *fakeTenantStore
}

func testUser() *auth.User {
	hash, _ := auth.HashPassword("correct horse")
	return &auth.User{
		ID:             "usr_1",
		OrganizationID: "org_1",
		Email:          "ada@acme.com",
		PasswordHash:   hash,
		Status:         auth.UserStatusActive,
		TokenVersion:   1,
		Organization:   &auth.Organization{ID: "org_1", TenantID: "tnt_acme", Name: "Acme Productions"},
		Profile:        &auth.Profile{UserID: "usr_1", FirstName: "Ada", LastName: "Lovelace"},
		Assignments: []auth.RoleAssignment{{
			UserID: "usr_1",
			RoleID: "rol_1",
			Role: &auth.Role{ID: "rol_1", Name: "planner", Permissions: []auth.Permission{
				{Name: auth.PermReadEvent},
				{Name: auth.PermCreateEvent},
			}},
		}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := obs.NopLogger()

	tenants := &fakeTenantStore{
		tenants: map[string]*tenant.Tenant{
			"tnt_acme": {ID: "tnt_acme", Name: "Acme Productions", Subdomain: "acme", Status: tenant.StatusActive},
			"tnt_bar":  {ID: "tnt_bar", Name: "Bar Only", Subdomain: "baronly", Status: tenant.StatusActive},
		},
		modules: map[string]bool{
			"tnt_acme/STAGE": true,
			"tnt_bar/BAR":    true,
		},
	}
	users := &spyUserStore{user: testUser()}
	planner := &spyPlannerStore{}

	codec, err := auth.NewCodec("test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	mkLimiter := func(name string, limit int64) *ratelimit.Limiter {
		return ratelimit.New(name, limiter.Rate{Period: time.Minute, Limit: limit}, nil, log)
	}

	api := New(Config{
		Log:      log,
		Dev:      true,
		Version:  "test",
		Stores:   Stores{Tenants: tenants, Registrar: tenants},
		Resolver: tenant.NewResolver(tenants, log),
		Codec:    codec,
		Loader:   auth.NewLoader(users, log),
		Auth:     auth.NewService(users, codec, log),
		Planner:  schedule.NewService(planner, log),
		Blacklist: ratelimit.NewBlacklist(nil, log),
		Limiters: Limiters{
			Login:              mkLimiter("login", 100),
			TenantRegistration: mkLimiter("register", 100),
			PasswordReset:      mkLimiter("reset", 100),
		},
	})

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{
		t: t, baseURL: srv.URL, client: srv.Client(),
		codec: codec, users: users, planner: planner, tenants: tenants,
	}
}

func (e *testEnv) do(method, path string, body any, headers map[string]string) (*http.Response, envelope) {
	e.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		e.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func (e *testEnv) token(t *testing.T) string {
	t.Helper()
	token, _, err := e.codec.Issue("usr_1", "ada@acme.com", "org_1", "tnt_acme", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func acmeHeaders(extra map[string]string) map[string]string {
	h := map[string]string{tenant.HeaderTenantID: "tnt_acme"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func TestLoginSuccess(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@acme.com", "password": "correct horse"},
		acmeHeaders(nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, env.Message)
	}
	data := env.Data.(map[string]any)
	token, _ := data["accessToken"].(string)
	if token == "" {
		t.Fatalf("expected an access token in the response")
	}
	claims, err := e.codec.Verify(token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.TenantID != "tnt_acme" {
		t.Fatalf("expected tenant in claims, got %q", claims.TenantID)
	}
}

func TestLoginWrongPasswordIsGeneric(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@acme.com", "password": "wrong"},
		acmeHeaders(nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.Message != "incorrect email or password" {
		t.Fatalf("message must not reveal which part failed, got %q", env.Message)
	}
	if e.users.attempts.Load() != 1 {
		t.Fatalf("expected one recorded failed attempt, got %d", e.users.attempts.Load())
	}
}

func TestLoginUnknownEmailSameMessage(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "nobody@acme.com", "password": "whatever"},
		acmeHeaders(nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.Message != "incorrect email or password" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestLoginWithoutTenant(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "ada@acme.com", "password": "correct horse"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without a tenant, got %d", resp.StatusCode)
	}
}

func TestLoginValidationErrors(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/login",
		map[string]string{"email": "not-an-email", "password": ""},
		acmeHeaders(nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(env.Errors) != 2 {
		t.Fatalf("expected field errors for email and password, got %+v", env.Errors)
	}
}

func TestExpiredTokenRejectedBeforeDataAccess(t *testing.T) {
	e := newTestEnv(t)
	past, _ := auth.NewCodec("test-secret", auth.WithCodecClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	expired, _, err := past.Issue("usr_1", "ada@acme.com", "org_1", "tnt_acme", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	resp, env := e.do(http.MethodGet, "/api/auth/me", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + expired}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if env.Message != "token expired" {
		t.Fatalf("expected expiry classification, got %q", env.Message)
	}
	if e.users.loads.Load() != 0 {
		t.Fatalf("credential store must not be consulted for an expired token")
	}
}

func TestRevokedTokenVersionRejected(t *testing.T) {
	e := newTestEnv(t)
	stale, _, err := e.codec.Issue("usr_1", "ada@acme.com", "org_1", "tnt_acme", 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp, env := e.do(http.MethodGet, "/api/auth/me", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + stale}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if !strings.Contains(env.Message, "revoked") {
		t.Fatalf("expected revocation message, got %q", env.Message)
	}
}

func TestMeReturnsIdentity(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodGet, "/api/auth/me", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + e.token(t)}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, env.Message)
	}
	data := env.Data.(map[string]any)
	user := data["user"].(map[string]any)
	if user["email"] != "ada@acme.com" {
		t.Fatalf("unexpected user payload %+v", user)
	}
	perms, _ := user["permissions"].([]any)
	if len(perms) != 2 {
		t.Fatalf("expected the effective permission set, got %v", perms)
	}
}

func TestSuspendedTenantBlockedBeforeData(t *testing.T) {
	e := newTestEnv(t)
	e.tenants.tenants["tnt_frozen"] = &tenant.Tenant{
		ID: "tnt_frozen", Name: "Frozen", Subdomain: "frozen", Status: tenant.StatusSuspended,
	}
	token, _, err := e.codec.Issue("usr_1", "ada@acme.com", "org_1", "tnt_frozen", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp, env := e.do(http.MethodGet, "/api/stageplanner/dashboard", nil,
		map[string]string{tenant.HeaderTenantID: "tnt_frozen", "Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(env.Message, string(tenant.StatusSuspended)) {
		t.Fatalf("denial must name the tenant status, got %q", env.Message)
	}
	if e.planner.touched.Load() != 0 {
		t.Fatalf("planner store must not be touched for a suspended tenant")
	}
}

func TestModuleGateBlocksDisabledModule(t *testing.T) {
	e := newTestEnv(t)
	// tnt_bar has BAR active but not STAGE; activation rows never imply
	// each other.
	token, _, err := e.codec.Issue("usr_1", "ada@acme.com", "org_1", "tnt_bar", 1)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	resp, env := e.do(http.MethodGet, "/api/stageplanner/dashboard", nil,
		map[string]string{tenant.HeaderTenantID: "tnt_bar", "Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(env.Message, "STAGE") {
		t.Fatalf("denial must name the module, got %q", env.Message)
	}
	if e.planner.touched.Load() != 0 {
		t.Fatalf("planner store must not be touched when the module is off")
	}
}

func TestPermissionGateNamesMissingPermission(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodDelete, "/api/stageplanner/events/evt_1", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + e.token(t)}))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if !strings.Contains(env.Message, auth.PermDeleteEvent) {
		t.Fatalf("denial must name the permission, got %q", env.Message)
	}
}

func TestDashboardAllowsActiveModule(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodGet, "/api/stageplanner/dashboard", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + e.token(t)}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, env.Message)
	}
	if e.planner.touched.Load() != 1 {
		t.Fatalf("expected one planner read, got %d", e.planner.touched.Load())
	}
}

func TestHeaderWinsOverSubdomain(t *testing.T) {
	e := newTestEnv(t)
	// The Host carries acme's subdomain but the explicit header names
	// tnt_bar; the header must win.
	req, err := http.NewRequest(http.MethodGet, e.baseURL+"/api/stageplanner/dashboard", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Host = "acme.plannersuite.org"
	req.Header.Set(tenant.HeaderTenantID, "tnt_bar")
	token, _, _ := e.codec.Issue("usr_1", "ada@acme.com", "org_1", "tnt_bar", 1)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	// tnt_bar has no STAGE activation, so winning the resolution shows up
	// as a module denial rather than acme's 200.
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected the header tenant to be used (403), got %d", resp.StatusCode)
	}
}

func TestLogoutBlacklistDegradesGracefully(t *testing.T) {
	e := newTestEnv(t)
	resp, _ := e.do(http.MethodPost, "/api/auth/logout", nil,
		acmeHeaders(map[string]string{"Authorization": "Bearer " + e.token(t)}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 even without a blacklist backend, got %d", resp.StatusCode)
	}
}

func TestRegisterTenantAndValidateSubdomain(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/register-tenant", map[string]any{
		"tenantName": "Fresh Fest",
		"subdomain":  "freshfest",
		"email":      "admin@freshfest.org",
		"password":   "long enough",
		"modules":    []string{"bar"},
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", resp.StatusCode, env.Message)
	}

	resp, env = e.do(http.MethodGet, "/api/auth/validate-subdomain/acme", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data := env.Data.(map[string]any)
	if data["available"] != false {
		t.Fatalf("acme is taken, got %+v", data)
	}

	resp, env = e.do(http.MethodGet, "/api/auth/validate-subdomain/www", nil, nil)
	data = env.Data.(map[string]any)
	if data["valid"] != false {
		t.Fatalf("reserved label must be invalid, got %+v", data)
	}
	_ = resp
}

func TestRegisterTenantRejectsBadSubdomain(t *testing.T) {
	e := newTestEnv(t)
	resp, env := e.do(http.MethodPost, "/api/auth/register-tenant", map[string]any{
		"tenantName": "Bad",
		"subdomain":  "Not A Label",
		"email":      "admin@bad.org",
		"password":   "long enough",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if len(env.Errors) == 0 || env.Errors[0].Field != "subdomain" {
		t.Fatalf("expected a subdomain field error, got %+v", env.Errors)
	}
}

func TestStubsReturnNotImplemented(t *testing.T) {
	e := newTestEnv(t)
	for _, path := range []string{"/api/auth/refresh-token", "/api/auth/reset-password", "/api/auth/verify-email"} {
		resp, _ := e.do(http.MethodPost, path, nil, nil)
		if resp.StatusCode != http.StatusNotImplemented {
			t.Fatalf("%s: expected 501, got %d", path, resp.StatusCode)
		}
	}
}

func TestLoginRateLimit(t *testing.T) {
	e := newTestEnv(t)
	log := obs.NopLogger()
	tight := ratelimit.New("login", limiter.Rate{Period: time.Minute, Limit: 2}, nil, log)
	// Rebuild the API with a tight login window.
	api := New(Config{
		Log:      log,
		Dev:      true,
		Version:  "test",
		Stores:   Stores{Tenants: e.tenants, Registrar: e.tenants},
		Resolver: tenant.NewResolver(e.tenants, log),
		Codec:    e.codec,
		Loader:   auth.NewLoader(e.users, log),
		Auth:     auth.NewService(e.users, e.codec, log),
		Planner:  schedule.NewService(e.planner, log),
		Blacklist: ratelimit.NewBlacklist(nil, log),
		Limiters:  Limiters{Login: tight, TenantRegistration: tight, PasswordReset: tight},
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	tightEnv := &testEnv{t: t, baseURL: srv.URL, client: srv.Client(), codec: e.codec}

	body := map[string]string{"email": "ada@acme.com", "password": "wrong"}
	var last *http.Response
	for i := 0; i < 3; i++ {
		last, _ = tightEnv.do(http.MethodPost, "/api/auth/login", body, acmeHeaders(nil))
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after exhausting the window, got %d", last.StatusCode)
	}
	if last.Header.Get("X-RateLimit-Limit") == "" {
		t.Fatalf("expected rate limit headers on the rejection")
	}
}

func TestForwardedForCannotEvadeLimit(t *testing.T) {
	e := newTestEnv(t)
	log := obs.NopLogger()
	tight := ratelimit.New("login", limiter.Rate{Period: time.Minute, Limit: 2}, nil, log)
	api := New(Config{
		Log:      log,
		Dev:      true,
		Version:  "test",
		Stores:   Stores{Tenants: e.tenants, Registrar: e.tenants},
		Resolver: tenant.NewResolver(e.tenants, log),
		Codec:    e.codec,
		Loader:   auth.NewLoader(e.users, log),
		Auth:     auth.NewService(e.users, e.codec, log),
		Planner:  schedule.NewService(e.planner, log),
		Blacklist: ratelimit.NewBlacklist(nil, log),
		Limiters:  Limiters{Login: tight, TenantRegistration: tight, PasswordReset: tight},
	})
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	tightEnv := &testEnv{t: t, baseURL: srv.URL, client: srv.Client(), codec: e.codec}

	// Without a trusted proxy, a fresh X-Forwarded-For per request must not
	// grant a fresh window; the real peer address is the key.
	body := map[string]string{"email": "ada@acme.com", "password": "wrong"}
	var last *http.Response
	for i := 0; i < 3; i++ {
		last, _ = tightEnv.do(http.MethodPost, "/api/auth/login", body,
			acmeHeaders(map[string]string{"X-Forwarded-For": fmt.Sprintf("10.9.8.%d", i)}))
	}
	if last.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("spoofed header must not reset the window, got %d", last.StatusCode)
	}
}

func TestGlobalRateLimitRejectsBursts(t *testing.T) {
	var served int
	h := GlobalRateLimit(1, 1, false)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i+1, want, rec.Code)
		}
	}
	if served != 1 {
		t.Fatalf("expected exactly one request through, got %d", served)
	}
}
