package tenant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"plannersuite.org/internal/obs"
)

type fakeStore struct {
	tenants map[string]*Tenant
	modules map[string]bool
	err     error
	lookups int
}

func (f *fakeStore) FindByIDOrSubdomain(ctx context.Context, identifier string) (*Tenant, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	for _, t := range f.tenants {
		if t.ID == identifier || t.Subdomain == identifier {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ModuleActive(ctx context.Context, tenantID string, module Module) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.modules[tenantID+":"+string(module)], nil
}

func activeTenant(id, subdomain string) *Tenant {
	return &Tenant{ID: id, Subdomain: subdomain, Status: StatusActive}
}

func TestCandidateFromHost(t *testing.T) {
	cases := []struct {
		host string
		want string
	}{
		{"acme.planner.app", "acme"},
		{"acme.planner.app:8080", "acme"},
		{"ACME.Planner.App", "acme"},
		{"www.planner.app", ""},
		{"api.planner.app", ""},
		{"app.planner.app", ""},
		{"admin.planner.app", ""},
		{"planner.app", ""},
		{"localhost", ""},
		{"127.0.0.1:8080", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := CandidateFromHost(tc.host); got != tc.want {
			t.Fatalf("CandidateFromHost(%q) = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestRequireHeaderWinsOverSubdomain(t *testing.T) {
	store := &fakeStore{tenants: map[string]*Tenant{
		"acme": activeTenant("tnt_acme", "acme"),
		"beta": activeTenant("tnt_beta", "beta"),
	}}
	r := NewResolver(store, obs.NopLogger())

	resolved, err := r.Require(context.Background(), "acme.planner.app", "beta")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if resolved.ID != "tnt_beta" {
		t.Fatalf("expected header tenant tnt_beta, got %s", resolved.ID)
	}
}

func TestRequireResolvesBySubdomain(t *testing.T) {
	store := &fakeStore{tenants: map[string]*Tenant{"acme": activeTenant("tnt_acme", "acme")}}
	r := NewResolver(store, obs.NopLogger())

	resolved, err := r.Require(context.Background(), "acme.planner.app", "")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if resolved.ID != "tnt_acme" {
		t.Fatalf("unexpected tenant id %s", resolved.ID)
	}
}

func TestRequireNoIdentifier(t *testing.T) {
	r := NewResolver(&fakeStore{}, obs.NopLogger())

	_, err := r.Require(context.Background(), "planner.app", "")
	if !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestRequireAcceptsTenantFromContext(t *testing.T) {
	store := &fakeStore{tenants: map[string]*Tenant{"acme": activeTenant("tnt_acme", "acme")}}
	r := NewResolver(store, obs.NopLogger())

	ctx := ContextWithID(context.Background(), "tnt_acme")
	resolved, err := r.Require(ctx, "planner.app", "")
	if err != nil {
		t.Fatalf("Require: %v", err)
	}
	if resolved.ID != "tnt_acme" {
		t.Fatalf("unexpected tenant id %s", resolved.ID)
	}
}

func TestRequireUnknownTenant(t *testing.T) {
	r := NewResolver(&fakeStore{}, obs.NopLogger())

	_, err := r.Require(context.Background(), "ghost.planner.app", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequireInactiveTenantNamesStatus(t *testing.T) {
	store := &fakeStore{tenants: map[string]*Tenant{
		"acme": {ID: "tnt_acme", Subdomain: "acme", Status: StatusSuspended},
	}}
	r := NewResolver(store, obs.NopLogger())

	_, err := r.Require(context.Background(), "acme.planner.app", "")
	if !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
	if !strings.Contains(err.Error(), string(StatusSuspended)) {
		t.Fatalf("error must name the status, got %q", err.Error())
	}
}

func TestRequireExpiredSubscription(t *testing.T) {
	yesterday := time.Now().Add(-24 * time.Hour)
	store := &fakeStore{tenants: map[string]*Tenant{
		"acme": {ID: "tnt_acme", Subdomain: "acme", Status: StatusActive, SubscriptionEndDate: &yesterday},
	}}
	r := NewResolver(store, obs.NopLogger())

	_, err := r.Require(context.Background(), "acme.planner.app", "")
	if !errors.Is(err, ErrSubscriptionExpired) {
		t.Fatalf("expected ErrSubscriptionExpired, got %v", err)
	}
}

func TestRequireFutureSubscriptionOK(t *testing.T) {
	tomorrow := time.Now().Add(24 * time.Hour)
	store := &fakeStore{tenants: map[string]*Tenant{
		"acme": {ID: "tnt_acme", Subdomain: "acme", Status: StatusActive, SubscriptionEndDate: &tomorrow},
	}}
	r := NewResolver(store, obs.NopLogger())

	if _, err := r.Require(context.Background(), "acme.planner.app", ""); err != nil {
		t.Fatalf("Require: %v", err)
	}
}

func TestIdentifyProceedsWithoutTenant(t *testing.T) {
	r := NewResolver(&fakeStore{}, obs.NopLogger())

	id, err := r.Identify(context.Background(), "ghost.planner.app", "")
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty tenant id, got %q", id)
	}
}

func TestIdentifyPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("store down")
	r := NewResolver(&fakeStore{err: boom}, obs.NopLogger())

	if _, err := r.Identify(context.Background(), "acme.planner.app", ""); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestResolutionIsIdempotent(t *testing.T) {
	store := &fakeStore{tenants: map[string]*Tenant{"acme": activeTenant("tnt_acme", "acme")}}
	r := NewResolver(store, obs.NopLogger())

	first, err1 := r.Require(context.Background(), "acme.planner.app", "")
	second, err2 := r.Require(context.Background(), "acme.planner.app", "")
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if first.ID != second.ID {
		t.Fatalf("resolution not idempotent: %s vs %s", first.ID, second.ID)
	}
}
