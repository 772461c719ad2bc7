package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"plannersuite.org/internal/tenant"
)

func tenantColumns() []string {
	return []string{"id", "name", "subdomain", "status", "subscription_end_date", "created_at", "updated_at"}
}

func TestFindByIDOrSubdomainSingleQuery(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	end := now.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(`where id = \$1 or subdomain = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows(tenantColumns()).
			AddRow("tnt_acme", "Acme Productions", "acme", "ACTIVE", end, now, now))

	got, err := store.FindByIDOrSubdomain(context.Background(), "acme")
	if err != nil {
		t.Fatalf("FindByIDOrSubdomain: %v", err)
	}
	if got.ID != "tnt_acme" || got.Subdomain != "acme" {
		t.Fatalf("unexpected tenant %+v", got)
	}
	if got.SubscriptionEndDate == nil || !got.SubscriptionEndDate.Equal(end) {
		t.Fatalf("subscription end not hydrated: %v", got.SubscriptionEndDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindByIDOrSubdomainNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`where id = \$1 or subdomain = \$1`).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(tenantColumns()))

	_, err := store.FindByIDOrSubdomain(context.Background(), "ghost")
	if !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("expected tenant.ErrNotFound, got %v", err)
	}
}

func TestModuleActiveNoRowMeansInactive(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select is_active\s+from module_activations`).
		WithArgs("tnt_acme", tenant.ModuleBar).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}))

	active, err := store.ModuleActive(context.Background(), "tnt_acme", tenant.ModuleBar)
	if err != nil {
		t.Fatalf("ModuleActive: %v", err)
	}
	if active {
		t.Fatalf("missing activation row must read as inactive")
	}
}

func TestModuleActiveExactMatch(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select is_active\s+from module_activations`).
		WithArgs("tnt_acme", tenant.ModuleStage).
		WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))

	active, err := store.ModuleActive(context.Background(), "tnt_acme", tenant.ModuleStage)
	if err != nil {
		t.Fatalf("ModuleActive: %v", err)
	}
	if !active {
		t.Fatalf("expected stage module to be active")
	}
}

func TestSubdomainAvailable(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`select 1 from tenants where subdomain = \$1`).
		WithArgs("fresh").
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectQuery(`select 1 from tenants where subdomain = \$1`).
		WithArgs("acme").
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	free, err := store.SubdomainAvailable(context.Background(), "fresh")
	if err != nil || !free {
		t.Fatalf("expected fresh to be available, got %v %v", free, err)
	}
	taken, err := store.SubdomainAvailable(context.Background(), "acme")
	if err != nil || taken {
		t.Fatalf("expected acme to be taken, got %v %v", taken, err)
	}
}

func TestCreateAccountIsTransactional(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("insert into tenants").
		WithArgs(sqlmock.AnyArg(), "Acme Productions", "acme", tenant.StatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subdomain", "status", "created_at", "updated_at"}).
			AddRow("tnt_1", "Acme Productions", "acme", "ACTIVE", now, now))
	mock.ExpectExec("insert into module_activations").
		WithArgs(sqlmock.AnyArg(), tenant.ModuleStage).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into organizations").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Acme Productions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into users").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "admin@acme.com", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into profiles").
		WithArgs(sqlmock.AnyArg(), "Ada", "Lovelace").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into roles").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into role_permissions").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 14))
	mock.ExpectExec("insert into role_assignments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	acc, err := store.CreateAccount(context.Background(), tenant.Registration{
		TenantName:        "Acme Productions",
		Subdomain:         "acme",
		OrganizationName:  "Acme Productions",
		AdminEmail:        "admin@acme.com",
		AdminPasswordHash: "hash",
		AdminFirstName:    "Ada",
		AdminLastName:     "Lovelace",
		Modules:           []tenant.Module{tenant.ModuleStage},
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.Tenant.ID != "tnt_1" || acc.OrganizationID == "" || acc.AdminUserID == "" {
		t.Fatalf("account not fully provisioned: %+v", acc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
