package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"plannersuite.org/internal/auth"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func userColumns() []string {
	return []string{
		"id", "organization_id", "email", "password_hash", "status",
		"login_attempts", "last_login_at", "token_version", "created_at", "updated_at",
		"o_id", "o_tenant_id", "o_name", "o_created_at", "o_updated_at",
		"first_name", "last_name", "avatar_url",
	}
}

func TestFindUserByIDHydratesIdentity(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("select u.id, u.organization_id, u.email").
		WithArgs("usr_1").
		WillReturnRows(sqlmock.NewRows(userColumns()).AddRow(
			"usr_1", "org_1", "a@acme.com", "hash", "ACTIVE",
			0, nil, 2, now, now,
			"org_1", "tnt_acme", "Acme Productions", now, now,
			"Ada", "Lovelace", nil,
		))
	mock.ExpectQuery("select ra.role_id, ra.created_at, r.name").
		WithArgs("usr_1").
		WillReturnRows(sqlmock.NewRows([]string{"role_id", "created_at", "name", "description", "p_id", "p_name", "p_desc"}).
			AddRow("rol_1", now, "lighting", "", "prm_1", "read:event", "").
			AddRow("rol_1", now, "lighting", "", "prm_2", "read:team", ""))

	user, err := store.FindUserByID(context.Background(), "usr_1")
	if err != nil {
		t.Fatalf("FindUserByID: %v", err)
	}
	if user.Profile == nil || user.Profile.FirstName != "Ada" {
		t.Fatalf("profile not hydrated: %+v", user.Profile)
	}
	if user.Organization == nil || user.Organization.TenantID != "tnt_acme" {
		t.Fatalf("organization not hydrated: %+v", user.Organization)
	}
	if len(user.Assignments) != 1 {
		t.Fatalf("expected one role assignment, got %d", len(user.Assignments))
	}
	if got := len(user.Assignments[0].Role.Permissions); got != 2 {
		t.Fatalf("expected 2 permissions on the role, got %d", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindUserByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("select u.id, u.organization_id, u.email").
		WithArgs("usr_missing").
		WillReturnRows(sqlmock.NewRows(userColumns()))

	_, err := store.FindUserByID(context.Background(), "usr_missing")
	if !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected auth.ErrNotFound, got %v", err)
	}
}

func TestIncrementLoginAttemptsIsStoreSide(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update users\s+set login_attempts = login_attempts \+ 1`).
		WithArgs("usr_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.IncrementLoginAttempts(context.Background(), "usr_1"); err != nil {
		t.Fatalf("IncrementLoginAttempts: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdatePasswordBumpsTokenVersion(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update users\s+set password_hash = \$2, token_version = token_version \+ 1`).
		WithArgs("usr_1", "newhash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.UpdatePassword(context.Background(), "usr_1", "newhash"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBumpTokenVersionUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update users\s+set token_version = token_version \+ 1`).
		WithArgs("usr_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.BumpTokenVersion(context.Background(), "usr_missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected auth.ErrNotFound, got %v", err)
	}
}

func TestRecordLoginResetsCounter(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`update users\s+set login_attempts = 0, last_login_at = now\(\)`).
		WithArgs("usr_1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.RecordLogin(context.Background(), "usr_1"); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
