package pg

import (
	"context"
	"database/sql"
	"errors"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/ids"
	"plannersuite.org/internal/tenant"
)

var (
	_ tenant.Store     = (*Store)(nil)
	_ tenant.Registrar = (*Store)(nil)
)

// FindByIDOrSubdomain resolves one tenant by either identifier in a single
// query. The match is case-sensitive; callers normalize subdomains first.
func (s *Store) FindByIDOrSubdomain(ctx context.Context, identifier string) (*tenant.Tenant, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		t       tenant.Tenant
		subsEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		select id, name, subdomain, status, subscription_end_date, created_at, updated_at
		from tenants
		where id = $1 or subdomain = $1
	`, identifier).Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &subsEnd, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if subsEnd.Valid {
		end := subsEnd.Time
		t.SubscriptionEndDate = &end
	}
	return &t, nil
}

// ModuleActive reports whether the tenant has an active activation row for
// exactly this module. No row means inactive.
func (s *Store) ModuleActive(ctx context.Context, tenantID string, module tenant.Module) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var active bool
	err := s.db.QueryRowContext(ctx, `
		select is_active
		from module_activations
		where tenant_id = $1 and module = $2
	`, tenantID, module).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return active, nil
}

// SubdomainAvailable reports whether no tenant holds the subdomain yet.
func (s *Store) SubdomainAvailable(ctx context.Context, subdomain string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx, `select 1 from tenants where subdomain = $1`, subdomain).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// CreateAccount provisions a full tenant account in one transaction: tenant,
// module activations, organization, administrator with profile, and an
// administrator role holding the entire permission catalog.
func (s *Store) CreateAccount(ctx context.Context, reg tenant.Registration) (*tenant.Account, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	tenantID := ids.Prefixed(ids.PrefixTenant)
	var t tenant.Tenant
	err = tx.QueryRowContext(ctx, `
		insert into tenants (id, name, subdomain, status)
		values ($1, $2, $3, $4)
		returning id, name, subdomain, status, created_at, updated_at
	`, tenantID, reg.TenantName, reg.Subdomain, tenant.StatusActive).
		Scan(&t.ID, &t.Name, &t.Subdomain, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return nil, auth.ErrConflict
		}
		return nil, err
	}

	for _, m := range reg.Modules {
		if _, err := tx.ExecContext(ctx, `
			insert into module_activations (tenant_id, module, is_active)
			values ($1, $2, true)
			on conflict (tenant_id, module) do update set is_active = true
		`, tenantID, m); err != nil {
			return nil, err
		}
	}

	orgID := ids.Prefixed(ids.PrefixOrganization)
	if _, err := tx.ExecContext(ctx, `
		insert into organizations (id, tenant_id, name)
		values ($1, $2, $3)
	`, orgID, tenantID, reg.OrganizationName); err != nil {
		return nil, err
	}

	userID := ids.Prefixed(ids.PrefixUser)
	if _, err := tx.ExecContext(ctx, `
		insert into users (id, organization_id, email, password_hash, status)
		values ($1, $2, $3, $4, $5)
	`, userID, orgID, reg.AdminEmail, reg.AdminPasswordHash, auth.UserStatusActive); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return nil, auth.ErrConflict
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into profiles (user_id, first_name, last_name)
		values ($1, $2, $3)
	`, userID, reg.AdminFirstName, reg.AdminLastName); err != nil {
		return nil, err
	}

	roleID := ids.Prefixed(ids.PrefixRole)
	if _, err := tx.ExecContext(ctx, `
		insert into roles (id, organization_id, name, description)
		values ($1, $2, 'administrator', 'Full access to every permission')
	`, roleID, orgID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into role_permissions (role_id, permission_id)
		select $1, id from permissions
	`, roleID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		insert into role_assignments (user_id, role_id)
		values ($1, $2)
	`, userID, roleID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &tenant.Account{Tenant: t, OrganizationID: orgID, AdminUserID: userID}, nil
}
