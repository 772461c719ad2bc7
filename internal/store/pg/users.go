package pg

import (
	"context"
	"database/sql"
	"errors"

	"plannersuite.org/internal/auth"
)

var _ auth.Store = (*Store)(nil)

// FindUserByID loads the full user record needed to hydrate an identity:
// profile, organization and role assignments with their permissions.
func (s *Store) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.scanUser(s.db.QueryRowContext(ctx, `
		select u.id, u.organization_id, u.email, u.password_hash, u.status,
		       u.login_attempts, u.last_login_at, u.token_version,
		       u.created_at, u.updated_at,
		       o.id, o.tenant_id, o.name, o.created_at, o.updated_at,
		       p.first_name, p.last_name, p.avatar_url
		from users u
		join organizations o on o.id = u.organization_id
		left join profiles p on p.user_id = u.id
		where u.id = $1
	`, id))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FindUserForLogin locates an ACTIVE user by email across the tenant's
// organizations. ErrNotFound deliberately looks like a wrong password to the
// API caller.
func (s *Store) FindUserForLogin(ctx context.Context, tenantID, email string) (*auth.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	user, err := s.scanUser(s.db.QueryRowContext(ctx, `
		select u.id, u.organization_id, u.email, u.password_hash, u.status,
		       u.login_attempts, u.last_login_at, u.token_version,
		       u.created_at, u.updated_at,
		       o.id, o.tenant_id, o.name, o.created_at, o.updated_at,
		       p.first_name, p.last_name, p.avatar_url
		from users u
		join organizations o on o.id = u.organization_id
		left join profiles p on p.user_id = u.id
		where o.tenant_id = $1 and lower(u.email) = lower($2) and u.status = $3
	`, tenantID, email, auth.UserStatusActive))
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u         auth.User
		org       auth.Organization
		lastLogin sql.NullTime
		firstName sql.NullString
		lastName  sql.NullString
		avatarURL sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Status,
		&u.LoginAttempts, &lastLogin, &u.TokenVersion,
		&u.CreatedAt, &u.UpdatedAt,
		&org.ID, &org.TenantID, &org.Name, &org.CreatedAt, &org.UpdatedAt,
		&firstName, &lastName, &avatarURL,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	u.Organization = &org
	if firstName.Valid || lastName.Valid || avatarURL.Valid {
		u.Profile = &auth.Profile{
			UserID:    u.ID,
			FirstName: firstName.String,
			LastName:  lastName.String,
			AvatarURL: avatarURL.String,
		}
	}
	return &u, nil
}

// loadAssignments hydrates role assignments with their roles and each role's
// permission list.
func (s *Store) loadAssignments(ctx context.Context, user *auth.User) error {
	rows, err := s.db.QueryContext(ctx, `
		select ra.role_id, ra.created_at, r.name, r.description,
		       coalesce(p.id, ''), coalesce(p.name, ''), coalesce(p.description, '')
		from role_assignments ra
		join roles r on r.id = ra.role_id
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		where ra.user_id = $1
		order by ra.role_id
	`, user.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	byRole := map[string]*auth.RoleAssignment{}
	var order []string
	for rows.Next() {
		var (
			roleID, roleName, roleDesc string
			permID, permName, permDesc string
			assignedAt                 sql.NullTime
		)
		if err := rows.Scan(&roleID, &assignedAt, &roleName, &roleDesc, &permID, &permName, &permDesc); err != nil {
			return err
		}
		a, ok := byRole[roleID]
		if !ok {
			a = &auth.RoleAssignment{
				UserID: user.ID,
				RoleID: roleID,
				Role:   &auth.Role{ID: roleID, Name: roleName, Description: roleDesc},
			}
			if assignedAt.Valid {
				a.CreatedAt = assignedAt.Time
			}
			byRole[roleID] = a
			order = append(order, roleID)
		}
		if permName != "" {
			a.Role.Permissions = append(a.Role.Permissions, auth.Permission{ID: permID, Name: permName, Description: permDesc})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	user.Assignments = user.Assignments[:0]
	for _, roleID := range order {
		user.Assignments = append(user.Assignments, *byRole[roleID])
	}
	return nil
}

// IncrementLoginAttempts bumps the failure counter inside the database so
// concurrent failures never lose an increment.
func (s *Store) IncrementLoginAttempts(ctx context.Context, userID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users
		set login_attempts = login_attempts + 1, updated_at = now()
		where id = $1
	`, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// RecordLogin resets the failure counter and stamps the login time.
func (s *Store) RecordLogin(ctx context.Context, userID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users
		set login_attempts = 0, last_login_at = now(), updated_at = now()
		where id = $1
	`, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// UpdatePassword stores the new hash and bumps token_version in the same
// statement so no credential signed against the old password survives.
func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users
		set password_hash = $2, token_version = token_version + 1, updated_at = now()
		where id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// BumpTokenVersion invalidates every outstanding credential for the user.
func (s *Store) BumpTokenVersion(ctx context.Context, userID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update users
		set token_version = token_version + 1, updated_at = now()
		where id = $1
	`, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return auth.ErrNotFound
	}
	return nil
}
