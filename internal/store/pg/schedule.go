package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"plannersuite.org/internal/schedule"
)

var _ schedule.Store = (*Store)(nil)

func (s *Store) CreateEvent(ctx context.Context, e *schedule.Event) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		insert into events (id, organization_id, title, description, location,
		                    module, status, starts_at, ends_at, created_by, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, e.OrganizationID, e.Title, nullIfEmpty(e.Description), nullIfEmpty(e.Location),
		e.Module, e.Status, e.StartsAt, e.EndsAt, e.CreatedBy, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return schedule.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) FindEvent(ctx context.Context, orgID, id string) (*schedule.Event, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	return scanEvent(s.db.QueryRowContext(ctx, `
		select id, organization_id, title, coalesce(description, ''), coalesce(location, ''),
		       module, status, starts_at, ends_at, created_by, created_at, updated_at
		from events
		where organization_id = $1 and id = $2
	`, orgID, id))
}

func (s *Store) ListEvents(ctx context.Context, orgID string, from, to time.Time) ([]schedule.Event, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, title, coalesce(description, ''), coalesce(location, ''),
		       module, status, starts_at, ends_at, created_by, created_at, updated_at
		from events
		where organization_id = $1
		  and ($2::timestamptz is null or ends_at >= $2)
		  and ($3::timestamptz is null or starts_at <= $3)
		order by starts_at
	`, orgID, nullIfZero(from), nullIfZero(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Event
	for rows.Next() {
		var e schedule.Event
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
			&e.Module, &e.Status, &e.StartsAt, &e.EndsAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, e *schedule.Event) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update events
		set title = $3, description = $4, location = $5, module = $6,
		    status = $7, starts_at = $8, ends_at = $9, updated_at = $10
		where organization_id = $1 and id = $2
	`, e.OrganizationID, e.ID, e.Title, nullIfEmpty(e.Description), nullIfEmpty(e.Location),
		e.Module, e.Status, e.StartsAt, e.EndsAt, e.UpdatedAt)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

func (s *Store) DeleteEvent(ctx context.Context, orgID, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		delete from events where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

func scanEvent(row *sql.Row) (*schedule.Event, error) {
	var e schedule.Event
	err := row.Scan(&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Location,
		&e.Module, &e.Status, &e.StartsAt, &e.EndsAt, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) CreateTeam(ctx context.Context, t *schedule.TechnicalTeam) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		insert into technical_teams (id, organization_id, name, description, module, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.OrganizationID, t.Name, nullIfEmpty(t.Description), t.Module, t.CreatedAt, t.UpdatedAt)
	return err
}

func (s *Store) FindTeam(ctx context.Context, orgID, id string) (*schedule.TechnicalTeam, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var t schedule.TechnicalTeam
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, coalesce(description, ''), module, created_at, updated_at
		from technical_teams
		where organization_id = $1 and id = $2
	`, orgID, id).Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.Module, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select user_id from team_members where team_id = $1 order by user_id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		t.MemberIDs = append(t.MemberIDs, userID)
	}
	return &t, rows.Err()
}

func (s *Store) ListTeams(ctx context.Context, orgID string) ([]schedule.TechnicalTeam, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, coalesce(description, ''), module, created_at, updated_at
		from technical_teams
		where organization_id = $1
		order by name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.TechnicalTeam
	for rows.Next() {
		var t schedule.TechnicalTeam
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Name, &t.Description, &t.Module, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpdateTeam(ctx context.Context, t *schedule.TechnicalTeam) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update technical_teams
		set name = $3, description = $4, module = $5, updated_at = $6
		where organization_id = $1 and id = $2
	`, t.OrganizationID, t.ID, t.Name, nullIfEmpty(t.Description), t.Module, t.UpdatedAt)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

func (s *Store) DeleteTeam(ctx context.Context, orgID, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		delete from technical_teams where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

// SetTeamMembers replaces the member list in one transaction.
func (s *Store) SetTeamMembers(ctx context.Context, orgID, teamID string, userIDs []string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `
		select 1 from technical_teams where organization_id = $1 and id = $2
	`, orgID, teamID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return schedule.ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from team_members where team_id = $1`, teamID); err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into team_members (team_id, user_id) values ($1, $2)
			on conflict do nothing
		`, teamID, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CreateAssignment(ctx context.Context, orgID string, a *schedule.Assignment) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		insert into event_assignments (id, event_id, user_id, role_name, status, created_at, updated_at)
		select $1, e.id, $3, $4, $5, $6, $7
		from events e
		where e.organization_id = $8 and e.id = $2
	`, a.ID, a.EventID, a.UserID, nullIfEmpty(a.RoleName), a.Status, a.CreatedAt, a.UpdatedAt, orgID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return schedule.ErrAlreadyAssigned
		}
		return err
	}
	return requireOneScheduleRow(res)
}

func (s *Store) FindAssignment(ctx context.Context, orgID, id string) (*schedule.Assignment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var a schedule.Assignment
	err := s.db.QueryRowContext(ctx, `
		select a.id, a.event_id, a.user_id, coalesce(a.role_name, ''), a.status, a.created_at, a.updated_at
		from event_assignments a
		join events e on e.id = a.event_id
		where e.organization_id = $1 and a.id = $2
	`, orgID, id).Scan(&a.ID, &a.EventID, &a.UserID, &a.RoleName, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAssignments(ctx context.Context, orgID, eventID string) ([]schedule.Assignment, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		select a.id, a.event_id, a.user_id, coalesce(a.role_name, ''), a.status, a.created_at, a.updated_at
		from event_assignments a
		join events e on e.id = a.event_id
		where e.organization_id = $1 and a.event_id = $2
		order by a.created_at
	`, orgID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Assignment
	for rows.Next() {
		var a schedule.Assignment
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.RoleName, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpdateAssignmentStatus(ctx context.Context, orgID, id string, status schedule.AssignmentStatus) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		update event_assignments a
		set status = $3, updated_at = now()
		from events e
		where e.id = a.event_id and e.organization_id = $1 and a.id = $2
	`, orgID, id, status)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

func (s *Store) DeleteAssignment(ctx context.Context, orgID, id string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		delete from event_assignments a
		using events e
		where e.id = a.event_id and e.organization_id = $1 and a.id = $2
	`, orgID, id)
	if err != nil {
		return err
	}
	return requireOneScheduleRow(res)
}

// Dashboard aggregates the landing page counters in one round trip.
func (s *Store) Dashboard(ctx context.Context, orgID string, now time.Time) (*schedule.DashboardSummary, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var sum schedule.DashboardSummary
	err := s.db.QueryRowContext(ctx, `
		select
			(select count(*) from events where organization_id = $1 and status = 'PUBLISHED' and starts_at > $2),
			(select count(*) from events where organization_id = $1 and status = 'DRAFT'),
			(select count(*) from event_assignments a join events e on e.id = a.event_id
			 where e.organization_id = $1 and a.status = 'PROPOSED'),
			(select count(*) from technical_teams where organization_id = $1)
	`, orgID, now).Scan(&sum.UpcomingEvents, &sum.DraftEvents, &sum.PendingAssignments, &sum.Teams)
	if err != nil {
		return nil, err
	}
	return &sum, nil
}

func requireOneScheduleRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
