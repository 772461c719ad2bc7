package schedule

import (
	"context"
	"time"
)

// Store is the relational persistence behind the planner. Every read and
// write is scoped by organization id; the store never returns rows owned by
// another organization.
type Store interface {
	CreateEvent(ctx context.Context, e *Event) error
	FindEvent(ctx context.Context, orgID, id string) (*Event, error)
	ListEvents(ctx context.Context, orgID string, from, to time.Time) ([]Event, error)
	UpdateEvent(ctx context.Context, e *Event) error
	DeleteEvent(ctx context.Context, orgID, id string) error

	CreateTeam(ctx context.Context, t *TechnicalTeam) error
	FindTeam(ctx context.Context, orgID, id string) (*TechnicalTeam, error)
	ListTeams(ctx context.Context, orgID string) ([]TechnicalTeam, error)
	UpdateTeam(ctx context.Context, t *TechnicalTeam) error
	DeleteTeam(ctx context.Context, orgID, id string) error
	SetTeamMembers(ctx context.Context, orgID, teamID string, userIDs []string) error

	CreateAssignment(ctx context.Context, orgID string, a *Assignment) error
	FindAssignment(ctx context.Context, orgID, id string) (*Assignment, error)
	ListAssignments(ctx context.Context, orgID, eventID string) ([]Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, orgID, id string, status AssignmentStatus) error
	DeleteAssignment(ctx context.Context, orgID, id string) error

	Dashboard(ctx context.Context, orgID string, now time.Time) (*DashboardSummary, error)
}
