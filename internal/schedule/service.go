package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"plannersuite.org/internal/ids"
	"plannersuite.org/internal/tenant"
)

// Service validates planner operations and delegates persistence. The
// organization id always comes from the authenticated identity, never from
// the request body.
type Service struct {
	store Store
	log   *logrus.Logger
	now   func() time.Time
}

// NewService constructs the planner service.
func NewService(store Store, log *logrus.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(fn func() time.Time) *Service {
	if fn != nil {
		s.now = fn
	}
	return s
}

// EventInput is the caller-supplied part of an event.
type EventInput struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	Location    string        `json:"location" validate:"max=200"`
	Module      tenant.Module `json:"module" validate:"required"`
	StartsAt    time.Time     `json:"startsAt" validate:"required"`
	EndsAt      time.Time     `json:"endsAt" validate:"required"`
}

func (in *EventInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.Module.Valid() {
		return fmt.Errorf("%w: unknown module %q", ErrInvalidInput, in.Module)
	}
	if !in.EndsAt.After(in.StartsAt) {
		return fmt.Errorf("%w: event must end after it starts", ErrInvalidInput)
	}
	return nil
}

// CreateEvent stores a new DRAFT event for the organization.
func (s *Service) CreateEvent(ctx context.Context, orgID, userID string, in EventInput) (*Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e := &Event{
		ID:             ids.Prefixed(ids.PrefixEvent),
		OrganizationID: orgID,
		Title:          in.Title,
		Description:    strings.TrimSpace(in.Description),
		Location:       strings.TrimSpace(in.Location),
		Module:         in.Module,
		Status:         EventDraft,
		StartsAt:       in.StartsAt.UTC(),
		EndsAt:         in.EndsAt.UTC(),
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// GetEvent loads one event within the organization.
func (s *Service) GetEvent(ctx context.Context, orgID, id string) (*Event, error) {
	return s.store.FindEvent(ctx, orgID, id)
}

// ListEvents returns the organization's events inside the window. A zero
// window lists everything.
func (s *Service) ListEvents(ctx context.Context, orgID string, from, to time.Time) ([]Event, error) {
	return s.store.ListEvents(ctx, orgID, from, to)
}

// UpdateEvent replaces the caller-editable fields. Cancelled events are
// read-only.
func (s *Service) UpdateEvent(ctx context.Context, orgID, id string, in EventInput) (*Event, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	e, err := s.store.FindEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if e.Status == EventCancelled {
		return nil, fmt.Errorf("%w: cancelled events cannot be edited", ErrInvalidTransition)
	}
	e.Title = in.Title
	e.Description = strings.TrimSpace(in.Description)
	e.Location = strings.TrimSpace(in.Location)
	e.Module = in.Module
	e.StartsAt = in.StartsAt.UTC()
	e.EndsAt = in.EndsAt.UTC()
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// PublishEvent moves a DRAFT event to PUBLISHED.
func (s *Service) PublishEvent(ctx context.Context, orgID, id string) (*Event, error) {
	return s.setEventStatus(ctx, orgID, id, EventDraft, EventPublished)
}

// CancelEvent cancels a DRAFT or PUBLISHED event.
func (s *Service) CancelEvent(ctx context.Context, orgID, id string) (*Event, error) {
	e, err := s.store.FindEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if e.Status == EventCancelled {
		return nil, fmt.Errorf("%w: event is already cancelled", ErrInvalidTransition)
	}
	e.Status = EventCancelled
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) setEventStatus(ctx context.Context, orgID, id string, from, to EventStatus) (*Event, error) {
	e, err := s.store.FindEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != from {
		return nil, fmt.Errorf("%w: event is %s", ErrInvalidTransition, e.Status)
	}
	e.Status = to
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEvent removes the event and its assignments.
func (s *Service) DeleteEvent(ctx context.Context, orgID, id string) error {
	return s.store.DeleteEvent(ctx, orgID, id)
}

// TeamInput is the caller-supplied part of a technical team.
type TeamInput struct {
	Name        string        `json:"name" validate:"required,max=120"`
	Description string        `json:"description" validate:"max=2000"`
	Module      tenant.Module `json:"module" validate:"required"`
}

// CreateTeam stores a new technical team.
func (s *Service) CreateTeam(ctx context.Context, orgID string, in TeamInput) (*TechnicalTeam, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !in.Module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, in.Module)
	}
	now := s.now().UTC()
	t := &TechnicalTeam{
		ID:             ids.Prefixed(ids.PrefixTeam),
		OrganizationID: orgID,
		Name:           in.Name,
		Description:    strings.TrimSpace(in.Description),
		Module:         in.Module,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTeam(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// GetTeam loads one team within the organization.
func (s *Service) GetTeam(ctx context.Context, orgID, id string) (*TechnicalTeam, error) {
	return s.store.FindTeam(ctx, orgID, id)
}

// ListTeams returns all the organization's teams.
func (s *Service) ListTeams(ctx context.Context, orgID string) ([]TechnicalTeam, error) {
	return s.store.ListTeams(ctx, orgID)
}

// UpdateTeam replaces the caller-editable fields.
func (s *Service) UpdateTeam(ctx context.Context, orgID, id string, in TeamInput) (*TechnicalTeam, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if !in.Module.Valid() {
		return nil, fmt.Errorf("%w: unknown module %q", ErrInvalidInput, in.Module)
	}
	t, err := s.store.FindTeam(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	t.Name = in.Name
	t.Description = strings.TrimSpace(in.Description)
	t.Module = in.Module
	t.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateTeam(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SetTeamMembers replaces the team's member list.
func (s *Service) SetTeamMembers(ctx context.Context, orgID, teamID string, userIDs []string) error {
	if _, err := s.store.FindTeam(ctx, orgID, teamID); err != nil {
		return err
	}
	return s.store.SetTeamMembers(ctx, orgID, teamID, userIDs)
}

// DeleteTeam removes the team.
func (s *Service) DeleteTeam(ctx context.Context, orgID, id string) error {
	return s.store.DeleteTeam(ctx, orgID, id)
}

// AssignmentInput proposes one user for one event.
type AssignmentInput struct {
	EventID  string `json:"eventId" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	RoleName string `json:"roleName" validate:"max=120"`
}

// CreateAssignment proposes a user for an event. The event must exist in the
// organization; the store enforces one assignment per (event, user).
func (s *Service) CreateAssignment(ctx context.Context, orgID string, in AssignmentInput) (*Assignment, error) {
	in.EventID = strings.TrimSpace(in.EventID)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.EventID == "" || in.UserID == "" {
		return nil, fmt.Errorf("%w: eventId and userId are required", ErrInvalidInput)
	}
	if _, err := s.store.FindEvent(ctx, orgID, in.EventID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	a := &Assignment{
		ID:        ids.Prefixed(ids.PrefixAssignment),
		EventID:   in.EventID,
		UserID:    in.UserID,
		RoleName:  strings.TrimSpace(in.RoleName),
		Status:    AssignmentProposed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAssignment(ctx, orgID, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListAssignments returns the assignments for one event.
func (s *Service) ListAssignments(ctx context.Context, orgID, eventID string) ([]Assignment, error) {
	return s.store.ListAssignments(ctx, orgID, eventID)
}

// SetAssignmentStatus applies one step of the PROPOSED → ACCEPTED/DECLINED →
// CONFIRMED handshake.
func (s *Service) SetAssignmentStatus(ctx context.Context, orgID, id string, status AssignmentStatus) (*Assignment, error) {
	a, err := s.store.FindAssignment(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(a.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, a.Status, status)
	}
	if err := s.store.UpdateAssignmentStatus(ctx, orgID, id, status); err != nil {
		return nil, err
	}
	a.Status = status
	a.UpdatedAt = s.now().UTC()
	return a, nil
}

// DeleteAssignment withdraws an assignment.
func (s *Service) DeleteAssignment(ctx context.Context, orgID, id string) error {
	return s.store.DeleteAssignment(ctx, orgID, id)
}

// Dashboard aggregates the planner landing page summary.
func (s *Service) Dashboard(ctx context.Context, orgID string) (*DashboardSummary, error) {
	return s.store.Dashboard(ctx, orgID, s.now().UTC())
}
