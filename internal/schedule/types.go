// Package schedule holds the stage-planner domain: events, technical teams
// and the assignment of crew members to events. Everything is owned by one
// organization; cross-organization reads never happen.
package schedule

import (
	"time"

	"plannersuite.org/internal/tenant"
)

// EventStatus is the publication state of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "DRAFT"
	EventPublished EventStatus = "PUBLISHED"
	EventCancelled EventStatus = "CANCELLED"
)

// Event is a scheduled production: a concert night, a festival day, a
// private booking.
type Event struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organizationId"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	Location       string        `json:"location,omitempty"`
	Module         tenant.Module `json:"module"`
	Status         EventStatus   `json:"status"`
	StartsAt       time.Time     `json:"startsAt"`
	EndsAt         time.Time     `json:"endsAt"`
	CreatedBy      string        `json:"createdBy"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// TechnicalTeam is a named crew within one module, e.g. the lighting team.
type TechnicalTeam struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organizationId"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Module         tenant.Module `json:"module"`
	MemberIDs      []string      `json:"memberIds,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// AssignmentStatus tracks the handshake between planner and crew member.
type AssignmentStatus string

const (
	AssignmentProposed  AssignmentStatus = "PROPOSED"
	AssignmentAccepted  AssignmentStatus = "ACCEPTED"
	AssignmentDeclined  AssignmentStatus = "DECLINED"
	AssignmentConfirmed AssignmentStatus = "CONFIRMED"
)

// Assignment links one user to one event in a given role.
type Assignment struct {
	ID        string           `json:"id"`
	EventID   string           `json:"eventId"`
	UserID    string           `json:"userId"`
	RoleName  string           `json:"roleName,omitempty"`
	Status    AssignmentStatus `json:"status"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// DashboardSummary aggregates the planner landing page numbers.
type DashboardSummary struct {
	UpcomingEvents     int `json:"upcomingEvents"`
	DraftEvents        int `json:"draftEvents"`
	PendingAssignments int `json:"pendingAssignments"`
	Teams              int `json:"teams"`
}

// assignmentTransitions is the allowed status graph. CONFIRMED and DECLINED
// are terminal.
var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentProposed: {AssignmentAccepted, AssignmentDeclined},
	AssignmentAccepted: {AssignmentConfirmed, AssignmentDeclined},
}

// CanTransition reports whether the assignment status change is allowed.
func CanTransition(from, to AssignmentStatus) bool {
	for _, next := range assignmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
