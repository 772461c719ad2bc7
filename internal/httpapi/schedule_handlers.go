package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/schedule"
)

// orgID pulls the caller's organization from the hydrated identity. Planner
// data is always scoped by it; client-supplied organization ids are ignored.
func orgID(r *http.Request) (string, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return "", false
	}
	return identity.User.OrganizationID, true
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	sum, err := a.planner.Dashboard(r.Context(), org)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", sum)
}

func (a *API) handleListEvents(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	from, to, err := timeWindow(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := a.planner.ListEvents(r.Context(), org, from, to)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"events": events})
}

func timeWindow(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}

func (a *API) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	identity, _ := auth.IdentityFromContext(r.Context())
	var in schedule.EventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(in); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	e, err := a.planner.CreateEvent(r.Context(), org, identity.User.ID, in)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "event created", e)
}

func (a *API) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	e, err := a.planner.GetEvent(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", e)
}

func (a *API) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var in schedule.EventInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(in); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	e, err := a.planner.UpdateEvent(r.Context(), org, mux.Vars(r)["id"], in)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "event updated", e)
}

func (a *API) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	if err := a.planner.DeleteEvent(r.Context(), org, mux.Vars(r)["id"]); err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "event deleted", nil)
}

func (a *API) handlePublishEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	e, err := a.planner.PublishEvent(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "event published", e)
}

func (a *API) handleCancelEvent(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	e, err := a.planner.CancelEvent(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "event cancelled", e)
}

func (a *API) handleListTeams(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	teams, err := a.planner.ListTeams(r.Context(), org)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"teams": teams})
}

func (a *API) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var in schedule.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(in); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	t, err := a.planner.CreateTeam(r.Context(), org, in)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "team created", t)
}

func (a *API) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	t, err := a.planner.GetTeam(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", t)
}

func (a *API) handleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var in schedule.TeamInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(in); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	t, err := a.planner.UpdateTeam(r.Context(), org, mux.Vars(r)["id"], in)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "team updated", t)
}

func (a *API) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	if err := a.planner.DeleteTeam(r.Context(), org, mux.Vars(r)["id"]); err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "team deleted", nil)
}

type teamMembersRequest struct {
	UserIDs []string `json:"userIds" validate:"required"`
}

func (a *API) handleSetTeamMembers(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var req teamMembersRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.planner.SetTeamMembers(r.Context(), org, mux.Vars(r)["id"], req.UserIDs); err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "team members updated", nil)
}

func (a *API) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	assignments, err := a.planner.ListAssignments(r.Context(), org, mux.Vars(r)["id"])
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "", map[string]any{"assignments": assignments})
}

func (a *API) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var in schedule.AssignmentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errs := checkStruct(in); errs != nil {
		writeValidationErrors(w, errs)
		return
	}
	asg, err := a.planner.CreateAssignment(r.Context(), org, in)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "assignment proposed", asg)
}

type assignmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (a *API) handleSetAssignmentStatus(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	var req assignmentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status := schedule.AssignmentStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	asg, err := a.planner.SetAssignmentStatus(r.Context(), org, mux.Vars(r)["id"], status)
	if err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "assignment updated", asg)
}

func (a *API) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	org, ok := orgID(r)
	if !ok {
		a.respondDomainError(w, r, auth.ErrUnauthenticated)
		return
	}
	if err := a.planner.DeleteAssignment(r.Context(), org, mux.Vars(r)["id"]); err != nil {
		a.respondDomainError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "assignment withdrawn", nil)
}
