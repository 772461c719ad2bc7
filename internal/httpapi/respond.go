package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"plannersuite.org/internal/auth"
	"plannersuite.org/internal/obs"
	"plannersuite.org/internal/schedule"
	"plannersuite.org/internal/tenant"
)

// envelope is the uniform response shape. status is "success" or "error".
type envelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
	Errors  []fieldError `json:"errors,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Status: "success", Message: message, Data: data})
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Status: "error", Message: message})
}

func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, envelope{
		Status:  "error",
		Message: "validation failed",
		Errors:  errs,
	})
}

func notImplemented(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, "not implemented")
}

// decodeJSON decodes the body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// statusFor maps domain sentinels to HTTP statuses. Unmapped errors are
// internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenMalformed),
		errors.Is(err, auth.ErrSignatureInvalid),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenRevoked),
		errors.Is(err, auth.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden),
		errors.Is(err, auth.ErrAccountNotActive),
		errors.Is(err, tenant.ErrInactive),
		errors.Is(err, tenant.ErrSubscriptionExpired),
		errors.Is(err, tenant.ErrModuleDisabled):
		return http.StatusForbidden
	case errors.Is(err, tenant.ErrTenantRequired),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, schedule.ErrInvalidInput),
		errors.Is(err, schedule.ErrInvalidTransition):
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, schedule.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrConflict),
		errors.Is(err, schedule.ErrAlreadyAssigned):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondDomainError writes the mapped status. Internal errors are logged in
// full server-side; clients outside development get a generic message.
func (a *API) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		a.log.WithError(err).WithFields(requestFields(r)).Error("request failed")
		if !a.dev {
			msg = "internal server error"
		}
	}
	if code == http.StatusUnauthorized {
		obsAuthFailure(err)
	}
	writeError(w, code, msg)
}

func obsAuthFailure(err error) {
	reason := "other"
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		reason = "expired"
	case errors.Is(err, auth.ErrTokenMalformed):
		reason = "malformed"
	case errors.Is(err, auth.ErrSignatureInvalid):
		reason = "signature"
	case errors.Is(err, auth.ErrTokenRevoked):
		reason = "revoked"
	case errors.Is(err, auth.ErrInvalidCredentials):
		reason = "credentials"
	}
	obs.ObserveAuthFailure(reason)
}

func trimBearer(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const scheme = "bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	return token, token != ""
}
