package auth

import "errors"

// Credential and identity failures. Messages are client-safe verbatim; the
// distinction between expiry and invalidity matters to clients (expired may
// refresh, invalid must re-authenticate).
var (
	ErrTokenMalformed   = errors.New("malformed token")
	ErrSignatureInvalid = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	// ErrTokenRevoked means a structurally valid token was superseded by a
	// token-version bump or an explicit logout.
	ErrTokenRevoked = errors.New("token revoked, please sign in again")

	ErrUserNotFound = errors.New("no user found for this token")
	// ErrAccountNotActive is always wrapped with the actual account status.
	ErrAccountNotActive = errors.New("account not active")

	// ErrInvalidCredentials deliberately never reveals whether the email
	// exists.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("insufficient permissions")

	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("resource conflict")
)
