package auth

import "context"

// Store describes the credential-store operations the auth subsystem needs.
// The relational store behind it is consulted, never owned.
type Store interface {
	// FindUserByID loads the full user record: profile, organization and
	// role assignments with their roles and permissions. ErrNotFound when
	// the user does not exist.
	FindUserByID(ctx context.Context, id string) (*User, error)

	// FindUserForLogin locates an ACTIVE user by email within the tenant's
	// organizations. ErrNotFound is indistinguishable from a wrong password
	// at the API surface.
	FindUserForLogin(ctx context.Context, tenantID, email string) (*User, error)

	// IncrementLoginAttempts atomically bumps the failure counter at the
	// store level; never read-modify-write in application code.
	IncrementLoginAttempts(ctx context.Context, userID string) error

	// RecordLogin resets the failure counter and stamps last_login_at.
	RecordLogin(ctx context.Context, userID string) error

	// UpdatePassword stores a new hash and bumps token_version in the same
	// statement, invalidating all outstanding credentials.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// BumpTokenVersion invalidates all outstanding credentials for the user.
	BumpTokenVersion(ctx context.Context, userID string) error
}
