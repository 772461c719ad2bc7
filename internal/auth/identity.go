package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Identity is a fully hydrated caller: the user record with profile and
// organization, plus the effective permission set. It is recomputed on every
// authenticated request; nothing is cached across requests, so a role change
// takes effect on the affected user's next request.
type Identity struct {
	User        *User
	Permissions map[string]struct{}
}

// HasPermission reports whether the identity holds the named permission.
func (id *Identity) HasPermission(name string) bool {
	if id == nil {
		return false
	}
	_, ok := id.Permissions[name]
	return ok
}

// PermissionNames returns the permission set as a slice, for responses.
func (id *Identity) PermissionNames() []string {
	if id == nil {
		return nil
	}
	out := make([]string, 0, len(id.Permissions))
	for name := range id.Permissions {
		out = append(out, name)
	}
	return out
}

// Loader turns a verified credential payload into an Identity. Each step is
// a hard gate; the first failure short-circuits.
type Loader struct {
	store Store
	log   *logrus.Logger
}

// NewLoader constructs a Loader backed by the credential store.
func NewLoader(store Store, log *logrus.Logger) *Loader {
	return &Loader{store: store, log: log}
}

// Load hydrates the identity behind the claims. Gates, in order: the user
// exists, the embedded token version matches the stored one, and the account
// is ACTIVE.
func (l *Loader) Load(ctx context.Context, claims *Claims) (*Identity, error) {
	user, err := l.store.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrTokenRevoked
	}

	if user.Status != UserStatusActive {
		return nil, fmt.Errorf("%w: account is %s", ErrAccountNotActive, user.Status)
	}

	// The freshly loaded organization is authoritative; a mismatch with the
	// token is logged for forgery detection but does not fail the request.
	if claims.OrganizationID != "" && claims.OrganizationID != user.OrganizationID {
		l.log.WithFields(logrus.Fields{
			"user_id":   user.ID,
			"token_org": claims.OrganizationID,
			"db_org":    user.OrganizationID,
		}).Warn("organization mismatch between token and credential store")
	}

	return &Identity{
		User:        user,
		Permissions: EffectivePermissions(user.Assignments),
	}, nil
}
