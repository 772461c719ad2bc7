package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Service owns the credential lifecycle: login, password changes and bulk
// invalidation.
type Service struct {
	store Store
	codec *Codec
	log   *logrus.Logger
}

// NewService constructs the auth service.
func NewService(store Store, codec *Codec, log *logrus.Logger) *Service {
	return &Service{store: store, codec: codec, log: log}
}

// LoginResult carries the signed credential and the authenticated user.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *User
}

// Login authenticates email+password inside a resolved tenant. Failed
// attempts increment the user's failure counter atomically at the store; the
// caller always receives the same generic ErrInvalidCredentials so the
// existence of an email is never revealed.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (*LoginResult, error) {
	tenantID = strings.TrimSpace(tenantID)
	email = strings.TrimSpace(strings.ToLower(email))
	if tenantID == "" || email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.FindUserForLogin(ctx, tenantID, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		if ierr := s.store.IncrementLoginAttempts(ctx, user.ID); ierr != nil {
			s.log.WithError(ierr).WithField("user_id", user.ID).Error("failed to record login attempt")
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLogin(ctx, user.ID); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.codec.Issue(user.ID, user.Email, user.OrganizationID, tenantID, user.TokenVersion)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, ExpiresAt: expiresAt, User: user}, nil
}

// ChangePassword verifies the current password, stores the new hash and bumps
// the token version so every outstanding credential is invalidated.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	next = strings.TrimSpace(next)
	if len(next) < 8 {
		return ErrInvalidInput
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.UpdatePassword(ctx, user.ID, hash)
}

// Revoke invalidates every outstanding credential for the user via a
// token-version bump. Used for forced logout.
func (s *Service) Revoke(ctx context.Context, userID string) error {
	return s.store.BumpTokenVersion(ctx, userID)
}
