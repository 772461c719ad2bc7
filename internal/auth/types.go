package auth

import "time"

const UserStatusActive = "ACTIVE"

// Organization is the unit within a tenant that owns users and events.
type Organization struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User is an account inside exactly one organization.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Status         string     `json:"status"`
	LoginAttempts  int        `json:"-"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	// TokenVersion is a monotonic counter; bumping it invalidates every
	// previously issued credential for this user.
	TokenVersion int       `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Profile      *Profile         `json:"profile,omitempty"`
	Organization *Organization    `json:"organization,omitempty"`
	Assignments  []RoleAssignment `json:"-"`
}

// Profile holds optional display attributes; a user without one is valid.
type Profile struct {
	UserID    string `json:"-"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Permission is a flat "<verb>:<resource>" capability string.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Role groups permissions.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
}

// RoleAssignment links a user to a role.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	Role      *Role     `json:"role,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
