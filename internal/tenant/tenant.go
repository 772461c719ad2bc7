package tenant

import (
	"errors"
	"time"
)

// Status is the tenant lifecycle state. Only ACTIVE tenants are servable.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusPending   Status = "PENDING"
	StatusCancelled Status = "CANCELLED"
)

// Tenant is the top-level multi-tenancy boundary: an isolated customer
// account addressed by id or by subdomain.
type Tenant struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Subdomain           string     `json:"subdomain"`
	Status              Status     `json:"status"`
	SubscriptionEndDate *time.Time `json:"subscription_end_date,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// SubscriptionValid reports whether the tenant subscription covers the given
// instant. A missing end date means an open-ended subscription.
func (t *Tenant) SubscriptionValid(now time.Time) bool {
	return t.SubscriptionEndDate == nil || t.SubscriptionEndDate.After(now)
}

// Module is a pluggable planning domain a tenant can activate independently.
type Module string

const (
	ModuleStage     Module = "STAGE"
	ModuleBar       Module = "BAR"
	ModuleSecurity  Module = "SECURITY"
	ModuleCleaning  Module = "CLEANING"
	ModuleMerchants Module = "MERCHANTS"
	ModuleFestival  Module = "FESTIVAL"
	ModuleLife      Module = "LIFE"
)

// Modules is the closed set of known planning modules.
var Modules = []Module{
	ModuleStage,
	ModuleBar,
	ModuleSecurity,
	ModuleCleaning,
	ModuleMerchants,
	ModuleFestival,
	ModuleLife,
}

// Valid reports whether m belongs to the closed module set.
func (m Module) Valid() bool {
	for _, known := range Modules {
		if m == known {
			return true
		}
	}
	return false
}

// ModuleActivation records that a tenant switched a module on or off.
// A module is usable iff an activation row exists with IsActive true for the
// exact (tenant, module) pair. No inheritance, no wildcards.
type ModuleActivation struct {
	TenantID  string    `json:"tenant_id"`
	Module    Module    `json:"module"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Error messages below are returned verbatim to clients, so they carry no
// internal detail.
var (
	ErrTenantRequired = errors.New("tenant required: provide a valid subdomain or X-Tenant-Id header")
	ErrNotFound       = errors.New("tenant not found")
	// ErrInactive is always wrapped with the actual status, see Resolver.Require.
	ErrInactive            = errors.New("tenant inactive")
	ErrSubscriptionExpired = errors.New("subscription expired: please renew your subscription")
	ErrModuleDisabled      = errors.New("module not enabled for this tenant")
)
