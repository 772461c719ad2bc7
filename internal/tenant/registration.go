package tenant

import (
	"context"
	"regexp"
)

// Registration is everything needed to provision a tenant account: the
// tenant itself, its first organization and the administrator login.
type Registration struct {
	TenantName        string
	Subdomain         string
	OrganizationName  string
	AdminEmail        string
	AdminPasswordHash string
	AdminFirstName    string
	AdminLastName     string
	Modules           []Module
}

// Account is the result of a completed registration.
type Account struct {
	Tenant         Tenant
	OrganizationID string
	AdminUserID    string
}

// Registrar provisions tenant accounts atomically: either the whole account
// exists afterwards or none of it does.
type Registrar interface {
	SubdomainAvailable(ctx context.Context, subdomain string) (bool, error)
	CreateAccount(ctx context.Context, reg Registration) (*Account, error)
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidSubdomain reports whether the candidate is a usable tenant subdomain:
// lowercase DNS label, at least three characters, not a reserved label.
func ValidSubdomain(s string) bool {
	if len(s) < 3 || len(s) > 63 {
		return false
	}
	if _, reserved := reservedLabels[s]; reserved {
		return false
	}
	return subdomainPattern.MatchString(s)
}
