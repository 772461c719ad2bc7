package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Entity prefixes used across the platform so an identifier is
// self-describing in logs and support tickets.
const (
	PrefixTenant       = "tnt"
	PrefixOrganization = "org"
	PrefixUser         = "usr"
	PrefixRole         = "rol"
	PrefixEvent        = "evt"
	PrefixTeam         = "tem"
	PrefixAssignment   = "asg"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Prefixed returns a new identifier with an entity prefix, e.g. "usr_01H...".
func Prefixed(prefix string) string {
	if prefix == "" {
		return New()
	}
	return prefix + "_" + New()
}
