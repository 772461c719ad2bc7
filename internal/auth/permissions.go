package auth

// Permission names are flat "<verb>:<resource>" strings; the authorization
// gate treats them as opaque tokens with no hierarchy or wildcards.
const (
	PermReadEvent   = "read:event"
	PermCreateEvent = "create:event"
	PermUpdateEvent = "update:event"
	PermDeleteEvent = "delete:event"

	PermReadTeam   = "read:team"
	PermCreateTeam = "create:team"
	PermUpdateTeam = "update:team"
	PermDeleteTeam = "delete:team"

	PermReadAssignment   = "read:assignment"
	PermCreateAssignment = "create:assignment"
	PermUpdateAssignment = "update:assignment"
	PermDeleteAssignment = "delete:assignment"

	PermReadUser   = "read:user"
	PermManageUser = "manage:user"
)

// BuiltinPermissions is the catalog seeded into every deployment.
var BuiltinPermissions = []Permission{
	{Name: PermReadEvent, Description: "View events"},
	{Name: PermCreateEvent, Description: "Create events"},
	{Name: PermUpdateEvent, Description: "Update events"},
	{Name: PermDeleteEvent, Description: "Delete events"},
	{Name: PermReadTeam, Description: "View technical teams"},
	{Name: PermCreateTeam, Description: "Create technical teams"},
	{Name: PermUpdateTeam, Description: "Update technical teams"},
	{Name: PermDeleteTeam, Description: "Delete technical teams"},
	{Name: PermReadAssignment, Description: "View event assignments"},
	{Name: PermCreateAssignment, Description: "Create event assignments"},
	{Name: PermUpdateAssignment, Description: "Update event assignments"},
	{Name: PermDeleteAssignment, Description: "Delete event assignments"},
	{Name: PermReadUser, Description: "View users"},
	{Name: PermManageUser, Description: "Manage users and roles"},
}

// EffectivePermissions returns the union of permission names reachable
// through the given role assignments. The result is a set: duplicates across
// roles collapse and order carries no meaning. Pure function, no store
// access.
func EffectivePermissions(assignments []RoleAssignment) map[string]struct{} {
	set := make(map[string]struct{})
	for _, a := range assignments {
		if a.Role == nil {
			continue
		}
		for _, p := range a.Role.Permissions {
			if p.Name == "" {
				continue
			}
			set[p.Name] = struct{}{}
		}
	}
	return set
}
