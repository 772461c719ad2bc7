package auth

import "testing"

func TestEffectivePermissionsUnion(t *testing.T) {
	lighting := &Role{ID: "rol_1", Name: "lighting", Permissions: []Permission{
		{Name: PermReadEvent}, {Name: PermReadTeam},
	}}
	stageManager := &Role{ID: "rol_2", Name: "stage-manager", Permissions: []Permission{
		{Name: PermReadTeam}, {Name: PermCreateEvent},
	}}

	got := EffectivePermissions([]RoleAssignment{
		{UserID: "usr_1", RoleID: "rol_1", Role: lighting},
		{UserID: "usr_1", RoleID: "rol_2", Role: stageManager},
	})

	want := []string{PermReadEvent, PermReadTeam, PermCreateEvent}
	if len(got) != len(want) {
		t.Fatalf("expected %d permissions, got %d: %v", len(want), len(got), got)
	}
	for _, name := range want {
		if _, ok := got[name]; !ok {
			t.Fatalf("missing permission %q in %v", name, got)
		}
	}
}

func TestEffectivePermissionsSkipsUnloadedRoles(t *testing.T) {
	got := EffectivePermissions([]RoleAssignment{
		{UserID: "usr_1", RoleID: "rol_1"},
		{UserID: "usr_1", RoleID: "rol_2", Role: &Role{ID: "rol_2", Permissions: []Permission{{Name: ""}}}},
	})
	if len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}

func TestEffectivePermissionsEmptyAssignments(t *testing.T) {
	if got := EffectivePermissions(nil); len(got) != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}
