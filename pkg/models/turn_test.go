package models

import "testing"

func TestDisplayRemapsErrorTurns(t *testing.T) {
	d := Turn{ID: "t1", Role: RoleError, Content: "inference: boom", CreatedAt: 42}.Display()
	if d.Role != RoleAssistant {
		t.Fatalf("error turn role: %q", d.Role)
	}
	if !d.IsFailure {
		t.Fatalf("error turn not flagged as failure")
	}
	if d.Content != "inference: boom" || d.ID != "t1" || d.CreatedAt != 42 {
		t.Fatalf("display lost fields: %+v", d)
	}
}

func TestDisplayPassesThroughNormalTurns(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAssistant} {
		d := Turn{Role: role, Content: "x"}.Display()
		if d.Role != role || d.IsFailure {
			t.Fatalf("%s turn altered: %+v", role, d)
		}
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleUser, RoleAssistant, RoleError} {
		if !role.Valid() {
			t.Fatalf("%q should be valid", role)
		}
	}
	if Role("system").Valid() {
		t.Fatalf("system is not a persistable role")
	}
}
