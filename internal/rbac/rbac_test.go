package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "viewer read", role: RoleViewer, action: ActionRead, allow: true},
		{name: "viewer write", role: RoleViewer, action: ActionWrite, allow: false},
		{name: "viewer generate", role: RoleViewer, action: ActionGenerate, allow: false},
		{name: "editor write", role: RoleEditor, action: ActionWrite, allow: true},
		{name: "editor generate", role: RoleEditor, action: ActionGenerate, allow: true},
		{name: "editor manage", role: RoleEditor, action: ActionManage, allow: false},
		{name: "owner manage", role: RoleOwner, action: ActionManage, allow: true},
		{name: "unknown role", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("owner") != RoleOwner {
		t.Fatal("expected owner to survive normalization")
	}
	if Normalize("superuser") != RoleViewer {
		t.Fatal("expected unknown roles to fall back to viewer")
	}
}

func TestScopesAllow(t *testing.T) {
	cases := []struct {
		name   string
		scopes []string
		action Action
		allow  bool
	}{
		{name: "read scope reads", scopes: []string{"read"}, action: ActionRead, allow: true},
		{name: "read scope cannot write", scopes: []string{"read"}, action: ActionWrite, allow: false},
		{name: "write scope implies read", scopes: []string{"write"}, action: ActionRead, allow: true},
		{name: "generate scope generates", scopes: []string{"generate"}, action: ActionGenerate, allow: true},
		{name: "no scope manages", scopes: []string{"read", "write", "generate"}, action: ActionManage, allow: false},
		{name: "empty scopes", scopes: nil, action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScopesAllow(tc.scopes, tc.action); got != tc.allow {
				t.Fatalf("ScopesAllow(%v, %q) = %v, want %v", tc.scopes, tc.action, got, tc.allow)
			}
		})
	}
}
