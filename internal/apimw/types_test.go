package apimw

import "testing"

func TestHasRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		required string
		want     bool
	}{
		{"viewer satisfies viewer", []string{RoleViewer}, RoleViewer, true},
		{"viewer does not satisfy operator", []string{RoleViewer}, RoleOperator, false},
		{"operator satisfies viewer", []string{RoleOperator}, RoleViewer, true},
		{"admin satisfies everything", []string{RoleAdmin}, RoleOperator, true},
		{"unknown required role never satisfied", []string{RoleAdmin}, "superadmin", false},
		{"no roles satisfies nothing", nil, RoleViewer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{Subject: "u", Roles: tt.roles}
			if got := u.HasRole(tt.required); got != tt.want {
				t.Errorf("HasRole(%v, %q) = %v, want %v", tt.roles, tt.required, got, tt.want)
			}
		})
	}
}
