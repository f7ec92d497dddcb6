package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{RoleAdmin, true},
		{RoleDoctor, true},
		{RolePatient, true},
		{"superadmin", false},
		{"", false},
		{"admin", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := IsValidRole(tt.role)
			if got != tt.valid {
				t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	// No identity yet.
	if id := FromContext(ctx); id != nil {
		t.Fatalf("expected nil, got %+v", id)
	}

	clinicID := uuid.New()
	identity := &Identity{
		Subject:  "user-123",
		Email:    "test@example.com",
		Role:     RoleDoctor,
		ClinicID: clinicID,
		Method:   MethodSession,
	}
	ctx = NewContext(ctx, identity)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if got.Subject != "user-123" {
		t.Errorf("Subject = %q, want %q", got.Subject, "user-123")
	}
	if got.Role != RoleDoctor {
		t.Errorf("Role = %q, want %q", got.Role, RoleDoctor)
	}
	if got.ClinicID != clinicID {
		t.Errorf("ClinicID = %v, want %v", got.ClinicID, clinicID)
	}
}
