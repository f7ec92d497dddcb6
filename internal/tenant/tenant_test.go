package tenant

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestInfoContext(t *testing.T) {
	ctx := context.Background()

	if got := FromContext(ctx); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}

	id := uuid.New()
	info := &Info{ClinicID: id, Name: "Riverside Clinic"}
	ctx = NewContext(ctx, info)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected info, got nil")
	}
	if got.ClinicID != id {
		t.Errorf("ClinicID = %v, want %v", got.ClinicID, id)
	}
	if got.Name != "Riverside Clinic" {
		t.Errorf("Name = %q, want %q", got.Name, "Riverside Clinic")
	}
}

func TestConnContext_EmptyByDefault(t *testing.T) {
	ctx := context.Background()
	if conn := ConnFromContext(ctx); conn != nil {
		t.Fatalf("expected nil connection, got %+v", conn)
	}
}
