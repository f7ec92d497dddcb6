package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is a caller's privilege level: a tagged enum {ADMIN, DOCTOR, PATIENT}
// (spec.md §4.1/§9 "Polymorphism").
const (
	RoleAdmin   = "ADMIN"
	RoleDoctor  = "DOCTOR"
	RolePatient = "PATIENT"
)

// roleLevel ranks staff roles for RequireMinRole. Patient is intentionally
// absent: patient-only endpoints are gated by RequireRole(RolePatient), not
// by a hierarchy comparison against staff.
var roleLevel = map[string]int{
	RoleAdmin:  20,
	RoleDoctor: 10,
}

// MethodSession identifies the caller as authenticated via a self-issued
// bearer token — the only authentication mechanism MediBrief has.
const MethodSession = "session"

// Identity is the authenticated caller, attached to the request context by
// Middleware.
type Identity struct {
	Subject  string // display name
	Email    string
	Role     string
	ClinicID uuid.UUID
	UserID   uuid.UUID // staff user ID or patient ID depending on Role
	Method   string
}

type contextKey string

const identityKey contextKey = "auth_identity"

// NewContext stores an Identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the Identity from the context, or nil if unset.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}

// IdentityFromClaims builds an Identity from validated session claims. It is
// shared by Middleware (header token) and pkg/events' push-stream handler
// (query-string token), the only two callers that ever construct an
// Identity from raw SessionClaims.
func IdentityFromClaims(claims *SessionClaims) (*Identity, error) {
	userID, _ := uuid.Parse(claims.UserID)
	clinicID, _ := uuid.Parse(claims.ClinicID)
	return &Identity{
		Subject:  claims.Subject,
		Email:    claims.Email,
		Role:     claims.Role,
		ClinicID: clinicID,
		UserID:   userID,
		Method:   MethodSession,
	}, nil
}

// IsValidRole reports whether role is one of the three recognized roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	default:
		return false
	}
}
