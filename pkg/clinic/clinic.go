// Package clinic implements clinic registration and staff identity (C1):
// the only two operations in MediBrief that run before a clinic id exists
// to bind into the database session.
package clinic

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role values for staff users (spec.md §3 User).
const (
	RoleAdmin  = "ADMIN"
	RoleDoctor = "DOCTOR"
)

// RegisterRequest is the JSON body for POST /auth/register-clinic.
type RegisterRequest struct {
	ClinicName       string `json:"clinicName" validate:"required,min=1,max=200"`
	ClinicEmail      string `json:"clinicEmail" validate:"required,email"`
	SubscriptionPlan string `json:"subscriptionPlan" validate:"required"`
	AdminName        string `json:"adminName" validate:"required,min=1,max=100"`
	AdminEmail       string `json:"adminEmail" validate:"required,email"`
	Password         string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Clinic is the top-level tenant (spec.md §3 Clinic).
type Clinic struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	SubscriptionPlan   string    `json:"subscriptionPlan"`
	AICallCount        int       `json:"aiCallCount"`
	BillingPeriodStart time.Time `json:"billingPeriodStart"`
	CreatedAt          time.Time `json:"createdAt"`
}

// User is a staff principal (spec.md §3 User).
type User struct {
	ID         uuid.UUID `json:"id"`
	ClinicID   uuid.UUID `json:"clinicId"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsArchived bool      `json:"isArchived"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AuthResponse is returned by registration and login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// IsValidRole reports whether role is a recognized staff role.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleDoctor
}

// EffectiveAICallCount returns c's AI call count as of now, UTC, applying
// the same new-billing-month rollover that IncrementAICallCount persists
// (spec.md §4.8, §8 scenario 6): a clinic whose billing period predates
// the current UTC month reads back 0 regardless of what AICallCount last
// recorded, so a quota precheck run before the first call of a new month
// is not rejected on a stale count that has not been incremented yet.
func (c Clinic) EffectiveAICallCount(now time.Time) int {
	if now.Year() != c.BillingPeriodStart.Year() || now.Month() != c.BillingPeriodStart.Month() {
		return 0
	}
	return c.AICallCount
}

// MonthlyLimit looks up the AI call quota for a subscription plan by
// substring match, most specific first (spec.md §4.8): "enterprise" beats
// "pro" beats the free default.
func MonthlyLimit(plan string) int {
	lower := strings.ToLower(plan)
	switch {
	case strings.Contains(lower, "enterprise"):
		return 5000
	case strings.Contains(lower, "pro"):
		return 500
	default:
		return 50
	}
}
