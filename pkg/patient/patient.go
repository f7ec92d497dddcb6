// Package patient implements patient CRUD, invite-based onboarding, and
// patient self-service login (C1 invite/setup flows, C4 patient records).
package patient

import (
	"time"

	"github.com/google/uuid"
)

// Gender values (spec.md §3 Patient).
const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderOther  = "OTHER"
)

// IsValidGender reports whether g is a recognized gender value.
func IsValidGender(g string) bool {
	return g == GenderMale || g == GenderFemale || g == GenderOther
}

// InviteValidity is how long a patient invite token remains usable
// (spec.md §4.1).
const InviteValidity = 72 * time.Hour

// CreateRequest is the JSON body for POST /patients.
type CreateRequest struct {
	FirstName   string    `json:"firstName" validate:"required,max=100"`
	LastName    string    `json:"lastName" validate:"required,max=100"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
	Gender      string    `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	Phone       string    `json:"phone" validate:"omitempty,min=6,max=30"`
}

// UpdateRequest is the JSON body for PUT /patients/:id.
type UpdateRequest struct {
	FirstName   string    `json:"firstName" validate:"required,max=100"`
	LastName    string    `json:"lastName" validate:"required,max=100"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
	Gender      string    `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	Phone       string    `json:"phone" validate:"omitempty,min=6,max=30"`
}

// SetupRequest is the JSON body for POST /auth/patient-setup, completing
// invite-based onboarding.
type SetupRequest struct {
	InviteToken string `json:"inviteToken" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
}

// LoginRequest is the JSON body for POST /auth/patient-login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the JSON body for POST /patients/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// InviteResponse is returned by invite creation. The token is surfaced once;
// it is not recoverable after this response (the DB only ever stores it
// to allow exact-match lookup, never logged or re-displayed).
type InviteResponse struct {
	PatientID       uuid.UUID `json:"patientId"`
	InviteToken     string    `json:"inviteToken"`
	InviteExpiresAt time.Time `json:"inviteExpiresAt"`
}

// AuthResponse is returned by setup and login.
type AuthResponse struct {
	Token   string  `json:"token"`
	Patient Patient `json:"patient"`
}

// Patient is a data subject, and — once passwordHash is set — also an
// authentication principal with role PATIENT (spec.md §3).
type Patient struct {
	ID          uuid.UUID `json:"id"`
	ClinicID    uuid.UUID `json:"clinicId"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Gender      string    `json:"gender"`
	Phone       *string   `json:"phone,omitempty"`
	Email       *string   `json:"email,omitempty"`
	HasPortal   bool      `json:"hasPortal"`
	IsArchived  bool      `json:"isArchived"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Age returns the patient's age in whole years as of now, UTC.
func (p Patient) Age() int {
	now := time.Now().UTC()
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// ListPage is the cursor-paginated response for GET /patients (spec.md §4.4).
type ListPage struct {
	Data       []Patient  `json:"data"`
	NextCursor *uuid.UUID `json:"nextCursor,omitempty"`
}
