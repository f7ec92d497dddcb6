// Package portal implements the patient-facing read API (C10): read-only
// projections of a patient's own vitals, labs, vitals analytics,
// consultations (as "appointments"), and AI summaries, plus self-profile
// and phone/password rotation. Every query is implicitly scoped to
// patientId = token.id — there is no cross-patient visibility, even
// within the same clinic (spec.md §4.10).
package portal

import (
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/analytics"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// LabView is a lab result with the flagged status applied (spec.md §4.5).
type LabView struct {
	clinical.LabResult
	Status string `json:"status"`
}

// Appointment is the name the patient portal uses for a consultation; it is
// an alias of clinical.Consultation with the same fields.
type Appointment = clinical.Consultation

// VitalsAnalytics is the trend summary for every recognized vital type,
// keyed by type (spec.md §4.5).
type VitalsAnalytics struct {
	Trends map[string]analytics.Trend `json:"trends"`
}

// UpdateProfileRequest is the JSON body for PUT /portal/me. Patients may
// only rotate their own phone number through the portal; name, date of
// birth, and gender remain staff-managed (spec.md §4.4).
type UpdateProfileRequest struct {
	Phone string `json:"phone" validate:"omitempty,min=6,max=30"`
}

// UpdateSecurityRequest is the JSON body for PUT /portal/security.
type UpdateSecurityRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// Profile is the patient's self-view, omitting clinic-internal fields a
// patient has no business seeing.
type Profile struct {
	ID          string `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

func newProfile(p patient.Patient) Profile {
	prof := Profile{
		ID:          p.ID.String(),
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DateOfBirth: p.DateOfBirth.Format("2006-01-02"),
		Gender:      p.Gender,
	}
	if p.Phone != nil {
		prof.Phone = *p.Phone
	}
	if p.Email != nil {
		prof.Email = *p.Email
	}
	return prof
}

// summaryView is the form in which a patient sees their own AI-generated
// summaries; it is an alias of pkg/aipipeline.AISummary with all its fields.
type summaryView = aipipeline.AISummary
