// Package clinical implements tenant-scoped CRUD over vitals, labs, and
// consultations (C4).
package clinical

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Vital types (spec.md §3 VitalRecord).
const (
	VitalBP        = "BP"
	VitalGlucose   = "GLUCOSE"
	VitalHeartRate = "HEART_RATE"
	VitalWeight    = "WEIGHT"
)

// VitalTypes lists every recognized vital type, in the order trends are
// computed (spec.md §4.5).
var VitalTypes = []string{VitalBP, VitalGlucose, VitalHeartRate, VitalWeight}

// IsValidVitalType reports whether t is one of the four recognized types.
func IsValidVitalType(t string) bool {
	for _, v := range VitalTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseNumeric best-effort parses a display value to a finite float,
// returning nil on failure (spec.md §4.4 edge case).
func ParseNumeric(value string) *float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	if f != f || f > 1e308 || f < -1e308 { // NaN/overflow guard alongside strconv's own range errors
		return nil
	}
	return &f
}

// CreateVitalRequest is the JSON body for POST /vitals (spec.md §6).
type CreateVitalRequest struct {
	PatientID  uuid.UUID `json:"patientId" validate:"required"`
	Type       string    `json:"type" validate:"required,oneof=BP GLUCOSE HEART_RATE WEIGHT"`
	Value      string    `json:"value" validate:"required"`
	Unit       string    `json:"unit"`
	RecordedAt time.Time `json:"recordedAt" validate:"required"`
}

// VitalRecord mirrors spec.md §3.
type VitalRecord struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    uuid.UUID  `json:"patientId"`
	Type         string     `json:"type"`
	Value        string     `json:"value"`
	NumericValue *float64   `json:"numericValue,omitempty"`
	Unit         *string    `json:"unit,omitempty"`
	RecordedAt   time.Time  `json:"recordedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

// CreateLabRequest is the JSON body for POST /labs (spec.md §6).
type CreateLabRequest struct {
	PatientID      uuid.UUID `json:"patientId" validate:"required"`
	TestName       string    `json:"testName" validate:"required,max=200"`
	Value          string    `json:"value" validate:"required"`
	Unit           string    `json:"unit"`
	ReferenceRange string    `json:"referenceRange"`
	RecordedAt     time.Time `json:"recordedAt" validate:"required"`
}

// LabResult mirrors spec.md §3.
type LabResult struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patientId"`
	TestName       string     `json:"testName"`
	Value          string     `json:"value"`
	NumericValue   *float64   `json:"numericValue,omitempty"`
	Unit           *string    `json:"unit,omitempty"`
	ReferenceRange *string    `json:"referenceRange,omitempty"`
	RecordedAt     time.Time  `json:"recordedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// CreateConsultationRequest is the JSON body for POST /consultations (spec.md §6).
type CreateConsultationRequest struct {
	PatientID uuid.UUID `json:"patientId" validate:"required"`
	Date      time.Time `json:"date" validate:"required"`
	Symptoms  string    `json:"symptoms" validate:"required"`
	Notes     string    `json:"notes"`
}

// Doctor is the joined doctor projection on a consultation (spec.md §4.4).
type Doctor struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Role  string    `json:"role"`
}

// Consultation mirrors spec.md §3, with the joined doctor projection.
type Consultation struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patientId"`
	DoctorID  uuid.UUID  `json:"doctorId"`
	Doctor    *Doctor    `json:"doctor,omitempty"`
	Date      time.Time  `json:"date"`
	Symptoms  string     `json:"symptoms"`
	Notes     string     `json:"notes"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// ConsultationPage is the cursor-paginated response for consultation lists.
type ConsultationPage struct {
	Data       []Consultation `json:"data"`
	NextCursor *uuid.UUID     `json:"nextCursor,omitempty"`
}
