package aipipeline

import (
	"github.com/google/uuid"

	"github.com/medibrief/api/pkg/aiinput"
)

// GenerateInput is the Temporal workflow input for one summary-generation
// job (spec.md §4.8).
type GenerateInput struct {
	JobID     string    `json:"jobId"`
	ClinicID  uuid.UUID `json:"clinicId"`
	PatientID uuid.UUID `json:"patientId"`
	UserID    uuid.UUID `json:"userId"`
}

// GenerateOutput is the Temporal workflow result.
type GenerateOutput struct {
	SummaryID    *uuid.UUID `json:"summaryId,omitempty"`
	FailedReason string     `json:"failedReason,omitempty"`
}

// ResolveInputOutput is what the ResolveStructuredInput activity returns:
// the cached/recomputed structured input with its free-text symptoms
// already anonymized (spec.md §4.6), plus the patient's age band.
type ResolveInputOutput struct {
	Input   aiinput.StructuredInput `json:"input"`
	AgeBand string                  `json:"ageBand"`
}

// ComputeFlagsOutput is what the ComputeRiskFlags activity returns.
type ComputeFlagsOutput struct {
	Flags RiskFlags `json:"flags"`
}

// RenderOutput is what the RenderSummary activity returns.
type RenderOutput struct {
	SummaryText string `json:"summaryText"`
	UsedLLM     bool   `json:"usedLLM"`
}

// PersistOutput is what the PersistSummary activity returns.
type PersistOutput struct {
	SummaryID uuid.UUID `json:"summaryId"`
}
