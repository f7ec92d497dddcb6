// Package aipipeline implements the durable AI summary pipeline (C8): a
// Temporal-backed queue that turns a patient's clinical history into an
// anonymized LLM-authored summary with deterministic risk flags, plus a
// synchronous RAG chat variant over the same anonymized context.
package aipipeline

import (
	"time"

	"github.com/google/uuid"
)

// TaskQueue is the Temporal task queue name the worker polls and the
// client enqueues to (spec.md §4.8).
const TaskQueue = "ai-summary-generation"

// MaxAttempts bounds how many times the workflow retries generation
// before reporting terminal failure (spec.md §4.8).
const MaxAttempts = 2

// DefaultWorkerConcurrency is the default number of concurrent
// activity executions the worker processes.
const DefaultWorkerConcurrency = 2

// Disclaimer is appended to every summary, LLM-authored or
// fallback-rendered, and never omitted (spec.md §4.8).
const Disclaimer = "This summary is generated to assist clinical review and does not constitute a diagnosis. All findings should be verified against the full patient record by a licensed clinician."

// AISummary is a persisted AI-generated clinical summary for a patient
// (spec.md §3).
type AISummary struct {
	ID          uuid.UUID  `json:"id"`
	PatientID   uuid.UUID  `json:"patientId"`
	SummaryText string     `json:"summaryText"`
	RiskFlags   RiskFlags  `json:"riskFlags"`
	CreatedAt   time.Time  `json:"createdAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// RiskFlags is the deterministic structured risk assessment persisted
// alongside every summary (spec.md §4.5, §4.8).
type RiskFlags struct {
	HighBloodPressureTrend bool   `json:"highBloodPressureTrend"`
	RisingGlucoseTrend     bool   `json:"risingGlucoseTrend"`
	TachycardiaTrend       bool   `json:"tachycardiaTrend"`
	RapidWeightChange      bool   `json:"rapidWeightChange"`
	ConcerningSymptoms     bool   `json:"concerningSymptoms"`
	Score                  int    `json:"score"`
	Tier                   string `json:"tier"`
}

// GenerateRequest is the request body for enqueuing a summary job.
type GenerateRequest struct {
	PatientID uuid.UUID `json:"patientId" validate:"required"`
}

// JobStatus mirrors the terminal/non-terminal states published on the
// event bus and reported by the enqueue/poll endpoints (spec.md §4.8-4.9).
type JobStatus struct {
	JobID        string     `json:"jobId"`
	State        string     `json:"state"`
	SummaryID    *uuid.UUID `json:"summaryId,omitempty"`
	FailedReason string     `json:"failedReason,omitempty"`
}

const (
	JobStateQueued    = "queued"
	JobStateRunning   = "running"
	JobStateCompleted = "completed"
	JobStateFailed    = "failed"
	JobStateTimeout   = "timeout"
)

// ChatRequest is the request body for the synchronous RAG chat endpoint.
type ChatRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// ChatResponse is the response body for the synchronous RAG chat endpoint.
type ChatResponse struct {
	Answer string `json:"answer"`
}
