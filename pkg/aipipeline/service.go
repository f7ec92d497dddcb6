package aipipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/pkg/aiinput"
	"github.com/medibrief/api/pkg/anonymize"
	"github.com/medibrief/api/pkg/clinic"
)

// quotaStore is the subset of pkg/clinic.Store the service needs for the
// quota precheck and increment (spec.md §4.8).
type quotaStore interface {
	GetClinicByID(ctx context.Context, id uuid.UUID) (clinic.Clinic, error)
	IncrementAICallCount(ctx context.Context, id uuid.UUID) (clinic.Clinic, error)
}

// JobStatusReader reads back the last published status for a job
// (pkg/events.Bus satisfies this).
type JobStatusReader interface {
	Get(ctx context.Context, jobID string) (JobStatus, bool)
}

// Service implements the client-facing half of the AI pipeline: quota
// precheck, enqueue, job status lookup, summary reads, and the
// synchronous RAG chat variant (spec.md §4.8).
type Service struct {
	manager *Manager
	clinics quotaStore
	cache   *aiinput.Cache
	llm     *LLMClient
	events  JobStatusReader
}

// NewService creates an aipipeline Service.
func NewService(manager *Manager, clinics quotaStore, cache *aiinput.Cache, llm *LLMClient, events JobStatusReader) *Service {
	return &Service{manager: manager, clinics: clinics, cache: cache, llm: llm, events: events}
}

// JobStatus returns the last known status for a job (spec.md §4.8/§4.9
// "GET /ai/jobs/:jobId"). apperror.KindNotFound if no status has ever been
// recorded for that job id.
func (s *Service) JobStatus(ctx context.Context, jobID string) (JobStatus, error) {
	if s.events == nil {
		return JobStatus{}, apperror.New(apperror.KindUnavailable, "job status tracking is unavailable")
	}
	status, ok := s.events.Get(ctx, jobID)
	if !ok {
		return JobStatus{}, apperror.New(apperror.KindNotFound, "job not found")
	}
	return status, nil
}

// GetSummary returns a single AI summary by id, using the caller's
// tenant-scoped store.
func (s *Service) GetSummary(ctx context.Context, store *Store, id uuid.UUID) (AISummary, error) {
	return store.Get(ctx, id)
}

// ListSummariesForPatient returns a patient's AI summaries, most recent
// first, using the caller's tenant-scoped store.
func (s *Service) ListSummariesForPatient(ctx context.Context, store *Store, patientID uuid.UUID, limit int) ([]AISummary, error) {
	return store.ListForPatient(ctx, patientID, limit)
}

// Enqueue runs the client-submission steps of spec.md §4.8: quota
// precheck, enqueue with attempts=2, increment the clinic's AI call
// counter, and return the accepted job status.
func (s *Service) Enqueue(ctx context.Context, clinicID, patientID, userID uuid.UUID) (JobStatus, error) {
	c, err := s.clinics.GetClinicByID(ctx, clinicID)
	if err != nil {
		return JobStatus{}, fmt.Errorf("resolving clinic for quota check: %w", err)
	}

	limit := clinic.MonthlyLimit(c.SubscriptionPlan)
	if c.EffectiveAICallCount(time.Now().UTC()) >= limit {
		return JobStatus{}, apperror.New(apperror.KindRateLimited,
			fmt.Sprintf("monthly AI summary limit of %d reached", limit))
	}

	jobID := uuid.New().String()
	input := GenerateInput{JobID: jobID, ClinicID: clinicID, PatientID: patientID, UserID: userID}

	_, err = s.manager.Client().ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        jobID,
		TaskQueue: s.manager.TaskQueue(),
	}, GenerateSummaryWorkflow, input)
	if err != nil {
		return JobStatus{}, fmt.Errorf("enqueuing summary workflow: %w", err)
	}

	// Incrementing after a successful enqueue call (not transactionally
	// with it) matches spec.md §4.8 step 4: at-least-once, over-counting
	// under retry is acceptable.
	if _, err := s.clinics.IncrementAICallCount(ctx, clinicID); err != nil {
		return JobStatus{}, fmt.Errorf("incrementing ai call count: %w", err)
	}

	return JobStatus{JobID: jobID, State: JobStateQueued}, nil
}

// Chat answers a question about a patient synchronously using the same
// anonymized context the async pipeline builds, with no queue and the
// same quota rules (spec.md §4.8 "RAG chat").
func (s *Service) Chat(ctx context.Context, fetcher aiinput.Fetcher, clinicID, patientID uuid.UUID, question string) (string, error) {
	c, err := s.clinics.GetClinicByID(ctx, clinicID)
	if err != nil {
		return "", fmt.Errorf("resolving clinic for quota check: %w", err)
	}
	limit := clinic.MonthlyLimit(c.SubscriptionPlan)
	if c.EffectiveAICallCount(time.Now().UTC()) >= limit {
		return "", apperror.New(apperror.KindRateLimited,
			fmt.Sprintf("monthly AI summary limit of %d reached", limit))
	}

	age, err := fetcher.PatientAge(ctx, patientID)
	if err != nil {
		return "", fmt.Errorf("resolving patient age: %w", err)
	}
	structured, err := aiinput.BuildCached(ctx, s.cache, fetcher, patientID)
	if err != nil {
		return "", fmt.Errorf("building structured input: %w", err)
	}
	scrubbed := make([]string, len(structured.RecentSymptoms))
	for i, sym := range structured.RecentSymptoms {
		scrubbed[i] = anonymize.ScrubText(sym)
	}
	structured.RecentSymptoms = scrubbed
	ageBand := anonymize.AgeBand(&age)

	if s.llm == nil || !s.llm.cfg.Configured() {
		return "", apperror.New(apperror.KindUnavailable, "no LLM provider is configured")
	}

	answer, err := s.llm.AnswerQuestion(ctx, structured, ageBand, question)
	if err != nil {
		return "", fmt.Errorf("calling llm: %w", err)
	}

	if _, err := s.clinics.IncrementAICallCount(ctx, clinicID); err != nil {
		return "", fmt.Errorf("incrementing ai call count: %w", err)
	}

	return answer, nil
}
