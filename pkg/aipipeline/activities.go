package aipipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/api/internal/audit"
	"github.com/medibrief/api/internal/db"
	"github.com/medibrief/api/internal/tenant"
	"github.com/medibrief/api/pkg/aiinput"
	"github.com/medibrief/api/pkg/anonymize"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// EventPublisher publishes a job's current status to the event bus
// (pkg/events.Bus satisfies this; kept as an interface here so
// pkg/aipipeline never imports pkg/events directly).
type EventPublisher interface {
	Publish(ctx context.Context, jobID string, status JobStatus)
}

// Activities holds the dependencies Temporal activities need. One
// Activities value is shared by the whole worker process; every method
// binds its own tenant-scoped connection per call since Temporal may
// schedule activities for different clinics concurrently.
type Activities struct {
	Pool   *pgxpool.Pool
	Cache  *aiinput.Cache
	LLM    *LLMClient
	Audit  *audit.Writer
	Events EventPublisher
	Logger *slog.Logger
}

// fetcherFor builds an aiinput.Fetcher bound to a tenant-scoped
// connection, the same way the HTTP layer builds one per request.
func fetcherFor(conn db.DBTX) *aiinput.StoreFetcher {
	return aiinput.NewStoreFetcher(patient.NewStore(conn), clinical.NewStore(conn))
}

// ResolveStructuredInput fetches (or serves from cache) the patient's
// structured clinical input and anonymizes its free-text fields
// (spec.md §4.7, §4.6, §4.8 step 1).
func (a *Activities) ResolveStructuredInput(ctx context.Context, in GenerateInput) (ResolveInputOutput, error) {
	conn, err := tenant.BindConn(ctx, a.Pool, in.ClinicID)
	if err != nil {
		return ResolveInputOutput{}, fmt.Errorf("binding tenant connection: %w", err)
	}
	defer conn.Release()

	fetcher := fetcherFor(conn)

	age, err := fetcher.PatientAge(ctx, in.PatientID)
	if err != nil {
		return ResolveInputOutput{}, fmt.Errorf("resolving patient age: %w", err)
	}

	structured, err := aiinput.BuildCached(ctx, a.Cache, fetcher, in.PatientID)
	if err != nil {
		return ResolveInputOutput{}, fmt.Errorf("building structured input: %w", err)
	}

	scrubbed := make([]string, len(structured.RecentSymptoms))
	for i, s := range structured.RecentSymptoms {
		scrubbed[i] = anonymize.ScrubText(s)
	}
	structured.RecentSymptoms = scrubbed

	return ResolveInputOutput{
		Input:   structured,
		AgeBand: anonymize.AgeBand(&age),
	}, nil
}

// ComputeRiskFlags derives the deterministic risk assessment from the
// patient's raw vitals and symptoms (spec.md §4.8 step 2). It re-fetches
// vitals rather than reusing the anonymized structured input, since
// z-score computation needs the full numeric series rather than the
// capped, most-recent-first projection built for the LLM prompt.
func (a *Activities) ComputeRiskFlags(ctx context.Context, in GenerateInput) (ComputeFlagsOutput, error) {
	conn, err := tenant.BindConn(ctx, a.Pool, in.ClinicID)
	if err != nil {
		return ComputeFlagsOutput{}, fmt.Errorf("binding tenant connection: %w", err)
	}
	defer conn.Release()

	store := clinical.NewStore(conn)
	vitals, err := store.ListVitals(ctx, in.PatientID, vitalHistoryLimit)
	if err != nil {
		return ComputeFlagsOutput{}, fmt.Errorf("listing vitals: %w", err)
	}
	labs, err := store.ListLabs(ctx, in.PatientID, labHistoryLimit)
	if err != nil {
		return ComputeFlagsOutput{}, fmt.Errorf("listing labs: %w", err)
	}
	symptoms, err := store.ListRecentConsultationSymptoms(ctx, in.PatientID, symptomHistoryLimit)
	if err != nil {
		return ComputeFlagsOutput{}, fmt.Errorf("listing symptoms: %w", err)
	}

	return ComputeFlagsOutput{Flags: ComputeRiskAssessment(vitals, labs, symptoms)}, nil
}

// vitalHistoryLimit/symptomHistoryLimit bound how much raw history feeds
// deterministic risk-flag z-score computation, independent of the capped
// structured-input projection used for the LLM prompt.
const (
	vitalHistoryLimit   = 60
	labHistoryLimit     = 60
	symptomHistoryLimit = 30
)

// RenderSummary calls the LLM if configured, falling back to the
// deterministic renderer on any error or missing key (spec.md §4.8 step
// 3).
func (a *Activities) RenderSummary(ctx context.Context, resolved ResolveInputOutput, flags RiskFlags) (RenderOutput, error) {
	if a.LLM != nil && a.LLM.cfg.Configured() {
		text, err := a.LLM.GenerateSummary(ctx, resolved.Input, resolved.AgeBand)
		if err == nil {
			return RenderOutput{SummaryText: text, UsedLLM: true}, nil
		}
		a.Logger.Warn("llm summary generation failed, using fallback renderer", "error", err)
	}
	return RenderOutput{SummaryText: RenderFallback(resolved.Input, resolved.AgeBand, flags), UsedLLM: false}, nil
}

// PersistSummary writes the AISummary row and the AI_SUMMARY_GENERATE
// audit record (spec.md §4.8 step 4).
func (a *Activities) PersistSummary(ctx context.Context, in GenerateInput, render RenderOutput, flags RiskFlags) (PersistOutput, error) {
	conn, err := tenant.BindConn(ctx, a.Pool, in.ClinicID)
	if err != nil {
		return PersistOutput{}, fmt.Errorf("binding tenant connection: %w", err)
	}
	defer conn.Release()

	store := NewStore(conn)
	summary, err := store.Create(ctx, in.PatientID, render.SummaryText, flags)
	if err != nil {
		return PersistOutput{}, fmt.Errorf("persisting summary: %w", err)
	}

	if a.Audit != nil {
		a.Audit.Log(audit.Entry{
			ClinicID:   in.ClinicID,
			UserID:     in.UserID,
			Action:     "AI_SUMMARY_GENERATE",
			EntityType: "ai_summary",
			EntityID:   summary.ID,
		})
	}

	return PersistOutput{SummaryID: summary.ID}, nil
}

// PublishStatus publishes a job status event (spec.md §4.8 steps 5-6,
// §4.9).
func (a *Activities) PublishStatus(ctx context.Context, jobID string, status JobStatus) error {
	if a.Events == nil {
		return nil
	}
	a.Events.Publish(ctx, jobID, status)
	return nil
}
