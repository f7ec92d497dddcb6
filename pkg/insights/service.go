package insights

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/analytics"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

const (
	defaultVitalsLimit     = 200
	defaultLabsLimit       = 200
	defaultSymptomsLimit   = 30
	defaultClinicRiskLimit = 50
)

// Service assembles the staff analytics views. Constructed per-request:
// all three stores must be bound to the caller's tenant connection, which
// only lives for one request (see pkg/patient.Store's doc comment).
type Service struct {
	patients  *patient.Store
	clinical  *clinical.Store
	summaries *aipipeline.Store
}

// NewService creates an insights Service.
func NewService(patients *patient.Store, clin *clinical.Store, summaries *aipipeline.Store) *Service {
	return &Service{patients: patients, clinical: clin, summaries: summaries}
}

// Patient returns trends, flagged labs, and composite risk for one patient
// (spec.md §4.5).
func (s *Service) Patient(ctx context.Context, patientID uuid.UUID) (PatientAnalytics, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PatientAnalytics{}, apperror.New(apperror.KindNotFound, "patient not found")
		}
		return PatientAnalytics{}, err
	}

	vitals, err := s.clinical.ListVitals(ctx, patientID, defaultVitalsLimit)
	if err != nil {
		return PatientAnalytics{}, fmt.Errorf("listing vitals: %w", err)
	}
	labs, err := s.clinical.ListLabs(ctx, patientID, defaultLabsLimit)
	if err != nil {
		return PatientAnalytics{}, fmt.Errorf("listing labs: %w", err)
	}
	symptoms, err := s.clinical.ListRecentConsultationSymptoms(ctx, patientID, defaultSymptomsLimit)
	if err != nil {
		return PatientAnalytics{}, fmt.Errorf("listing symptoms: %w", err)
	}

	byType := make(map[string][]analytics.VitalPoint, len(clinical.VitalTypes))
	for _, v := range vitals {
		byType[v.Type] = append(byType[v.Type], analytics.VitalPoint{
			RecordedAt:   v.RecordedAt.UnixNano(),
			NumericValue: v.NumericValue,
		})
	}

	trends := make(map[string]Trend, len(clinical.VitalTypes))
	for _, t := range clinical.VitalTypes {
		points := byType[t]
		sort.Slice(points, func(i, j int) bool { return points[i].RecordedAt < points[j].RecordedAt })
		trends[t] = newTrend(analytics.BuildTrend(t, points))
	}

	labViews := make([]LabView, len(labs))
	for i, l := range labs {
		r := analytics.ParseReferenceRange(derefOr(l.ReferenceRange))
		labViews[i] = LabView{LabResult: l, Status: analytics.FlagLab(l.NumericValue, r)}
	}

	return PatientAnalytics{
		Trends: trends,
		Labs:   labViews,
		Risk:   aipipeline.ComputeRiskAssessment(vitals, labs, symptoms),
	}, nil
}

// ClinicRisk returns a high-risk roll-up built from each patient's most
// recent AI summary, highest composite score first (spec.md §4.5). A
// patient whose latest summary predates their record being archived is
// silently skipped.
func (s *Service) ClinicRisk(ctx context.Context) ([]ClinicRiskEntry, error) {
	latest, err := s.summaries.ListLatestPerPatient(ctx, defaultClinicRiskLimit)
	if err != nil {
		return nil, fmt.Errorf("listing latest summaries: %w", err)
	}

	entries := make([]ClinicRiskEntry, 0, len(latest))
	for _, sm := range latest {
		p, err := s.patients.Get(ctx, sm.PatientID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("looking up patient %s: %w", sm.PatientID, err)
		}
		entries = append(entries, ClinicRiskEntry{
			PatientID:   sm.PatientID,
			PatientName: p.FirstName + " " + p.LastName,
			SummaryID:   sm.ID,
			GeneratedAt: sm.CreatedAt,
			Risk:        sm.RiskFlags,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Risk.Score > entries[j].Risk.Score })
	return entries, nil
}

func newTrend(t analytics.Trend) Trend {
	anomalies := make([]AnomalyView, len(t.Anomalies))
	for i, a := range t.Anomalies {
		anomalies[i] = AnomalyView{Index: a.Index, Value: a.Value, Z: a.Z}
	}
	return Trend{Metric: t.Metric, Points: t.Points, Latest: t.Latest, Delta: t.Delta, Anomalies: anomalies}
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
