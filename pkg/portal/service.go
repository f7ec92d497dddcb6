package portal

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
	"github.com/medibrief/api/pkg/aipipeline"
	"github.com/medibrief/api/pkg/analytics"
	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

const (
	defaultVitalsLimit       = 200
	defaultLabsLimit         = 200
	defaultAppointmentsLimit = 50
	defaultSummariesLimit    = 20
)

// Service implements the read-only patient portal surface plus the two
// self-service mutations it's allowed: phone and password rotation
// (spec.md §4.10). Constructed per-request: all three stores must be bound
// to the calling patient's tenant connection, which only lives for one
// request (see pkg/patient.Store's doc comment).
type Service struct {
	patients   *patient.Store
	clinical   *clinical.Store
	summaries  *aipipeline.Store
	bcryptCost int
}

// NewService creates a portal Service. All three stores must already be
// bound to the calling patient's tenant connection.
func NewService(patients *patient.Store, clin *clinical.Store, summaries *aipipeline.Store, bcryptCost int) *Service {
	return &Service{patients: patients, clinical: clin, summaries: summaries, bcryptCost: bcryptCost}
}

// Profile returns the caller's own profile.
func (s *Service) Profile(ctx context.Context, patientID uuid.UUID) (Profile, error) {
	p, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return Profile{}, notFoundOr(err, "patient not found")
	}
	return newProfile(p), nil
}

// UpdateProfile rotates the caller's phone number.
func (s *Service) UpdateProfile(ctx context.Context, patientID uuid.UUID, req UpdateProfileRequest) (Profile, error) {
	current, err := s.patients.Get(ctx, patientID)
	if err != nil {
		return Profile{}, notFoundOr(err, "patient not found")
	}

	updated, err := s.patients.Update(ctx, patientID, patient.UpdateRequest{
		FirstName:   current.FirstName,
		LastName:    current.LastName,
		DateOfBirth: current.DateOfBirth,
		Gender:      current.Gender,
		Phone:       req.Phone,
	})
	if err != nil {
		return Profile{}, notFoundOr(err, "patient not found")
	}
	return newProfile(updated), nil
}

// UpdateSecurity verifies the current password and rotates it.
func (s *Service) UpdateSecurity(ctx context.Context, patientID uuid.UUID, req UpdateSecurityRequest) error {
	hash, err := s.patients.GetPasswordHash(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.New(apperror.KindUnauthenticated, "current password is incorrect")
		}
		return err
	}
	if !auth.VerifyPassword(hash, req.CurrentPassword) {
		return apperror.New(apperror.KindUnauthenticated, "current password is incorrect")
	}

	newHash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "hashing password", err)
	}
	return s.patients.SetPassword(ctx, patientID, newHash)
}

// Vitals returns the caller's own vital records, most recent first.
func (s *Service) Vitals(ctx context.Context, patientID uuid.UUID) ([]clinical.VitalRecord, error) {
	return s.clinical.ListVitals(ctx, patientID, defaultVitalsLimit)
}

// Labs returns the caller's own lab results with flagged status applied.
func (s *Service) Labs(ctx context.Context, patientID uuid.UUID) ([]LabView, error) {
	labs, err := s.clinical.ListLabs(ctx, patientID, defaultLabsLimit)
	if err != nil {
		return nil, err
	}

	views := make([]LabView, len(labs))
	for i, l := range labs {
		r := analytics.ParseReferenceRange(derefOr(l.ReferenceRange, ""))
		views[i] = LabView{LabResult: l, Status: analytics.FlagLab(l.NumericValue, r)}
	}
	return views, nil
}

// Analytics returns a trend summary per recognized vital type, built from
// the caller's own vitals (spec.md §4.5).
func (s *Service) Analytics(ctx context.Context, patientID uuid.UUID) (VitalsAnalytics, error) {
	vitals, err := s.clinical.ListVitals(ctx, patientID, defaultVitalsLimit)
	if err != nil {
		return VitalsAnalytics{}, err
	}

	byType := make(map[string][]analytics.VitalPoint, len(clinical.VitalTypes))
	for _, v := range vitals {
		byType[v.Type] = append(byType[v.Type], analytics.VitalPoint{
			RecordedAt:   v.RecordedAt.UnixNano(),
			NumericValue: v.NumericValue,
		})
	}

	trends := make(map[string]analytics.Trend, len(clinical.VitalTypes))
	for _, t := range clinical.VitalTypes {
		points := byType[t]
		sort.Slice(points, func(i, j int) bool { return points[i].RecordedAt < points[j].RecordedAt })
		trends[t] = analytics.BuildTrend(t, points)
	}
	return VitalsAnalytics{Trends: trends}, nil
}

// Appointments returns the caller's own consultations with the joined
// doctor projection, most recent first.
func (s *Service) Appointments(ctx context.Context, patientID uuid.UUID, after *uuid.UUID, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = defaultAppointmentsLimit
	}
	return s.clinical.ListConsultations(ctx, patientID, after, limit)
}

// Summaries returns the caller's own AI-generated summaries, most recent
// first.
func (s *Service) Summaries(ctx context.Context, patientID uuid.UUID) ([]summaryView, error) {
	return s.summaries.ListForPatient(ctx, patientID, defaultSummariesLimit)
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.New(apperror.KindNotFound, msg)
	}
	return err
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
