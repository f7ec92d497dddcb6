package clinical

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/apperror"
)

// Invalidator evicts the structured-input cache entry for a patient
// (pkg/aiinput.Cache satisfies this). It is optional: a nil Invalidator
// means writes simply don't evict anything, which is safe since the
// cache has its own short TTL.
type Invalidator interface {
	Invalidate(ctx context.Context, patientID uuid.UUID)
}

// Service implements vitals/labs/consultations CRUD (spec.md §4.4).
type Service struct {
	store *Store
	cache Invalidator
}

// NewService creates a clinical Service. cache may be nil.
func NewService(store *Store, cache Invalidator) *Service {
	return &Service{store: store, cache: cache}
}

func (s *Service) invalidate(ctx context.Context, patientID uuid.UUID) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, patientID)
	}
}

// CreateVital records a vital and invalidates the patient's structured-input cache.
func (s *Service) CreateVital(ctx context.Context, patientID uuid.UUID, req CreateVitalRequest) (VitalRecord, error) {
	v, err := s.store.CreateVital(ctx, patientID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VitalRecord{}, apperror.New(apperror.KindNotFound, "patient not found")
		}
		return VitalRecord{}, err
	}
	s.invalidate(ctx, patientID)
	return v, nil
}

// ListVitals returns a patient's vitals, most recent first.
func (s *Service) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]VitalRecord, error) {
	return s.store.ListVitals(ctx, patientID, limit)
}

// DeleteVital soft-deletes a vital and invalidates the cache.
func (s *Service) DeleteVital(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.store.SoftDeleteVital(ctx, patientID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.New(apperror.KindNotFound, "vital not found")
		}
		return err
	}
	s.invalidate(ctx, patientID)
	return nil
}

// CreateLab records a lab result and invalidates the cache.
func (s *Service) CreateLab(ctx context.Context, patientID uuid.UUID, req CreateLabRequest) (LabResult, error) {
	l, err := s.store.CreateLab(ctx, patientID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LabResult{}, apperror.New(apperror.KindNotFound, "patient not found")
		}
		return LabResult{}, err
	}
	s.invalidate(ctx, patientID)
	return l, nil
}

// ListLabs returns a patient's labs, most recent first.
func (s *Service) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]LabResult, error) {
	return s.store.ListLabs(ctx, patientID, limit)
}

// DeleteLab soft-deletes a lab result and invalidates the cache.
func (s *Service) DeleteLab(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.store.SoftDeleteLab(ctx, patientID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.New(apperror.KindNotFound, "lab result not found")
		}
		return err
	}
	s.invalidate(ctx, patientID)
	return nil
}

// CreateConsultation records a consultation under the calling doctor and
// invalidates the cache.
func (s *Service) CreateConsultation(ctx context.Context, patientID, doctorID uuid.UUID, req CreateConsultationRequest) (Consultation, error) {
	c, err := s.store.CreateConsultation(ctx, patientID, doctorID, req)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Consultation{}, apperror.New(apperror.KindNotFound, "patient not found")
		}
		return Consultation{}, err
	}
	s.invalidate(ctx, patientID)
	return c, nil
}

// ListConsultations returns a cursor page of a patient's consultations.
func (s *Service) ListConsultations(ctx context.Context, patientID uuid.UUID, after *uuid.UUID, limit int) (ConsultationPage, error) {
	items, err := s.store.ListConsultations(ctx, patientID, after, limit+1)
	if err != nil {
		return ConsultationPage{}, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	page := ConsultationPage{Data: items}
	if hasMore && len(items) > 0 {
		id := items[len(items)-1].ID
		page.NextCursor = &id
	}
	return page, nil
}

// DeleteConsultation soft-deletes a consultation and invalidates the cache.
func (s *Service) DeleteConsultation(ctx context.Context, patientID, id uuid.UUID) error {
	if err := s.store.SoftDeleteConsultation(ctx, patientID, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.New(apperror.KindNotFound, "consultation not found")
		}
		return err
	}
	s.invalidate(ctx, patientID)
	return nil
}
