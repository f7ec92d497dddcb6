package aiinput

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medibrief/api/pkg/clinical"
	"github.com/medibrief/api/pkg/patient"
)

// patientAgeStore is the subset of pkg/patient.Store needed to resolve a
// patient's current age.
type patientAgeStore interface {
	Get(ctx context.Context, id uuid.UUID) (patient.Patient, error)
}

// clinicalFetchStore is the subset of pkg/clinical.Store needed to fetch
// vitals, labs, and consultation symptoms for a patient.
type clinicalFetchStore interface {
	ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.VitalRecord, error)
	ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.LabResult, error)
	ListRecentConsultationSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]string, error)
}

// StoreFetcher adapts pkg/patient.Store and pkg/clinical.Store, both bound
// to the same tenant-scoped connection for one request, into the Fetcher
// interface Build needs.
type StoreFetcher struct {
	Patients patientAgeStore
	Clinical clinicalFetchStore
}

// NewStoreFetcher builds a Fetcher backed by the caller's tenant-scoped
// patient and clinical stores.
func NewStoreFetcher(patients patientAgeStore, clin clinicalFetchStore) *StoreFetcher {
	return &StoreFetcher{Patients: patients, Clinical: clin}
}

func (f *StoreFetcher) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.VitalRecord, error) {
	return f.Clinical.ListVitals(ctx, patientID, limit)
}

func (f *StoreFetcher) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]clinical.LabResult, error) {
	return f.Clinical.ListLabs(ctx, patientID, limit)
}

func (f *StoreFetcher) ListRecentConsultationSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]string, error) {
	return f.Clinical.ListRecentConsultationSymptoms(ctx, patientID, limit)
}

func (f *StoreFetcher) PatientAge(ctx context.Context, patientID uuid.UUID) (int, error) {
	p, err := f.Patients.Get(ctx, patientID)
	if err != nil {
		return 0, fmt.Errorf("fetching patient for age: %w", err)
	}
	return p.Age(), nil
}
