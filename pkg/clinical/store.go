package clinical

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/db"
)

// Store provides tenant-scoped database operations for vitals, labs, and
// consultations. Constructed per-request from the caller's tenant-bound
// connection, same shape as pkg/patient.Store.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a clinical Store bound to a tenant-scoped connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

// patientExists is a reusable guard: writes must only touch
// patients already visible through the tenant-bound connection (the RLS
// policy also enforces this, but the explicit check gives a clean
// not-found instead of a constraint-violation 500).
func (s *Store) patientExists(ctx context.Context, patientID uuid.UUID) error {
	var exists bool
	err := s.dbtx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1 AND is_archived = false)`, patientID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking patient: %w", err)
	}
	if !exists {
		return pgx.ErrNoRows
	}
	return nil
}

const vitalColumns = `id, patient_id, type, value, numeric_value, unit, recorded_at, deleted_at`

func scanVital(row pgx.Row) (VitalRecord, error) {
	var v VitalRecord
	err := row.Scan(&v.ID, &v.PatientID, &v.Type, &v.Value, &v.NumericValue, &v.Unit, &v.RecordedAt, &v.DeletedAt)
	return v, err
}

// CreateVital inserts a vital record for a patient in the caller's clinic.
func (s *Store) CreateVital(ctx context.Context, patientID uuid.UUID, req CreateVitalRequest) (VitalRecord, error) {
	if err := s.patientExists(ctx, patientID); err != nil {
		return VitalRecord{}, err
	}

	var unit *string
	if req.Unit != "" {
		unit = &req.Unit
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO vital_records (id, patient_id, type, value, numeric_value, unit, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+vitalColumns,
		uuid.New(), patientID, req.Type, req.Value, ParseNumeric(req.Value), unit, req.RecordedAt,
	)
	return scanVital(row)
}

// ListVitals returns non-deleted vitals for a patient, recordedAt desc.
func (s *Store) ListVitals(ctx context.Context, patientID uuid.UUID, limit int) ([]VitalRecord, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+vitalColumns+`
		FROM vital_records
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY recorded_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing vitals: %w", err)
	}
	defer rows.Close()

	var items []VitalRecord
	for rows.Next() {
		v, err := scanVital(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning vital row: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

// SoftDeleteVital marks a vital as deleted, scoped to the given patient.
func (s *Store) SoftDeleteVital(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE vital_records SET deleted_at = now()
		WHERE id = $1 AND patient_id = $2 AND deleted_at IS NULL`, id, patientID)
	if err != nil {
		return fmt.Errorf("deleting vital: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const labColumns = `id, patient_id, test_name, value, numeric_value, unit, reference_range, recorded_at, deleted_at`

func scanLab(row pgx.Row) (LabResult, error) {
	var l LabResult
	err := row.Scan(&l.ID, &l.PatientID, &l.TestName, &l.Value, &l.NumericValue, &l.Unit, &l.ReferenceRange, &l.RecordedAt, &l.DeletedAt)
	return l, err
}

// CreateLab inserts a lab result for a patient in the caller's clinic.
func (s *Store) CreateLab(ctx context.Context, patientID uuid.UUID, req CreateLabRequest) (LabResult, error) {
	if err := s.patientExists(ctx, patientID); err != nil {
		return LabResult{}, err
	}

	var unit, refRange *string
	if req.Unit != "" {
		unit = &req.Unit
	}
	if req.ReferenceRange != "" {
		refRange = &req.ReferenceRange
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO lab_results (id, patient_id, test_name, value, numeric_value, unit, reference_range, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+labColumns,
		uuid.New(), patientID, req.TestName, req.Value, ParseNumeric(req.Value), unit, refRange, req.RecordedAt,
	)
	return scanLab(row)
}

// ListLabs returns non-deleted labs for a patient, recordedAt desc.
func (s *Store) ListLabs(ctx context.Context, patientID uuid.UUID, limit int) ([]LabResult, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+labColumns+`
		FROM lab_results
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY recorded_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing labs: %w", err)
	}
	defer rows.Close()

	var items []LabResult
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning lab row: %w", err)
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// SoftDeleteLab marks a lab result as deleted, scoped to the given patient.
func (s *Store) SoftDeleteLab(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE lab_results SET deleted_at = now()
		WHERE id = $1 AND patient_id = $2 AND deleted_at IS NULL`, id, patientID)
	if err != nil {
		return fmt.Errorf("deleting lab result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const consultationColumns = `c.id, c.patient_id, c.doctor_id, c.date, c.symptoms, c.notes, c.deleted_at,
	u.id, u.name, u.email, u.role`

func scanConsultation(row pgx.Row) (Consultation, error) {
	var c Consultation
	var d Doctor
	err := row.Scan(&c.ID, &c.PatientID, &c.DoctorID, &c.Date, &c.Symptoms, &c.Notes, &c.DeletedAt,
		&d.ID, &d.Name, &d.Email, &d.Role)
	if err != nil {
		return Consultation{}, err
	}
	c.Doctor = &d
	return c, nil
}

// CreateConsultation inserts a consultation, setting doctorId to the
// calling staff member (spec.md §4.4).
func (s *Store) CreateConsultation(ctx context.Context, patientID, doctorID uuid.UUID, req CreateConsultationRequest) (Consultation, error) {
	if err := s.patientExists(ctx, patientID); err != nil {
		return Consultation{}, err
	}

	row := s.dbtx.QueryRow(ctx, `
		WITH inserted AS (
			INSERT INTO consultations (id, patient_id, doctor_id, date, symptoms, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, patient_id, doctor_id, date, symptoms, notes, deleted_at
		)
		SELECT `+consultationColumns+`
		FROM inserted c JOIN users u ON u.id = c.doctor_id`,
		uuid.New(), patientID, doctorID, req.Date, req.Symptoms, req.Notes,
	)
	return scanConsultation(row)
}

// ListConsultations returns a cursor page of non-deleted consultations for
// a patient, ordered date desc, id desc, with the joined doctor projection.
func (s *Store) ListConsultations(ctx context.Context, patientID uuid.UUID, after *uuid.UUID, limit int) ([]Consultation, error) {
	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = s.dbtx.Query(ctx, `
			SELECT `+consultationColumns+`
			FROM consultations c JOIN users u ON u.id = c.doctor_id
			WHERE c.patient_id = $1 AND c.deleted_at IS NULL
			ORDER BY c.date DESC, c.id DESC LIMIT $2`, patientID, limit)
	} else {
		rows, err = s.dbtx.Query(ctx, `
			SELECT `+consultationColumns+`
			FROM consultations c JOIN users u ON u.id = c.doctor_id
			WHERE c.patient_id = $1 AND c.deleted_at IS NULL
			  AND (c.date, c.id) < (SELECT date, id FROM consultations WHERE id = $2)
			ORDER BY c.date DESC, c.id DESC LIMIT $3`, patientID, *after, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing consultations: %w", err)
	}
	defer rows.Close()

	var items []Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning consultation row: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// ListRecentConsultationSymptoms returns the symptoms field of a patient's
// most recent non-deleted consultations, date desc, for feeding the AI
// structured-input builder (pkg/aiinput, spec.md §4.7).
func (s *Store) ListRecentConsultationSymptoms(ctx context.Context, patientID uuid.UUID, limit int) ([]string, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT symptoms FROM consultations
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY date DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing consultation symptoms: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var symptoms string
		if err := rows.Scan(&symptoms); err != nil {
			return nil, fmt.Errorf("scanning symptoms: %w", err)
		}
		items = append(items, symptoms)
	}
	return items, rows.Err()
}

// SoftDeleteConsultation marks a consultation as deleted, scoped to the
// given patient.
func (s *Store) SoftDeleteConsultation(ctx context.Context, patientID, id uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE consultations SET deleted_at = now()
		WHERE id = $1 AND patient_id = $2 AND deleted_at IS NULL`, id, patientID)
	if err != nil {
		return fmt.Errorf("deleting consultation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
