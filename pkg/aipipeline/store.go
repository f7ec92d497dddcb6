package aipipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/db"
)

// Store persists AI summaries. Constructed per-activity from a
// tenant-bound connection (see pkg/aipipeline.Activities).
type Store struct {
	dbtx db.DBTX
}

// NewStore creates an AISummary Store bound to a tenant-scoped connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const summaryColumns = `id, patient_id, summary_text, risk_flags, created_at, deleted_at`

func scanSummary(row pgx.Row) (AISummary, error) {
	var s AISummary
	var raw []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.SummaryText, &raw, &s.CreatedAt, &s.DeletedAt)
	if err != nil {
		return AISummary{}, err
	}
	if err := json.Unmarshal(raw, &s.RiskFlags); err != nil {
		return AISummary{}, fmt.Errorf("unmarshaling risk flags: %w", err)
	}
	return s, nil
}

// Create inserts a new AI summary for a patient.
func (s *Store) Create(ctx context.Context, patientID uuid.UUID, summaryText string, flags RiskFlags) (AISummary, error) {
	raw, err := json.Marshal(flags)
	if err != nil {
		return AISummary{}, fmt.Errorf("marshaling risk flags: %w", err)
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO ai_summaries (id, patient_id, summary_text, risk_flags)
		VALUES ($1, $2, $3, $4)
		RETURNING `+summaryColumns,
		uuid.New(), patientID, summaryText, raw,
	)
	return scanSummary(row)
}

// Get returns a single non-deleted summary by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (AISummary, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+summaryColumns+`
		FROM ai_summaries WHERE id = $1 AND deleted_at IS NULL`, id)
	return scanSummary(row)
}

// ListLatestPerPatient returns each patient's most recent non-deleted
// summary, ordered most-recently-generated first, for the clinic-wide
// high-risk roll-up (spec.md §4.5's `GET /analytics/clinic-risk`). Relies
// entirely on the row-level policy bound to the caller's connection to
// scope this to one clinic, same as every other query in this Store.
func (s *Store) ListLatestPerPatient(ctx context.Context, limit int) ([]AISummary, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM (
			SELECT DISTINCT ON (patient_id) `+summaryColumns+`
			FROM ai_summaries
			WHERE deleted_at IS NULL
			ORDER BY patient_id, created_at DESC
		) latest
		ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing latest summaries: %w", err)
	}
	defer rows.Close()

	var items []AISummary
	for rows.Next() {
		sm, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		items = append(items, sm)
	}
	return items, rows.Err()
}

// ListForPatient returns non-deleted summaries for a patient, createdAt
// desc, for the patient portal (spec.md §4.10).
func (s *Store) ListForPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]AISummary, error) {
	rows, err := s.dbtx.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM ai_summaries
		WHERE patient_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing summaries: %w", err)
	}
	defer rows.Close()

	var items []AISummary
	for rows.Next() {
		sm, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		items = append(items, sm)
	}
	return items, rows.Err()
}
