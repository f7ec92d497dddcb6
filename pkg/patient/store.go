package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/db"
)

// Store provides tenant-scoped database operations for patients. It is
// constructed per-request from the connection tenant.Middleware bound to
// the caller's clinic id, so every statement is filtered by the row-level
// policy on `patients`. The queries below carry no explicit clinic_id
// predicate of their own.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a patient Store bound to a tenant-scoped connection.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const patientColumns = `id, clinic_id, first_name, last_name, date_of_birth, gender,
	phone, email, (password_hash IS NOT NULL) AS has_portal, is_archived, created_at`

func scanPatient(row pgx.Row) (Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.DateOfBirth,
		&p.Gender, &p.Phone, &p.Email, &p.HasPortal, &p.IsArchived, &p.CreatedAt)
	return p, err
}

// Create inserts a new patient.
func (s *Store) Create(ctx context.Context, clinicID uuid.UUID, req CreateRequest) (Patient, error) {
	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	row := s.dbtx.QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, first_name, last_name, date_of_birth, gender, phone, is_archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		RETURNING `+patientColumns,
		uuid.New(), clinicID, req.FirstName, req.LastName, req.DateOfBirth, req.Gender, phone, time.Now().UTC(),
	)
	return scanPatient(row)
}

// Get returns a single non-archived patient.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Patient, error) {
	row := s.dbtx.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients WHERE id = $1 AND is_archived = false`, id)
	return scanPatient(row)
}

// Update updates a patient's editable fields.
func (s *Store) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Patient, error) {
	var phone *string
	if req.Phone != "" {
		phone = &req.Phone
	}

	row := s.dbtx.QueryRow(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, date_of_birth = $4, gender = $5, phone = $6
		WHERE id = $1 AND is_archived = false
		RETURNING `+patientColumns,
		id, req.FirstName, req.LastName, req.DateOfBirth, req.Gender, phone,
	)
	return scanPatient(row)
}

// SoftDelete archives a patient. Returns pgx.ErrNoRows if the patient does
// not exist, is already archived, or is in a different clinic (the RLS
// policy filters it out before the row count check, so the caller cannot
// distinguish which — spec.md §4.4 "never leaks existence").
func (s *Store) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.dbtx.Exec(ctx, `
		UPDATE patients SET is_archived = true WHERE id = $1 AND is_archived = false`, id)
	if err != nil {
		return fmt.Errorf("archiving patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List returns up to limit+1 patients ordered createdAt desc, id desc,
// continuing after the cursor patient if given (spec.md §4.4).
func (s *Store) List(ctx context.Context, after *uuid.UUID, limit int) ([]Patient, error) {
	var rows pgx.Rows
	var err error
	if after == nil {
		rows, err = s.dbtx.Query(ctx, `
			SELECT `+patientColumns+`
			FROM patients WHERE is_archived = false
			ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	} else {
		rows, err = s.dbtx.Query(ctx, `
			SELECT `+patientColumns+`
			FROM patients
			WHERE is_archived = false
			  AND (created_at, id) < (SELECT created_at, id FROM patients WHERE id = $1)
			ORDER BY created_at DESC, id DESC LIMIT $2`, *after, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var items []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient row: %w", err)
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// CreateInvite generates and stores an opaque invite token for a patient
// that does not yet have portal credentials.
func (s *Store) CreateInvite(ctx context.Context, patientID uuid.UUID) (string, time.Time, error) {
	var hasPortal bool
	if err := s.dbtx.QueryRow(ctx, `
		SELECT (password_hash IS NOT NULL) FROM patients
		WHERE id = $1 AND is_archived = false`, patientID).Scan(&hasPortal); err != nil {
		return "", time.Time{}, err
	}
	if hasPortal {
		return "", time.Time{}, apperror.New(apperror.KindConflict, "patient already has portal credentials")
	}

	token := uuid.New().String()
	expiresAt := time.Now().UTC().Add(InviteValidity)
	_, err := s.dbtx.Exec(ctx, `
		UPDATE patients SET invite_token = $2, invite_expires_at = $3
		WHERE id = $1`, patientID, token, expiresAt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("storing invite: %w", err)
	}
	return token, expiresAt, nil
}

// inviteRow holds the fields needed to validate and complete an invite.
type inviteRow struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	InviteExpiresAt *time.Time
}

// GetByInviteToken looks up a patient by invite token across all clinics:
// like staff login, invite redemption runs before any clinic id is bound.
// The invite token is a fresh v4 UUID with 122 bits of entropy, so this
// unscoped lookup is safe against enumeration (see migrations for the RLS
// carve-out permitting it).
func (s *Store) GetByInviteToken(ctx context.Context, pool db.DBTX, token string) (uuid.UUID, uuid.UUID, *time.Time, error) {
	var r inviteRow
	err := pool.QueryRow(ctx, `
		SELECT id, clinic_id, invite_expires_at FROM patients
		WHERE invite_token = $1 AND is_archived = false`, token,
	).Scan(&r.ID, &r.ClinicID, &r.InviteExpiresAt)
	if err != nil {
		return uuid.Nil, uuid.Nil, nil, err
	}
	return r.ID, r.ClinicID, r.InviteExpiresAt, nil
}

// CompleteSetup sets email + passwordHash and clears invite fields,
// returning the updated patient. dbtx must be the unscoped pool connection
// used for GetByInviteToken, prior to any tenant bind for this request.
func CompleteSetup(ctx context.Context, dbtx db.DBTX, patientID uuid.UUID, email, passwordHash string) (Patient, error) {
	row := dbtx.QueryRow(ctx, `
		UPDATE patients
		SET email = $2, password_hash = $3, invite_token = NULL, invite_expires_at = NULL
		WHERE id = $1
		RETURNING `+patientColumns, patientID, email, passwordHash)
	return scanPatient(row)
}

// GetByEmailUnscoped looks up a patient by email across all clinics, for
// patient login. Mirrors pkg/clinic.Store.GetUserByEmail's carve-out.
func GetByEmailUnscoped(ctx context.Context, pool db.DBTX, email string) (Patient, string, error) {
	var p Patient
	var hash *string
	err := pool.QueryRow(ctx, `
		SELECT `+patientColumns+`, password_hash
		FROM patients WHERE email = $1 AND is_archived = false`, email,
	).Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Email, &p.HasPortal, &p.IsArchived, &p.CreatedAt, &hash)
	if err != nil {
		return Patient{}, "", err
	}
	if hash == nil {
		return Patient{}, "", pgx.ErrNoRows
	}
	return p, *hash, nil
}

// GetPasswordHash returns a patient's current password hash, scoped to the
// caller's clinic via the tenant-bound connection.
func (s *Store) GetPasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash *string
	err := s.dbtx.QueryRow(ctx, `SELECT password_hash FROM patients WHERE id = $1`, id).Scan(&hash)
	if err != nil {
		return "", err
	}
	if hash == nil {
		return "", pgx.ErrNoRows
	}
	return *hash, nil
}

// SetPassword updates a patient's password hash.
func (s *Store) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	_, err := s.dbtx.Exec(ctx, `UPDATE patients SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	return err
}
