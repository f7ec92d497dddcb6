package patient

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
)

// Service implements patient CRUD and the invite/setup/login flows
// (spec.md §4.1, §4.4).
type Service struct {
	store      *Store
	pool       *pgxpool.Pool
	sessionMgr *auth.SessionManager
	bcryptCost int
}

// NewService creates a patient Service. pool is the raw, unscoped pool used
// only by the pre-tenant-bind setup and login flows; store wraps the
// tenant-scoped connection for every other operation.
func NewService(store *Store, pool *pgxpool.Pool, sessionMgr *auth.SessionManager, bcryptCost int) *Service {
	return &Service{store: store, pool: pool, sessionMgr: sessionMgr, bcryptCost: bcryptCost}
}

// Create inserts a new patient record.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req CreateRequest) (Patient, error) {
	return s.store.Create(ctx, clinicID, req)
}

// Get returns a patient by ID, mapping a missing row to not-found.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Patient, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, apperror.New(apperror.KindNotFound, "patient not found")
	}
	return p, err
}

// Update updates a patient's editable fields.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (Patient, error) {
	p, err := s.store.Update(ctx, id, req)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, apperror.New(apperror.KindNotFound, "patient not found")
	}
	return p, err
}

// Delete archives a patient. Callers must already have enforced the
// ADMIN-only restriction (spec.md §4.4).
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.New(apperror.KindNotFound, "patient not found")
		}
		return err
	}
	return nil
}

// List returns a cursor page of patients.
func (s *Service) List(ctx context.Context, after *uuid.UUID, limit int) (ListPage, error) {
	items, err := s.store.List(ctx, after, limit+1)
	if err != nil {
		return ListPage{}, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	page := ListPage{Data: items}
	if hasMore && len(items) > 0 {
		id := items[len(items)-1].ID
		page.NextCursor = &id
	}
	return page, nil
}

// CreateInvite generates an invite token for an existing patient. Fails
// with conflict if the patient already has portal credentials.
func (s *Service) CreateInvite(ctx context.Context, patientID uuid.UUID) (InviteResponse, error) {
	token, expiresAt, err := s.store.CreateInvite(ctx, patientID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InviteResponse{}, apperror.New(apperror.KindNotFound, "patient not found")
		}
		return InviteResponse{}, err
	}
	return InviteResponse{PatientID: patientID, InviteToken: token, InviteExpiresAt: expiresAt}, nil
}

// Setup completes invite-based onboarding: validates the invite, sets
// credentials, and issues a PATIENT session token (spec.md §4.1).
func (s *Service) Setup(ctx context.Context, req SetupRequest) (AuthResponse, error) {
	id, clinicID, expiresAt, err := s.store.GetByInviteToken(ctx, s.pool, req.InviteToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AuthResponse{}, apperror.New(apperror.KindNotFound, "invite not found")
		}
		return AuthResponse{}, err
	}
	if expiresAt == nil || expiresAt.Before(time.Now().UTC()) {
		return AuthResponse{}, apperror.New(apperror.KindGone, "invite has expired")
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "hashing password", err)
	}

	p, err := CompleteSetup(ctx, s.pool, id, req.Email, hash)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindConflict, "completing patient setup", err)
	}

	token, err := s.sessionMgr.Issue(p.FirstName+" "+p.LastName, req.Email, auth.RolePatient, clinicID, p.ID)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "issuing token", err)
	}
	return AuthResponse{Token: token, Patient: p}, nil
}

// Login verifies patient credentials and issues a session token. Mirrors
// pkg/clinic.Service.Login's indistinguishable-failure behavior.
func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	p, hash, err := GetByEmailUnscoped(ctx, s.pool, req.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "looking up patient", err)
		}
		auth.VerifyPassword(dummyHash, req.Password)
		return AuthResponse{}, apperror.New(apperror.KindUnauthenticated, "invalid email or password")
	}

	if !auth.VerifyPassword(hash, req.Password) {
		return AuthResponse{}, apperror.New(apperror.KindUnauthenticated, "invalid email or password")
	}

	token, err := s.sessionMgr.Issue(p.FirstName+" "+p.LastName, req.Email, auth.RolePatient, p.ClinicID, p.ID)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "issuing token", err)
	}
	return AuthResponse{Token: token, Patient: p}, nil
}

// ChangePassword verifies the current password and sets a new one.
// Requires a tenant-bound connection (the caller is already authenticated
// in their own clinic), unlike Setup/Login.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, req ChangePasswordRequest) error {
	hash, err := s.store.GetPasswordHash(ctx, id)
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
	return s.store.SetPassword(ctx, id, newHash)
}

// dummyHash mirrors pkg/clinic.dummyHash for the same timing-indistinguishability reason.
const dummyHash = "$2a$12$CwTycUXWue0Thq9StjUM0uQxTmrjOBU.lFQD.8RhvYH0ND5HxQgKG"
