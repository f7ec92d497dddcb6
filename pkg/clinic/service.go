package clinic

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/medibrief/api/internal/apperror"
	"github.com/medibrief/api/internal/auth"
)

// Service implements clinic registration and staff login (C1).
type Service struct {
	store      *Store
	sessionMgr *auth.SessionManager
	bcryptCost int
}

// NewService creates a clinic Service.
func NewService(store *Store, sessionMgr *auth.SessionManager, bcryptCost int) *Service {
	return &Service{store: store, sessionMgr: sessionMgr, bcryptCost: bcryptCost}
}

// Register creates a clinic, its admin user, and an audit record, then
// issues a session token for the new admin.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "hashing password", err)
	}

	c, u, err := s.store.RegisterClinic(ctx, req, hash)
	if err != nil {
		return AuthResponse{}, err
	}

	token, err := s.sessionMgr.Issue(u.Name, u.Email, u.Role, c.ID, u.ID)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "issuing token", err)
	}

	return AuthResponse{Token: token, User: u}, nil
}

// Login verifies staff credentials and issues a session token. Unknown
// email and wrong password are made indistinguishable: both run the bcrypt
// comparison (against a fixed dummy hash when the email doesn't exist) and
// return the same generic error (spec.md §4.1).
func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	u, hash, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "looking up user", err)
		}
		auth.VerifyPassword(dummyHash, req.Password)
		return AuthResponse{}, apperror.New(apperror.KindUnauthenticated, "invalid email or password")
	}

	if !auth.VerifyPassword(hash, req.Password) {
		return AuthResponse{}, apperror.New(apperror.KindUnauthenticated, "invalid email or password")
	}

	token, err := s.sessionMgr.Issue(u.Name, u.Email, u.Role, u.ClinicID, u.ID)
	if err != nil {
		return AuthResponse{}, apperror.Wrap(apperror.KindInternal, "issuing token", err)
	}

	return AuthResponse{Token: token, User: u}, nil
}

// dummyHash is a fixed bcrypt hash compared against on an unknown-email
// login so the failure path takes the same wall-clock time as a genuine
// mismatch, regardless of whether the email exists.
const dummyHash = "$2a$12$CwTycUXWue0Thq9StjUM0uQxTmrjOBU.lFQD.8RhvYH0ND5HxQgKG"

// Me returns the caller's own staff profile.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (User, error) {
	return s.store.GetUserByID(ctx, userID)
}
