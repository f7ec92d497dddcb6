package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibrief/api/internal/apperror"
)

// Store provides database operations for clinics and staff users. Unlike
// every other store in this repo, Store holds a raw *pgxpool.Pool rather
// than a tenant-scoped connection: registration and login are the two
// operations that run before a clinic id exists to bind into the session
// (spec.md §4.1), so they cannot go through tenant.Middleware.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a clinic Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RegisterClinic atomically creates a Clinic, its ADMIN user, and an audit
// record in one transaction (spec.md §4.1). Uniqueness violations on either
// email surface as a conflict.
func (s *Store) RegisterClinic(ctx context.Context, req RegisterRequest, passwordHash string) (Clinic, User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Clinic{}, User{}, fmt.Errorf("beginning registration transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var clinicExists, emailExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM clinics WHERE email = $1)`, req.ClinicEmail).Scan(&clinicExists); err != nil {
		return Clinic{}, User{}, fmt.Errorf("checking clinic email: %w", err)
	}
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, req.AdminEmail).Scan(&emailExists); err != nil {
		return Clinic{}, User{}, fmt.Errorf("checking admin email: %w", err)
	}
	if clinicExists || emailExists {
		return Clinic{}, User{}, apperror.New(apperror.KindConflict, "clinic or admin email already in use")
	}

	var c Clinic
	now := time.Now().UTC()
	err = tx.QueryRow(ctx, `
		INSERT INTO clinics (id, name, email, subscription_plan, ai_call_count, billing_period_start, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		RETURNING id, name, email, subscription_plan, ai_call_count, billing_period_start, created_at`,
		uuid.New(), req.ClinicName, req.ClinicEmail, req.SubscriptionPlan, now,
	).Scan(&c.ID, &c.Name, &c.Email, &c.SubscriptionPlan, &c.AICallCount, &c.BillingPeriodStart, &c.CreatedAt)
	if err != nil {
		return Clinic{}, User{}, mapUniqueViolation(err, "clinic email already in use")
	}

	var u User
	err = tx.QueryRow(ctx, `
		INSERT INTO users (id, clinic_id, name, email, password_hash, role, is_archived, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		RETURNING id, clinic_id, name, email, role, is_archived, created_at`,
		uuid.New(), c.ID, req.AdminName, req.AdminEmail, passwordHash, RoleAdmin, now,
	).Scan(&u.ID, &u.ClinicID, &u.Name, &u.Email, &u.Role, &u.IsArchived, &u.CreatedAt)
	if err != nil {
		return Clinic{}, User{}, mapUniqueViolation(err, "admin email already in use")
	}

	if _, err := tx.Exec(ctx, `
		SELECT set_config('app.clinic_id', $1, true)`, c.ID.String()); err != nil {
		return Clinic{}, User{}, fmt.Errorf("binding clinic for audit insert: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_log (id, clinic_id, user_id, action, entity_type, entity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), c.ID, u.ID, "register clinic", "clinic", c.ID, now,
	); err != nil {
		return Clinic{}, User{}, fmt.Errorf("writing registration audit record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Clinic{}, User{}, fmt.Errorf("committing registration: %w", err)
	}

	return c, u, nil
}

// GetUserByEmail looks up a staff user by email across all clinics. It runs
// unscoped because at login time no clinic id is known yet to bind into the
// session; the row-level policy on `users` permits reads when app.clinic_id
// is unset (see migrations). GetUserByID and RegisterClinic's email check
// also query users on the raw pool without a bound clinic id.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, string, error) {
	var u User
	var passwordHash string
	err := s.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, password_hash, role, is_archived, created_at
		FROM users WHERE email = $1 AND is_archived = false`, email,
	).Scan(&u.ID, &u.ClinicID, &u.Name, &u.Email, &passwordHash, &u.Role, &u.IsArchived, &u.CreatedAt)
	if err != nil {
		return User{}, "", err
	}
	return u, passwordHash, nil
}

// GetUserByID looks up a non-archived staff user by id on the raw pool,
// with no clinic id bound.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, role, is_archived, created_at
		FROM users WHERE id = $1 AND is_archived = false`, id,
	).Scan(&u.ID, &u.ClinicID, &u.Name, &u.Email, &u.Role, &u.IsArchived, &u.CreatedAt)
	return u, err
}

// GetClinicByID returns clinic metadata, including AI quota bookkeeping.
func (s *Store) GetClinicByID(ctx context.Context, id uuid.UUID) (Clinic, error) {
	var c Clinic
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, email, subscription_plan, ai_call_count, billing_period_start, created_at
		FROM clinics WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.SubscriptionPlan, &c.AICallCount, &c.BillingPeriodStart, &c.CreatedAt)
	return c, err
}

// IncrementAICallCount bumps the clinic's monthly AI call counter, resetting
// it first if the billing period has rolled into a new UTC month (spec.md
// §4.8). The increment is not transactional with the job enqueue that
// triggers it: over-counting under retry is tolerated (spec.md §9).
func (s *Store) IncrementAICallCount(ctx context.Context, id uuid.UUID) (Clinic, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Clinic{}, fmt.Errorf("beginning quota transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c Clinic
	err = tx.QueryRow(ctx, `
		SELECT id, name, email, subscription_plan, ai_call_count, billing_period_start, created_at
		FROM clinics WHERE id = $1 FOR UPDATE`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.SubscriptionPlan, &c.AICallCount, &c.BillingPeriodStart, &c.CreatedAt)
	if err != nil {
		return Clinic{}, err
	}

	now := time.Now().UTC()
	if now.Year() != c.BillingPeriodStart.Year() || now.Month() != c.BillingPeriodStart.Month() {
		c.AICallCount = 0
		c.BillingPeriodStart = now
	}
	c.AICallCount++

	if _, err := tx.Exec(ctx, `
		UPDATE clinics SET ai_call_count = $2, billing_period_start = $3 WHERE id = $1`,
		c.ID, c.AICallCount, c.BillingPeriodStart,
	); err != nil {
		return Clinic{}, fmt.Errorf("updating quota: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Clinic{}, fmt.Errorf("committing quota update: %w", err)
	}
	return c, nil
}

func mapUniqueViolation(err error, message string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.New(apperror.KindConflict, message)
	}
	return fmt.Errorf("persisting registration: %w", err)
}
