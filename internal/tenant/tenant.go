// Package tenant resolves the authenticated caller's clinic and binds it to
// a session-scoped PostgreSQL variable on a dedicated per-request
// connection, so every query issued through that connection is subject to
// the clinic's row-level security policies.
package tenant

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Info holds the resolved clinic for the current request.
type Info struct {
	ClinicID uuid.UUID
	Name     string
}

type contextKey string

const (
	infoKey contextKey = "clinic_info"
	connKey contextKey = "clinic_conn"
)

// NewContext stores clinic info in the context.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// FromContext extracts the clinic info from the context. Returns nil if
// no clinic is bound (e.g. unauthenticated requests).
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(infoKey).(*Info)
	return v
}

// NewConnContext stores a clinic-scoped database connection in the context.
func NewConnContext(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, connKey, conn)
}

// ConnFromContext extracts the clinic-scoped database connection from the
// context. Returns nil if no connection is bound.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	v, _ := ctx.Value(connKey).(*pgxpool.Conn)
	return v
}

// BindConn acquires a dedicated connection from pool and binds clinicID
// into the `app.clinic_id` session variable every row-level security
// policy reads, for callers outside the HTTP middleware chain (e.g.
// pkg/aipipeline's Temporal activities, which need a tenant-bound
// connection but have no request to hang one off of). The caller must
// Release the returned connection.
func BindConn(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "SELECT set_config('app.clinic_id', $1, false)", clinicID.String()); err != nil {
		conn.Release()
		return nil, err
	}
	return conn, nil
}
