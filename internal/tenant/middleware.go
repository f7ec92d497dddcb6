package tenant

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver identifies the clinic for the current request, typically by
// reading the authenticated identity already stored in the request context.
type Resolver interface {
	Resolve(r *http.Request) (clinicID uuid.UUID, err error)
}

// Lookup retrieves clinic metadata by ID.
type Lookup interface {
	LookupByID(ctx context.Context, id uuid.UUID) (name string, err error)
}

// DefaultLookup is a raw-SQL Lookup using a pgxpool.Pool.
type DefaultLookup struct {
	Pool *pgxpool.Pool
}

func (d *DefaultLookup) LookupByID(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := d.Pool.QueryRow(ctx, "SELECT name FROM clinics WHERE id = $1 ", id).Scan(&name)
	if err != nil {
		return "", err
	}
	return name, nil
}

// Middleware resolves the clinic, acquires a dedicated connection, binds
// the clinic ID into a session variable consumed by every row-level
// security policy, and stores both the clinic info and the scoped
// connection in the request context. Once the downstream handler returns,
// the variable is cleared and the connection is released (returned to the
// pool), so its scope matches one request.
//
// The row-level policies on the bound connection are the clinic isolation
// for the stores built from it: store queries carry no explicit
// `clinic_id = $1` predicate of their own.
func Middleware(pool *pgxpool.Pool, lookup Lookup, resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clinicID, err := resolver.Resolve(r)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "unauthenticated", "clinic resolution failed")
				return
			}

			name, err := lookup.LookupByID(r.Context(), clinicID)
			if err != nil {
				logger.Warn("clinic not found", "clinic_id", clinicID, "error", err)
				respondError(w, http.StatusUnauthorized, "unauthenticated", "unknown clinic")
				return
			}

			conn, err := BindConn(r.Context(), pool, clinicID)
			if err != nil {
				logger.Error("binding clinic session", "clinic_id", clinicID, "error", err)
				respondError(w, http.StatusServiceUnavailable, "unavailable", "database connection unavailable")
				return
			}
			defer func() {
				_, _ = conn.Exec(context.Background(), "SELECT set_config('app.clinic_id', '', false)")
				conn.Release()
			}()

			info := &Info{ClinicID: clinicID, Name: name}
			ctx := NewContext(r.Context(), info)
			ctx = NewConnContext(ctx, conn)

			logger.Debug("clinic resolved", "clinic_id", clinicID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondError(w http.ResponseWriter, status int, errStr, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errStr,
		"message": message,
	})
}
