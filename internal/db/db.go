// Package db holds the shared database-transaction abstraction used by every
// store in pkg/. There is no code generator here: queries are hand-written
// parameterized SQL scanned manually, in the same style the stores in this
// repo were already written in.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so stores can be
// constructed from either a pool connection or an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
