package repositories

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx. The entry,
// share and bin repositories run every statement against it, so the same
// method works standalone or joins a multi-statement unit (ingestion batch,
// share propagation, expiry sweep) without knowing which.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

type txCtxKey struct{}

// SetTx returns a context carrying the transaction. Repositories resolve
// their executor through GetTx, so everything called under ExecTx commits or
// rolls back as one unit.
func SetTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// GetTx returns the transaction carried by the context, or nil outside one.
func GetTx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx
}
