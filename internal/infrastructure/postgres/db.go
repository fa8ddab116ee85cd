package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier es lo común entre *pgxpool.Pool y pgx.Tx. Los repositorios lo reciben para poder
// usarse con el pool (autocommit) o atados a una transacción.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner abre transacciones (lo cumplen *pgxpool.Pool y pgxmock.PgxPoolIface).
type TxBeginner interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}
