package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque execution context passed through repositories.
// Concrete values are pgx.Tx, *pgxpool.Conn, *pgxpool.Pool or nil
// (nil means "use the pool directly").
type Tx = interface{}

// TransactionManager runs a function inside a database transaction.
// If fn returns an error the transaction is rolled back.
type TransactionManager interface {
	WithTx(ctx context.Context, opts pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
