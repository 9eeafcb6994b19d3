package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// RATIONALE
// - Keeps use-case interfaces clean (no transaction types leaking out).
// - Allows repository methods that accept a Tx to detect a live transaction
//   (implementation-side) and run tx-bound Exec/Query as needed.
//
// The concrete type of `tx` is infra-defined (pgx.Tx for Postgres).
// Repositories MUST gracefully accept `nil` tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
