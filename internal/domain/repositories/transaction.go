package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions. Every multi-statement
// unit (ingestion batch, recursive owner change, share propagation) must run
// inside ExecTx so that no statement becomes visible before commit and any
// failure rolls back the whole unit.
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error
}
