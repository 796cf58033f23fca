package repositories

import "context"

// TxFn runs with a context that carries the open transaction.
type TxFn func(ctx context.Context) error

// TransactionManager makes a group of driver writes all-or-nothing. Durable
// batch updates (tile reorder, dashboard deletion) run through it so a
// failure partway leaves no half-applied order behind.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
