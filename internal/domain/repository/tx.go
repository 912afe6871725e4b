package repository

import "context"

// TxManager runs a function inside a database transaction. Repositories
// participating in the unit of work pick the transaction up from the context,
// so fn keeps calling the same repository values it already holds.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
