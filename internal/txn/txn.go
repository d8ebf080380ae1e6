// Package txn abstracts database transactions so the service layer can
// coordinate multi-table writes without importing database/sql directly.
// Unit tests substitute lightweight fakes for both interfaces.
package txn

import "context"

// Tx represents an open transaction.
type Tx interface {
	Commit() error
	Rollback() error
}

// Manager begins transactions.
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
