package database

import (
	"context"
	"database/sql"

	"github.com/dquispe/cineticket/internal/txn"
)

// sqlTx wraps *sql.Tx behind the txn.Tx interface.
type sqlTx struct {
	*sql.Tx
}

// TxManager implements txn.Manager on top of a *sql.DB.
type TxManager struct {
	db *sql.DB
}

// NewTxManager returns a TxManager bound to the given database.
func NewTxManager(db *sql.DB) *TxManager { return &TxManager{db: db} }

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (txn.Tx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{Tx: tx}, nil
}

// Unwrap extracts the underlying *sql.Tx from a txn.Tx produced by this
// package. Repositories use it to run statements inside the caller's
// transaction; it returns nil for foreign implementations.
func Unwrap(tx txn.Tx) *sql.Tx {
	if w, ok := tx.(*sqlTx); ok {
		return w.Tx
	}
	return nil
}
