// Package dbx holds the database plumbing the vault repositories share:
// DBTX, a narrow query interface satisfied by both *sql.DB and *sql.Tx,
// and WithTx for wrapping multi-statement work in a transaction.
package dbx

import (
	"context"
	"database/sql"
)

// DBTX is the slice of database/sql that user and secret repositories
// need. Passing *sql.DB runs statements directly; passing *sql.Tx joins
// an open transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction: commit when fn returns nil,
// rollback when it returns an error or panics. A panic is rolled back and
// then rethrown to the caller.
//
// The login flow uses it to keep the credential upgrade and the
// last-login stamp atomic:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return repos.Users(tx).UpdateLastLogin(ctx, id, now)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}
