package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TxQuerier is satisfied by *sql.DB, *sql.Tx and the rebinding wrapper.
// Repositories depend on it so the same code runs inside or outside a
// transaction.
type TxQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rebinder rewrites "?" placeholders before delegating.
type rebinder struct {
	q      TxQuerier
	driver string
}

func (r rebinder) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, Rebind(r.driver, query), args...)
}

func (r rebinder) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, Rebind(r.driver, query), args...)
}

func (r rebinder) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, Rebind(r.driver, query), args...)
}

// WithTx runs fn inside a SQL transaction.
//
//  1. BEGIN
//  2. fn(tx)
//  3. nil  → COMMIT
//  4. err  → ROLLBACK
//  5. panic → ROLLBACK, then re-panic
//
// The deferred rollback keeps a panicking fn from leaving the transaction
// (and with SQLite, the only connection) open.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}

		if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return
}

// WithTx is the driver-aware variant: fn receives a TxQuerier that rebinds
// placeholders for the active driver.
func (db *DB) WithTx(ctx context.Context, fn func(q TxQuerier) error) error {
	return WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		return fn(rebinder{q: tx, driver: db.Driver})
	})
}
