package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txKey struct{}

// Querier is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	QueryRowxContext(ctx context.Context, query string, args ...any) *sqlx.Row
}

// Conn returns the transaction carried by ctx, or the pool when there is none.
// Repositories must run every statement through Conn so that work started
// inside Transaction stays on the same connection.
func (db *DB) Conn(ctx context.Context) Querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return db.DB
}

// InTransaction reports whether ctx already carries an open transaction.
func InTransaction(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// Transaction executes fn within a transaction. The transaction travels in
// the context handed to fn. A nested call joins the outer transaction and
// leaves commit or rollback to it.
func (db *DB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func txFromContext(ctx context.Context) *sqlx.Tx {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return nil
}
