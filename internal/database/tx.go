package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type txCtxKey struct{}

// querier is implemented by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	sqlx.ExtContext
}

// q returns the transaction carried by ctx, or the database handle. With a
// single pooled connection, every statement issued while a transaction is open
// must go through the transaction.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txCtxKey{}).(*sqlx.Tx)
	return ok
}

// RunInTx executes fn within a transaction. A nested call joins the outer
// transaction. On error fn's writes are rolled back; on panic the transaction is
// rolled back and the panic re-raised.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.wrap(ctx, "begin transaction", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		s.flushSnapshot(ctx)
	}()

	if err := fn(context.WithValue(ctx, txCtxKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return s.wrap(ctx, "commit transaction", err)
	}
	return nil
}
