package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"go.uber.org/zap"

	"github.com/GalaDe/ideas-service/internal/domain"
)

// DBTX is satisfied by both the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type PostgresTransactor struct {
	conn   *Postgres
	logger *zap.Logger
}

var _ domain.Transactor = (*PostgresTransactor)(nil)

func NewPostgresTransactor(conn *Postgres, logger *zap.Logger) *PostgresTransactor {
	return &PostgresTransactor{conn: conn, logger: logger}
}

// WithinTransaction runs queries within a transaction
//
// The transaction commits when functions are finished without error
// and is rolledback otherwise. A call made while a transaction is already
// in ctx joins it.
// ref: https://www.kaznacheev.me/posts/en/clean-transactions-in-hexagon/
func (p *PostgresTransactor) WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	if ExtractTx(ctx) != nil {
		return txFunc(ctx)
	}

	tx, err := p.conn.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error begin tx: %w", err)
	}

	// run callback
	err = txFunc(InjectTx(ctx, tx))
	if err != nil {
		// if err, rollback
		if errRollback := tx.Rollback(ctx); errRollback != nil {
			p.logger.Error("rollback tx", zap.Error(errRollback))
		}
		return err
	}
	// if no err, commit
	if errCommit := tx.Commit(ctx); errCommit != nil {
		return fmt.Errorf("commit tx: %w", errCommit)
	}

	return nil
}

// DB returns the transaction carried by ctx, or the pool.
func (p *PostgresTransactor) DB(ctx context.Context) DBTX {
	if tx := ExtractTx(ctx); tx != nil {
		return tx
	}
	return p.conn.Pool
}

// Source: https://www.kaznacheev.me/posts/en/clean-transactions-in-hexagon/

// txKey is a context key for holding pgx.Tx
type txKey struct{}

// InjectTx injects transactions into context
func InjectTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey{}, tx)
}

// ExtractTx extracts transaction from context
func ExtractTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}
