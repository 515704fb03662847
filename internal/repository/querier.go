package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so every repository can
// run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Stores groups the repositories bound to one Querier
type Stores struct {
	Products   ProductRepository
	Categories CategoryRepository
	Sales      SaleRepository
	Closings   ClosingRepository
}

// NewStores binds every repository to q
func NewStores(q Querier) Stores {
	return Stores{
		Products:   NewProductRepository(q),
		Categories: NewCategoryRepository(q),
		Sales:      NewSaleRepository(q),
		Closings:   NewClosingRepository(q),
	}
}

// TxRunner executes fn with stores bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	Run(ctx context.Context, fn func(stores Stores) error) error
}

type txRunner struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTxRunner creates a TxRunner over the pool
func NewTxRunner(db *sql.DB, logger *zap.Logger) TxRunner {
	return &txRunner{db: db, logger: logger}
}

func (r *txRunner) Run(ctx context.Context, fn func(stores Stores) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.logger.Error("Failed to roll back transaction", zap.Error(rbErr))
			}
		}
	}()

	if err = fn(NewStores(tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == pgUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return pgErrorCode(err) == pgForeignKeyViolation
}

func isCheckViolation(err error) bool {
	return pgErrorCode(err) == pgCheckViolation
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}
