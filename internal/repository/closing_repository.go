package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kiosk-pos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrClosingNotFound = fmt.Errorf("cash closing %w", domain.ErrNotFound)
	ErrClosingExists   = fmt.Errorf("cash closing already exists for this date: %w", domain.ErrDuplicateKey)
)

const closingColumns = `
	id, business_date, operator_id, opening_cash, closing_cash, cash_total, debit_total,
	credit_total, transfer_total, wallet_total, sales_total, sales_count, variance, notes,
	submitted_at, created_at, updated_at`

// ClosingRepository defines the interface for cash closing data access
type ClosingRepository interface {
	Create(ctx context.Context, closing *domain.CashClosing) error
	Update(ctx context.Context, closing *domain.CashClosing) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.CashClosing, error)
	LockByID(ctx context.Context, id uuid.UUID) (*domain.CashClosing, error)
	LockForDate(ctx context.Context, operatorID uuid.UUID, businessDate time.Time) (*domain.CashClosing, error)
}

type closingRepository struct {
	q Querier
}

// NewClosingRepository creates a new instance of ClosingRepository
func NewClosingRepository(q Querier) ClosingRepository {
	return &closingRepository{q: q}
}

func (r *closingRepository) findOne(ctx context.Context, where string, args ...interface{}) (*domain.CashClosing, error) {
	var (
		closing   domain.CashClosing
		submitted sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, `SELECT `+closingColumns+` FROM cash_closings WHERE `+where, args...).Scan(
		&closing.ID,
		&closing.BusinessDate,
		&closing.OperatorID,
		&closing.OpeningCash,
		&closing.ClosingCash,
		&closing.CashTotal,
		&closing.DebitTotal,
		&closing.CreditTotal,
		&closing.TransferTotal,
		&closing.WalletTotal,
		&closing.SalesTotal,
		&closing.SalesCount,
		&closing.Variance,
		&closing.Notes,
		&submitted,
		&closing.CreatedAt,
		&closing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrClosingNotFound
		}
		return nil, fmt.Errorf("failed to find cash closing: %w", err)
	}

	if submitted.Valid {
		closing.SubmittedAt = &submitted.Time
	}
	return &closing, nil
}

// Create inserts a closing. A second closing for the same operator and
// date fails with ErrClosingExists.
func (r *closingRepository) Create(ctx context.Context, closing *domain.CashClosing) error {
	query := `
		INSERT INTO cash_closings (` + closingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.q.ExecContext(
		ctx,
		query,
		closing.ID,
		closing.BusinessDate,
		closing.OperatorID,
		domain.RoundMoney(closing.OpeningCash),
		domain.RoundMoney(closing.ClosingCash),
		domain.RoundMoney(closing.CashTotal),
		domain.RoundMoney(closing.DebitTotal),
		domain.RoundMoney(closing.CreditTotal),
		domain.RoundMoney(closing.TransferTotal),
		domain.RoundMoney(closing.WalletTotal),
		domain.RoundMoney(closing.SalesTotal),
		closing.SalesCount,
		domain.RoundMoney(closing.Variance),
		closing.Notes,
		closing.SubmittedAt,
		closing.CreatedAt,
		closing.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrClosingExists
		}
		return fmt.Errorf("failed to create cash closing: %w", err)
	}

	return nil
}

// Update overwrites amounts, totals and submission state of a closing
func (r *closingRepository) Update(ctx context.Context, closing *domain.CashClosing) error {
	query := `
		UPDATE cash_closings
		SET opening_cash = $2, closing_cash = $3, cash_total = $4, debit_total = $5,
		    credit_total = $6, transfer_total = $7, wallet_total = $8, sales_total = $9,
		    sales_count = $10, variance = $11, notes = $12, submitted_at = $13, updated_at = $14
		WHERE id = $1
	`

	result, err := r.q.ExecContext(
		ctx,
		query,
		closing.ID,
		domain.RoundMoney(closing.OpeningCash),
		domain.RoundMoney(closing.ClosingCash),
		domain.RoundMoney(closing.CashTotal),
		domain.RoundMoney(closing.DebitTotal),
		domain.RoundMoney(closing.CreditTotal),
		domain.RoundMoney(closing.TransferTotal),
		domain.RoundMoney(closing.WalletTotal),
		domain.RoundMoney(closing.SalesTotal),
		closing.SalesCount,
		domain.RoundMoney(closing.Variance),
		closing.Notes,
		closing.SubmittedAt,
		closing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update cash closing: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrClosingNotFound
	}

	return nil
}

// FindByID retrieves a closing without locking it
func (r *closingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CashClosing, error) {
	return r.findOne(ctx, "id = $1", id)
}

// LockByID retrieves a closing and holds its row lock until the transaction ends
func (r *closingRepository) LockByID(ctx context.Context, id uuid.UUID) (*domain.CashClosing, error) {
	return r.findOne(ctx, "id = $1 FOR UPDATE", id)
}

// LockForDate retrieves and locks the closing of an operator for a business date
func (r *closingRepository) LockForDate(ctx context.Context, operatorID uuid.UUID, businessDate time.Time) (*domain.CashClosing, error) {
	return r.findOne(ctx, "operator_id = $1 AND business_date = $2 FOR UPDATE", operatorID, businessDate)
}
