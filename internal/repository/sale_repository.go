package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kiosk-pos/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrSaleNotFound = fmt.Errorf("sale %w", domain.ErrNotFound)

const saleColumns = `id, created_at, operator_id, payment_method, total, amount_received, change, card_surcharge, notes`

// SaleRepository defines the interface for sale data access. Sales are
// immutable so there is no update.
type SaleRepository interface {
	Create(ctx context.Context, sale *domain.Sale) error
	CreateLines(ctx context.Context, lines []domain.SaleLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error)
	ListByOperatorBetween(ctx context.Context, operatorID uuid.UUID, from, to time.Time) ([]*domain.Sale, error)
	ListRecentByOperator(ctx context.Context, operatorID uuid.UUID, limit int) ([]*domain.Sale, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type saleRepository struct {
	q Querier
}

// NewSaleRepository creates a new instance of SaleRepository
func NewSaleRepository(q Querier) SaleRepository {
	return &saleRepository{q: q}
}

func scanSale(row scanner) (*domain.Sale, error) {
	var (
		sale     domain.Sale
		received decimal.NullDecimal
	)
	err := row.Scan(
		&sale.ID,
		&sale.CreatedAt,
		&sale.OperatorID,
		&sale.PaymentMethod,
		&sale.Total,
		&received,
		&sale.Change,
		&sale.CardSurcharge,
		&sale.Notes,
	)
	if err != nil {
		return nil, err
	}
	if received.Valid {
		sale.AmountReceived = &received.Decimal
	}
	sale.Lines = []domain.SaleLine{}
	return &sale, nil
}

// Create inserts the sale header
func (r *saleRepository) Create(ctx context.Context, sale *domain.Sale) error {
	query := `
		INSERT INTO sales (` + saleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	var received interface{}
	if sale.AmountReceived != nil {
		received = domain.RoundMoney(*sale.AmountReceived)
	}

	_, err := r.q.ExecContext(
		ctx,
		query,
		sale.ID,
		sale.CreatedAt,
		sale.OperatorID,
		string(sale.PaymentMethod),
		domain.RoundMoney(sale.Total),
		received,
		domain.RoundMoney(sale.Change),
		domain.RoundMoney(sale.CardSurcharge),
		sale.Notes,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("operator %w", domain.ErrNotFound)
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}

	return nil
}

// CreateLines inserts the lines of a sale
func (r *saleRepository) CreateLines(ctx context.Context, lines []domain.SaleLine) error {
	query := `
		INSERT INTO sale_lines (id, sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, line := range lines {
		_, err := r.q.ExecContext(
			ctx,
			query,
			line.ID,
			line.SaleID,
			line.ProductID,
			line.Quantity,
			domain.RoundMoney(line.UnitPrice),
			domain.RoundMoney(line.Subtotal),
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrProductNotFound
			}
			if isCheckViolation(err) {
				return domain.ErrInvalidQuantity
			}
			return fmt.Errorf("failed to create sale line: %w", err)
		}
	}

	return nil
}

// FindByID retrieves a sale together with its lines
func (r *saleRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, err := scanSale(r.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to find sale by ID: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		FROM sale_lines
		WHERE sale_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list sale lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(&line.ID, &line.SaleID, &line.ProductID, &line.Quantity, &line.UnitPrice, &line.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan sale line: %w", err)
		}
		sale.Lines = append(sale.Lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sale lines: %w", err)
	}

	return sale, nil
}

func (r *saleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.Sale, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := []*domain.Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	return sales, nil
}

// ListByOperatorBetween returns the operator's sales with from <= created_at < to
func (r *saleRepository) ListByOperatorBetween(ctx context.Context, operatorID uuid.UUID, from, to time.Time) ([]*domain.Sale, error) {
	return r.list(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE operator_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`, operatorID, from, to)
}

// ListRecentByOperator returns the operator's newest sales first
func (r *saleRepository) ListRecentByOperator(ctx context.Context, operatorID uuid.UUID, limit int) ([]*domain.Sale, error) {
	return r.list(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE operator_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, operatorID, limit)
}

// Delete removes a sale; its lines go with it. Stock is not restored.
func (r *saleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrSaleNotFound
	}

	return nil
}
