package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kiosk-pos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOperatorNotFound      = fmt.Errorf("operator %w", domain.ErrNotFound)
	ErrOperatorAlreadyExists = fmt.Errorf("operator with this username already exists: %w", domain.ErrDuplicateKey)
)

// OperatorRepository defines the interface for operator account data access
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	FindByUsername(ctx context.Context, username string) (*domain.Operator, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error)
}

type operatorRepository struct {
	q Querier
}

// NewOperatorRepository creates a new instance of OperatorRepository
func NewOperatorRepository(q Querier) OperatorRepository {
	return &operatorRepository{q: q}
}

// Create inserts a new operator; the password must already be hashed
func (r *operatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	query := `
		INSERT INTO operators (id, username, email, password_hash, is_superuser, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(
		ctx,
		query,
		operator.ID,
		operator.Username,
		operator.Email,
		operator.PasswordHash,
		operator.IsSuperuser,
		operator.CreatedAt,
		operator.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrOperatorAlreadyExists
		}
		return fmt.Errorf("failed to create operator: %w", err)
	}

	return nil
}

func (r *operatorRepository) findOne(ctx context.Context, what, where string, arg interface{}) (*domain.Operator, error) {
	query := `
		SELECT id, username, email, password_hash, is_superuser, created_at, updated_at
		FROM operators
		WHERE ` + where

	operator := &domain.Operator{}
	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&operator.ID,
		&operator.Username,
		&operator.Email,
		&operator.PasswordHash,
		&operator.IsSuperuser,
		&operator.CreatedAt,
		&operator.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("failed to find operator by %s: %w", what, err)
	}

	return operator, nil
}

// FindByUsername retrieves an operator by username
func (r *operatorRepository) FindByUsername(ctx context.Context, username string) (*domain.Operator, error) {
	return r.findOne(ctx, "username", "username = $1", username)
}

// FindByID retrieves an operator by ID
func (r *operatorRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Operator, error) {
	return r.findOne(ctx, "ID", "id = $1", id)
}
