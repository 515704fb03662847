package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be greater than zero", ErrValidation)
	ErrInvalidPayment    = fmt.Errorf("%w: invalid payment", ErrValidation)
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrParse             = errors.New("parse error")
	ErrProductInUse      = errors.New("product is referenced by recorded sales")
)

// ValidationError describes a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError formats a field error
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StockError reports which product could not cover the requested quantity
type StockError struct {
	ProductID uuid.UUID
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.Name, e.Available, e.Requested)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }
