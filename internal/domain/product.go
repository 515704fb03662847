package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Barcode      *string         `json:"barcode,omitempty" db:"barcode"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Stock        int             `json:"stock" db:"stock"`
	CategoryID   *uuid.UUID      `json:"category_id,omitempty" db:"category_id"`
	CategoryName string          `json:"category,omitempty" db:"-"`
	Size         *string         `json:"size,omitempty" db:"size"`
	Active       bool            `json:"active" db:"active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// HasStock reports whether qty units can be taken from the product
func (p *Product) HasStock(qty int) bool {
	return qty > 0 && p.Stock >= qty
}

// BarcodeValue returns the barcode or an empty string
func (p *Product) BarcodeValue() string {
	if p.Barcode == nil {
		return ""
	}
	return *p.Barcode
}

// SizeValue returns the size or an empty string
func (p *Product) SizeValue() string {
	if p.Size == nil {
		return ""
	}
	return *p.Size
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// RoundMoney rounds an amount to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
