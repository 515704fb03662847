package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how a sale was paid
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentDebit    PaymentMethod = "debit"
	PaymentCredit   PaymentMethod = "credit"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentWallet   PaymentMethod = "wallet"
)

// PaymentMethods lists every accepted method in display order
var PaymentMethods = []PaymentMethod{
	PaymentCash,
	PaymentDebit,
	PaymentCredit,
	PaymentTransfer,
	PaymentWallet,
}

// ParsePaymentMethod normalizes and validates a payment method name
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", NewValidationError("payment_method", "unknown payment method %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the accepted methods
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Sale is the header of a recorded sale. It is immutable once created.
type Sale struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	OperatorID     uuid.UUID        `json:"operator_id" db:"operator_id"`
	PaymentMethod  PaymentMethod    `json:"payment_method" db:"payment_method"`
	Total          decimal.Decimal  `json:"total" db:"total"`
	AmountReceived *decimal.Decimal `json:"amount_received,omitempty" db:"amount_received"`
	Change         decimal.Decimal  `json:"change" db:"change"`
	CardSurcharge  decimal.Decimal  `json:"card_surcharge" db:"card_surcharge"`
	Notes          string           `json:"notes" db:"notes"`
	Lines          []SaleLine       `json:"lines"`
}

// IsManual reports whether the sale was entered without product lines
func (s *Sale) IsManual() bool {
	return len(s.Lines) == 0
}

// SaleLine is one product and quantity within a sale
type SaleLine struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	SaleID    uuid.UUID       `json:"sale_id" db:"sale_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal" db:"subtotal"`
}

// NewSaleLine snapshots the product price into a line
func NewSaleLine(saleID uuid.UUID, product *Product, quantity int) SaleLine {
	return SaleLine{
		ID:        uuid.New(),
		SaleID:    saleID,
		ProductID: product.ID,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Subtotal:  RoundMoney(product.Price.Mul(decimal.NewFromInt(int64(quantity)))),
	}
}

// CalculateChange returns the change owed for a cash payment. Paying less
// than the total is accepted and yields zero change.
func CalculateChange(total, received decimal.Decimal) decimal.Decimal {
	change := received.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(change)
}
