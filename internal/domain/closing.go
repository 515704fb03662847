package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CashClosing is the end-of-day reconciliation of one operator's register
type CashClosing struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	BusinessDate  time.Time       `json:"business_date" db:"business_date"`
	OperatorID    uuid.UUID       `json:"operator_id" db:"operator_id"`
	OpeningCash   decimal.Decimal `json:"opening_cash" db:"opening_cash"`
	ClosingCash   decimal.Decimal `json:"closing_cash" db:"closing_cash"`
	CashTotal     decimal.Decimal `json:"cash_total" db:"cash_total"`
	DebitTotal    decimal.Decimal `json:"debit_total" db:"debit_total"`
	CreditTotal   decimal.Decimal `json:"credit_total" db:"credit_total"`
	TransferTotal decimal.Decimal `json:"transfer_total" db:"transfer_total"`
	WalletTotal   decimal.Decimal `json:"wallet_total" db:"wallet_total"`
	SalesTotal    decimal.Decimal `json:"sales_total" db:"sales_total"`
	SalesCount    int             `json:"sales_count" db:"sales_count"`
	Variance      decimal.Decimal `json:"variance" db:"variance"`
	Notes         string          `json:"notes" db:"notes"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Submitted reports whether the operator has declared the drawer amounts
func (c *CashClosing) Submitted() bool {
	return c.SubmittedAt != nil
}

// SameDeclaration reports whether the declared amounts and notes match
func (c *CashClosing) SameDeclaration(opening, closing decimal.Decimal, notes string) bool {
	return c.OpeningCash.Equal(opening) && c.ClosingCash.Equal(closing) && c.Notes == notes
}

// Apply copies aggregated sales into the closing and recomputes the variance
func (c *CashClosing) Apply(summary SalesSummary) {
	c.SalesCount = summary.Count
	c.SalesTotal = summary.Total
	c.CashTotal = summary.For(PaymentCash)
	c.DebitTotal = summary.For(PaymentDebit)
	c.CreditTotal = summary.For(PaymentCredit)
	c.TransferTotal = summary.For(PaymentTransfer)
	c.WalletTotal = summary.For(PaymentWallet)
	c.Variance = ClosingVariance(c.OpeningCash, c.ClosingCash, c.CashTotal)
}

// ClosingVariance is closing - (opening + cash sales). Negative means the
// drawer is short.
func ClosingVariance(opening, closing, cashTotal decimal.Decimal) decimal.Decimal {
	return RoundMoney(closing.Sub(opening.Add(cashTotal)))
}

// SalesSummary aggregates sales of one operator over a day
type SalesSummary struct {
	Count    int
	Total    decimal.Decimal
	ByMethod map[PaymentMethod]decimal.Decimal
}

// Summarize folds sales into a summary
func Summarize(sales []*Sale) SalesSummary {
	summary := SalesSummary{
		Total:    decimal.Zero,
		ByMethod: make(map[PaymentMethod]decimal.Decimal, len(PaymentMethods)),
	}
	for _, s := range sales {
		summary.Count++
		summary.Total = summary.Total.Add(s.Total)
		summary.ByMethod[s.PaymentMethod] = summary.For(s.PaymentMethod).Add(s.Total)
	}
	return summary
}

// For returns the total for one payment method
func (s SalesSummary) For(m PaymentMethod) decimal.Decimal {
	if v, ok := s.ByMethod[m]; ok {
		return v
	}
	return decimal.Zero
}

// DayBounds returns [start, end) of a business date's calendar day in loc.
// Only the year, month and day of date are used.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// BusinessDate truncates t to its calendar date in loc, expressed as a UTC
// midnight so it round-trips through a DATE column.
func BusinessDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeDate keeps only the calendar date of t as a UTC midnight
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
