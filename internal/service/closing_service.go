package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ClosingDeclaration is what the operator counts in the drawer
type ClosingDeclaration struct {
	OpeningCash decimal.Decimal
	ClosingCash decimal.Decimal
	Notes       string
}

func (d ClosingDeclaration) normalize() (ClosingDeclaration, error) {
	if d.OpeningCash.IsNegative() {
		return d, domain.NewValidationError("opening_cash", "must not be negative")
	}
	if d.ClosingCash.IsNegative() {
		return d, domain.NewValidationError("closing_cash", "must not be negative")
	}
	return ClosingDeclaration{
		OpeningCash: domain.RoundMoney(d.OpeningCash),
		ClosingCash: domain.RoundMoney(d.ClosingCash),
		Notes:       strings.TrimSpace(d.Notes),
	}, nil
}

// ClosingView is a closing together with the sales it summarizes
type ClosingView struct {
	Closing *domain.CashClosing `json:"closing"`
	Sales   []*domain.Sale      `json:"sales"`
}

// ClosingService reconciles an operator's drawer against the day's sales
type ClosingService interface {
	Today() time.Time
	ComputeClosing(ctx context.Context, actor domain.Actor, businessDate time.Time, decl ClosingDeclaration) (*domain.CashClosing, error)
	ViewClosing(ctx context.Context, actor domain.Actor, businessDate time.Time) (*ClosingView, error)
	UpdateClosing(ctx context.Context, actor domain.Actor, id uuid.UUID, decl ClosingDeclaration) (*domain.CashClosing, error)
}

type closingService struct {
	txRunner repository.TxRunner
	location *time.Location
	logger   *zap.Logger
	clock    func() time.Time
}

// NewClosingService creates a new instance of ClosingService. Business
// dates are calendar days in loc.
func NewClosingService(txRunner repository.TxRunner, loc *time.Location, logger *zap.Logger) ClosingService {
	if loc == nil {
		loc = time.UTC
	}
	return &closingService{
		txRunner: txRunner,
		location: loc,
		logger:   logger,
		clock:    time.Now,
	}
}

// Today returns the current business date
func (s *closingService) Today() time.Time {
	return domain.BusinessDate(s.clock(), s.location)
}

func (s *closingService) daySales(ctx context.Context, stores repository.Stores, operatorID uuid.UUID, businessDate time.Time) ([]*domain.Sale, error) {
	start, end := domain.DayBounds(businessDate, s.location)
	return stores.Sales.ListByOperatorBetween(ctx, operatorID, start, end)
}

// runOnce retries fn a single time when a concurrent insert of the same
// (operator, date) closing won the race; the retry sees the committed row.
func (s *closingService) runOnce(ctx context.Context, fn func(stores repository.Stores) error) error {
	err := s.txRunner.Run(ctx, fn)
	if errors.Is(err, repository.ErrClosingExists) {
		s.logger.Debug("Closing created concurrently, retrying as update")
		err = s.txRunner.Run(ctx, fn)
	}
	return err
}

// ComputeClosing submits the drawer count for the actor's business date.
// Re-submitting identical amounts recomputes the totals; changing amounts
// of a submitted closing requires privilege.
func (s *closingService) ComputeClosing(ctx context.Context, actor domain.Actor, businessDate time.Time, decl ClosingDeclaration) (*domain.CashClosing, error) {
	decl, err := decl.normalize()
	if err != nil {
		return nil, err
	}
	businessDate = domain.NormalizeDate(businessDate)

	var result *domain.CashClosing
	err = s.runOnce(ctx, func(stores repository.Stores) error {
		now := s.clock().UTC()

		closing, err := stores.Closings.LockForDate(ctx, actor.OperatorID, businessDate)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		isNew := closing == nil
		if isNew {
			closing = &domain.CashClosing{
				ID:           uuid.New(),
				BusinessDate: businessDate,
				OperatorID:   actor.OperatorID,
				CreatedAt:    now,
			}
		} else if closing.Submitted() &&
			!closing.SameDeclaration(decl.OpeningCash, decl.ClosingCash, decl.Notes) &&
			!actor.Privileged {
			return domain.ErrPermissionDenied
		}

		sales, err := s.daySales(ctx, stores, actor.OperatorID, businessDate)
		if err != nil {
			return err
		}

		closing.OpeningCash = decl.OpeningCash
		closing.ClosingCash = decl.ClosingCash
		closing.Notes = decl.Notes
		closing.Apply(domain.Summarize(sales))
		if closing.SubmittedAt == nil {
			closing.SubmittedAt = &now
		}
		closing.UpdatedAt = now

		if isNew {
			err = stores.Closings.Create(ctx, closing)
		} else {
			err = stores.Closings.Update(ctx, closing)
		}
		if err != nil {
			return err
		}

		result = closing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cash closing submitted",
		zap.String("closing_id", result.ID.String()),
		zap.String("operator_id", result.OperatorID.String()),
		zap.String("business_date", result.BusinessDate.Format("2006-01-02")),
		zap.String("variance", result.Variance.StringFixed(2)),
	)
	return result, nil
}

// ViewClosing returns the actor's closing for the date with refreshed
// totals, creating an empty draft the first time.
func (s *closingService) ViewClosing(ctx context.Context, actor domain.Actor, businessDate time.Time) (*ClosingView, error) {
	businessDate = domain.NormalizeDate(businessDate)

	var view *ClosingView
	err := s.runOnce(ctx, func(stores repository.Stores) error {
		now := s.clock().UTC()

		closing, err := stores.Closings.LockForDate(ctx, actor.OperatorID, businessDate)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		sales, err := s.daySales(ctx, stores, actor.OperatorID, businessDate)
		if err != nil {
			return err
		}

		if closing == nil {
			closing = &domain.CashClosing{
				ID:           uuid.New(),
				BusinessDate: businessDate,
				OperatorID:   actor.OperatorID,
				OpeningCash:  decimal.Zero,
				ClosingCash:  decimal.Zero,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			closing.Apply(domain.Summarize(sales))
			if err := stores.Closings.Create(ctx, closing); err != nil {
				return err
			}
		} else {
			closing.Apply(domain.Summarize(sales))
			closing.UpdatedAt = now
			if err := stores.Closings.Update(ctx, closing); err != nil {
				return err
			}
		}

		view = &ClosingView{Closing: closing, Sales: sales}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// UpdateClosing lets a privileged actor correct any closing
func (s *closingService) UpdateClosing(ctx context.Context, actor domain.Actor, id uuid.UUID, decl ClosingDeclaration) (*domain.CashClosing, error) {
	if !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	decl, err := decl.normalize()
	if err != nil {
		return nil, err
	}

	var result *domain.CashClosing
	err = s.txRunner.Run(ctx, func(stores repository.Stores) error {
		closing, err := stores.Closings.LockByID(ctx, id)
		if err != nil {
			return err
		}

		sales, err := s.daySales(ctx, stores, closing.OperatorID, closing.BusinessDate)
		if err != nil {
			return err
		}

		now := s.clock().UTC()
		closing.OpeningCash = decl.OpeningCash
		closing.ClosingCash = decl.ClosingCash
		closing.Notes = decl.Notes
		closing.Apply(domain.Summarize(sales))
		if closing.SubmittedAt == nil {
			closing.SubmittedAt = &now
		}
		closing.UpdatedAt = now

		if err := stores.Closings.Update(ctx, closing); err != nil {
			return err
		}
		result = closing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Cash closing corrected",
		zap.String("closing_id", result.ID.String()),
		zap.String("actor", actor.OperatorID.String()),
	)
	return result, nil
}
