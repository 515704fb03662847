package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kiosk-pos/internal/cache"
	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const manualSaleNote = "Manual sale"

// SaleLineInput is one requested product and quantity
type SaleLineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// RecordSaleInput describes a sale as submitted by the register. ManualTotal
// is only read when Lines is empty.
type RecordSaleInput struct {
	PaymentMethod  string
	Lines          []SaleLineInput
	AmountReceived *decimal.Decimal
	CardSurcharge  decimal.Decimal
	ManualTotal    *decimal.Decimal
	Notes          string
}

// SaleResult is the outcome of a recorded sale
type SaleResult struct {
	Sale   *domain.Sale
	Change decimal.Decimal
}

// SaleService records and inspects sales
type SaleService interface {
	RecordSale(ctx context.Context, actor domain.Actor, input RecordSaleInput) (*SaleResult, error)
	GetSale(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Sale, error)
	ListSales(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Sale, error)
	DeleteSale(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type saleService struct {
	txRunner     repository.TxRunner
	stores       repository.Stores
	searchCache  cache.ProductSearchCache
	historyLimit int
	logger       *zap.Logger
	clock        func() time.Time
}

// NewSaleService creates a new instance of SaleService
func NewSaleService(
	txRunner repository.TxRunner,
	stores repository.Stores,
	searchCache cache.ProductSearchCache,
	historyLimit int,
	logger *zap.Logger,
) SaleService {
	if historyLimit <= 0 {
		historyLimit = 100
	}
	return &saleService{
		txRunner:     txRunner,
		stores:       stores,
		searchCache:  searchCache,
		historyLimit: historyLimit,
		logger:       logger,
		clock:        time.Now,
	}
}

// mergeLines validates quantities and folds repeated products into one line,
// keeping first-seen order.
func mergeLines(lines []SaleLineInput) ([]SaleLineInput, error) {
	merged := make([]SaleLineInput, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// RecordSale validates the request, then in one transaction locks the
// products, writes the header and lines and decrements stock. Any failure
// leaves no trace.
func (s *saleService) RecordSale(ctx context.Context, actor domain.Actor, input RecordSaleInput) (*SaleResult, error) {
	method, err := domain.ParsePaymentMethod(input.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if input.CardSurcharge.IsNegative() {
		return nil, domain.NewValidationError("card_surcharge", "must not be negative")
	}

	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	manual := len(lines) == 0
	if manual && (input.ManualTotal == nil || !input.ManualTotal.IsPositive()) {
		return nil, domain.NewValidationError("total", "must be greater than zero for a manual sale")
	}
	if method == domain.PaymentCash && input.AmountReceived == nil {
		return nil, fmt.Errorf("%w: amount received is required for cash", domain.ErrInvalidPayment)
	}
	if input.AmountReceived != nil && input.AmountReceived.IsNegative() {
		return nil, fmt.Errorf("%w: amount received must not be negative", domain.ErrInvalidPayment)
	}

	notes := strings.TrimSpace(input.Notes)
	if manual && notes == "" {
		notes = manualSaleNote
	}

	sale := &domain.Sale{
		ID:            uuid.New(),
		CreatedAt:     s.clock().UTC(),
		OperatorID:    actor.OperatorID,
		PaymentMethod: method,
		CardSurcharge: domain.RoundMoney(input.CardSurcharge),
		Notes:         notes,
		Lines:         []domain.SaleLine{},
	}

	err = s.txRunner.Run(ctx, func(stores repository.Stores) error {
		subtotal := decimal.Zero

		if manual {
			subtotal = domain.RoundMoney(*input.ManualTotal)
		} else {
			ids := make([]uuid.UUID, 0, len(lines))
			for _, line := range lines {
				ids = append(ids, line.ProductID)
			}

			locked, err := stores.Products.LockForUpdate(ctx, ids)
			if err != nil {
				return err
			}

			for _, line := range lines {
				product, ok := locked[line.ProductID]
				if !ok || !product.Active {
					return fmt.Errorf("%w: %s", repository.ErrProductNotFound, line.ProductID)
				}
				if !product.HasStock(line.Quantity) {
					return &domain.StockError{
						ProductID: product.ID,
						Name:      product.Name,
						Available: product.Stock,
						Requested: line.Quantity,
					}
				}
				saleLine := domain.NewSaleLine(sale.ID, product, line.Quantity)
				sale.Lines = append(sale.Lines, saleLine)
				subtotal = subtotal.Add(saleLine.Subtotal)
			}
		}

		sale.Total = domain.RoundMoney(subtotal.Add(sale.CardSurcharge))
		if method == domain.PaymentCash {
			received := domain.RoundMoney(*input.AmountReceived)
			sale.AmountReceived = &received
			sale.Change = domain.CalculateChange(sale.Total, received)
		} else {
			sale.AmountReceived = nil
			sale.Change = decimal.Zero
		}

		if err := stores.Sales.Create(ctx, sale); err != nil {
			return err
		}
		if err := stores.Sales.CreateLines(ctx, sale.Lines); err != nil {
			return err
		}
		for _, line := range sale.Lines {
			if err := stores.Products.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Info("Sale rejected",
			zap.String("operator_id", actor.OperatorID.String()),
			zap.String("payment_method", string(method)),
			zap.Error(err),
		)
		return nil, err
	}

	if !manual {
		if err := s.searchCache.Invalidate(ctx); err != nil {
			s.logger.Warn("Search cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("Sale recorded",
		zap.String("sale_id", sale.ID.String()),
		zap.String("operator_id", actor.OperatorID.String()),
		zap.String("payment_method", string(method)),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.Int("lines", len(sale.Lines)),
	)

	return &SaleResult{Sale: sale, Change: sale.Change}, nil
}

// GetSale returns a sale to its operator or to a privileged actor
func (s *saleService) GetSale(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Sale, error) {
	sale, err := s.stores.Sales.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.OperatorID != actor.OperatorID && !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	return sale, nil
}

// ListSales returns the actor's most recent sales
func (s *saleService) ListSales(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Sale, error) {
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}
	return s.stores.Sales.ListRecentByOperator(ctx, actor.OperatorID, limit)
}

// DeleteSale removes a sale and its lines. Stock is not restored.
func (s *saleService) DeleteSale(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Privileged {
		return domain.ErrPermissionDenied
	}

	if err := s.stores.Sales.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Sale deleted",
		zap.String("sale_id", id.String()),
		zap.String("actor", actor.OperatorID.String()),
	)
	return nil
}
