package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"kiosk-pos/internal/cache"
	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ImportResult summarizes a bulk import
type ImportResult struct {
	Created    int      `json:"created"`
	Updated    int      `json:"updated"`
	Errors     []string `json:"errors"`
	ErrorCount int      `json:"error_count"`
}

func (r *ImportResult) addError(maxReported, row int, format string, args ...interface{}) {
	r.ErrorCount++
	if len(r.Errors) < maxReported {
		r.Errors = append(r.Errors, fmt.Sprintf("row %d: %s", row, fmt.Sprintf(format, args...)))
	}
}

// ImportService loads products from CSV files
type ImportService interface {
	ImportProducts(ctx context.Context, actor domain.Actor, r io.Reader) (*ImportResult, error)
}

type importService struct {
	txRunner          repository.TxRunner
	searchCache       cache.ProductSearchCache
	maxReportedErrors int
	logger            *zap.Logger
}

// NewImportService creates a new instance of ImportService
func NewImportService(
	txRunner repository.TxRunner,
	searchCache cache.ProductSearchCache,
	maxReportedErrors int,
	logger *zap.Logger,
) ImportService {
	if maxReportedErrors <= 0 {
		maxReportedErrors = 10
	}
	return &importService{
		txRunner:          txRunner,
		searchCache:       searchCache,
		maxReportedErrors: maxReportedErrors,
		logger:            logger,
	}
}

type csvColumns map[string]int

func (c csvColumns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func readHeader(reader *csv.Reader) (csvColumns, error) {
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", domain.ErrParse)
		}
		return nil, fmt.Errorf("%w: failed to read header: %v", domain.ErrParse, err)
	}

	columns := make(csvColumns, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"name", "price"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrParse, required)
		}
	}
	return columns, nil
}

// parseRow turns a record into an upsert or returns the row's problem
func parseRow(columns csvColumns, record []string) (ProductUpsert, string) {
	row := ProductUpsert{
		Name:     columns.get(record, "name"),
		Barcode:  columns.get(record, "barcode"),
		Category: columns.get(record, "category"),
		Size:     columns.get(record, "size"),
	}
	if row.Name == "" {
		return row, "name is required"
	}

	rawPrice := columns.get(record, "price")
	if rawPrice == "" {
		return row, "price is required"
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return row, fmt.Sprintf("invalid price %q", rawPrice)
	}
	if price.IsNegative() {
		return row, "price must not be negative"
	}
	row.Price = price

	if rawStock := columns.get(record, "stock"); rawStock != "" {
		stock, err := strconv.Atoi(rawStock)
		if err != nil {
			return row, fmt.Sprintf("invalid stock %q", rawStock)
		}
		if stock < 0 {
			return row, "stock must not be negative"
		}
		row.Stock = stock
	}

	return row, ""
}

// ImportProducts upserts every valid row, each in its own transaction. Bad
// rows are reported and skipped; a broken header aborts the import.
func (s *importService) ImportProducts(ctx context.Context, actor domain.Actor, r io.Reader) (*ImportResult, error) {
	if !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}

	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	columns, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: []string{}}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.addError(s.maxReportedErrors, parseErr.StartLine, "malformed line: %v", parseErr.Err)
				continue
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		// the header is line 1 so data rows start at 2
		rowNum, _ := reader.FieldPos(0)

		row, problem := parseRow(columns, record)
		if problem != "" {
			result.addError(s.maxReportedErrors, rowNum, "%s", problem)
			continue
		}

		var created bool
		err = s.txRunner.Run(ctx, func(stores repository.Stores) error {
			var err error
			created, err = UpsertProduct(ctx, stores, row, time.Now().UTC())
			return err
		})
		if err != nil {
			result.addError(s.maxReportedErrors, rowNum, "%v", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if result.Created+result.Updated > 0 {
		if err := s.searchCache.Invalidate(ctx); err != nil {
			s.logger.Warn("Search cache invalidation failed", zap.Error(err))
		}
	}

	s.logger.Info("Product import finished",
		zap.String("actor", actor.OperatorID.String()),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("errors", result.ErrorCount),
	)
	return result, nil
}
