package service

import (
	"context"
	"errors"
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

// ProductInput carries the editable fields of a product
type ProductInput struct {
	Name       string
	Barcode    string
	Price      decimal.Decimal
	Stock      int
	CategoryID *uuid.UUID
	Size       string
	Active     bool
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if in.Price.IsNegative() {
		return domain.NewValidationError("price", "must not be negative")
	}
	if in.Stock < 0 {
		return domain.NewValidationError("stock", "must not be negative")
	}
	return nil
}

// ProductListFilter selects a page of the catalog
type ProductListFilter struct {
	CategoryID *uuid.UUID
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  repository.SortOrder
}

// CatalogService exposes product lookup to operators and catalog
// administration to privileged operators
type CatalogService interface {
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]*domain.Product, int, error)
	CreateProduct(ctx context.Context, actor domain.Actor, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Actor, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, actor domain.Actor, name, description string) (*domain.Category, error)
	DeleteCategory(ctx context.Context, actor domain.Actor, id uuid.UUID) error
}

type catalogService struct {
	stores      repository.Stores
	searchCache cache.ProductSearchCache
	searchLimit int
	logger      *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	stores repository.Stores,
	searchCache cache.ProductSearchCache,
	searchLimit int,
	logger *zap.Logger,
) CatalogService {
	if searchLimit <= 0 {
		searchLimit = 10
	}
	return &catalogService{
		stores:      stores,
		searchCache: searchCache,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

// Search returns the product whose barcode equals query followed by
// products whose name contains it, without duplicates.
func (s *catalogService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Product{}, nil
	}

	if cached, hit, err := s.searchCache.Get(ctx, query); err != nil {
		s.logger.Warn("Search cache read failed", zap.Error(err))
	} else if hit {
		return cached, nil
	}

	results := make([]*domain.Product, 0, s.searchLimit)
	seen := make(map[uuid.UUID]struct{}, s.searchLimit)

	byCode, err := s.stores.Products.FindByCode(ctx, query)
	switch {
	case err == nil:
		results = append(results, byCode)
		seen[byCode.ID] = struct{}{}
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to search by code: %w", err)
	}

	byName, err := s.stores.Products.SearchByName(ctx, query, s.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search by name: %w", err)
	}
	for _, p := range byName {
		if len(results) >= s.searchLimit {
			break
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		results = append(results, p)
	}

	if err := s.searchCache.Set(ctx, query, results); err != nil {
		s.logger.Warn("Search cache write failed", zap.Error(err))
	}

	return results, nil
}

func (s *catalogService) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	return s.stores.Products.FindByCode(ctx, code)
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.stores.Products.FindByID(ctx, id)
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) ([]*domain.Product, int, error) {
	return s.stores.Products.List(ctx, filter.CategoryID, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

// CreateProduct adds a product to the catalog
func (s *catalogService) CreateProduct(ctx context.Context, actor domain.Actor, input ProductInput) (*domain.Product, error) {
	if !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.New(),
		CreatedAt: now,
	}
	applyProductInput(product, input, now)

	if err := s.stores.Products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateSearch(ctx)
	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("actor", actor.OperatorID.String()),
	)
	return product, nil
}

// UpdateProduct overwrites a product, stock included
func (s *catalogService) UpdateProduct(ctx context.Context, actor domain.Actor, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product, err := s.stores.Products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyProductInput(product, input, time.Now().UTC())
	if err := s.stores.Products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateSearch(ctx)
	return product, nil
}

// DeleteProduct removes a product that no sale references
func (s *catalogService) DeleteProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Privileged {
		return domain.ErrPermissionDenied
	}
	if err := s.stores.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	return nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.stores.Categories.List(ctx)
}

func (s *catalogService) CreateCategory(ctx context.Context, actor domain.Actor, name, description string) (*domain.Category, error) {
	if !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}

	category := &domain.Category{
		ID:          uuid.New(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.stores.Categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Privileged {
		return domain.ErrPermissionDenied
	}
	if err := s.stores.Categories.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateSearch(ctx)
	return nil
}

func (s *catalogService) invalidateSearch(ctx context.Context) {
	if err := s.searchCache.Invalidate(ctx); err != nil {
		s.logger.Warn("Search cache invalidation failed", zap.Error(err))
	}
}

func applyProductInput(product *domain.Product, input ProductInput, now time.Time) {
	product.Name = strings.TrimSpace(input.Name)
	product.Barcode = domain.OptionalString(input.Barcode)
	product.Price = domain.RoundMoney(input.Price)
	product.Stock = input.Stock
	product.CategoryID = input.CategoryID
	product.Size = domain.OptionalString(input.Size)
	product.Active = input.Active
	product.UpdatedAt = now
}

// ProductUpsert is one product as described by an import row
type ProductUpsert struct {
	Name     string
	Barcode  string
	Price    decimal.Decimal
	Stock    int
	Category string
	Size     string
}

// UpsertProduct matches the product by barcode, or by name among products
// without a barcode, and creates or refreshes it. It reports whether a new
// product was created.
func UpsertProduct(ctx context.Context, stores repository.Stores, in ProductUpsert, now time.Time) (bool, error) {
	var categoryID *uuid.UUID
	if name := strings.TrimSpace(in.Category); name != "" {
		category, err := stores.Categories.GetOrCreate(ctx, name)
		if err != nil {
			return false, err
		}
		categoryID = &category.ID
	}

	var (
		existing *domain.Product
		err      error
	)
	if barcode := strings.TrimSpace(in.Barcode); barcode != "" {
		existing, err = stores.Products.FindByBarcode(ctx, barcode)
	} else {
		existing, err = stores.Products.FindByNameWithoutBarcode(ctx, strings.TrimSpace(in.Name))
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	if existing == nil {
		product := &domain.Product{
			ID:         uuid.New(),
			Name:       strings.TrimSpace(in.Name),
			Barcode:    domain.OptionalString(in.Barcode),
			Price:      domain.RoundMoney(in.Price),
			Stock:      in.Stock,
			CategoryID: categoryID,
			Size:       domain.OptionalString(in.Size),
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := stores.Products.Create(ctx, product); err != nil {
			return false, err
		}
		return true, nil
	}

	existing.Name = strings.TrimSpace(in.Name)
	existing.Price = domain.RoundMoney(in.Price)
	existing.Stock = in.Stock
	if categoryID != nil {
		existing.CategoryID = categoryID
	}
	if size := domain.OptionalString(in.Size); size != nil {
		existing.Size = size
	}
	existing.Active = true
	existing.UpdatedAt = now

	if err := stores.Products.Update(ctx, existing); err != nil {
		return false, err
	}
	return false, nil
}
