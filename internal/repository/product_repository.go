package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"kiosk-pos/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound  = fmt.Errorf("product %w", domain.ErrNotFound)
	ErrDuplicateBarcode = fmt.Errorf("barcode already assigned: %w", domain.ErrDuplicateKey)
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

const productColumns = `
	p.id, p.name, p.barcode, p.price, p.stock, p.category_id, COALESCE(c.name, ''),
	p.size, p.active, p.created_at, p.updated_at`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByCode(ctx context.Context, code string) (*domain.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	FindByNameWithoutBarcode(ctx context.Context, name string) (*domain.Product, error)
	SearchByName(ctx context.Context, query string, limit int) ([]*domain.Product, error)
	LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error
	List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
}

type productRepository struct {
	q Querier
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(q Querier) ProductRepository {
	return &productRepository{q: q}
}

func scanProduct(row scanner) (*domain.Product, error) {
	var (
		product    domain.Product
		barcode    sql.NullString
		size       sql.NullString
		categoryID uuid.NullUUID
	)
	err := row.Scan(
		&product.ID,
		&product.Name,
		&barcode,
		&product.Price,
		&product.Stock,
		&categoryID,
		&product.CategoryName,
		&size,
		&product.Active,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if barcode.Valid {
		product.Barcode = &barcode.String
	}
	if size.Valid {
		product.Size = &size.String
	}
	if categoryID.Valid {
		product.CategoryID = &categoryID.UUID
	}
	return &product, nil
}

func (r *productRepository) queryOne(ctx context.Context, what, where string, args ...interface{}) (*domain.Product, error) {
	query := "SELECT " + productColumns + productFrom + " WHERE " + where
	product, err := scanProduct(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by %s: %w", what, err)
	}
	return product, nil
}

func (r *productRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func translateProductWriteError(action string, err error) error {
	switch {
	case isUniqueViolation(err):
		return ErrDuplicateBarcode
	case isCheckViolation(err):
		return domain.NewValidationError("stock", "must not be negative")
	case isForeignKeyViolation(err):
		return fmt.Errorf("category %w", domain.ErrNotFound)
	}
	return fmt.Errorf("failed to %s product: %w", action, err)
}

// Create inserts a new product
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, barcode, price, stock, category_id, size, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Barcode,
		domain.RoundMoney(product.Price),
		product.Stock,
		product.CategoryID,
		product.Size,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return translateProductWriteError("create", err)
	}

	return nil
}

// Update overwrites the mutable fields of a product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, barcode = $3, price = $4, stock = $5, category_id = $6,
		    size = $7, active = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.q.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Barcode,
		domain.RoundMoney(product.Price),
		product.Stock,
		product.CategoryID,
		product.Size,
		product.Active,
		product.UpdatedAt,
	)

	if err != nil {
		return translateProductWriteError("update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// Delete removes a product. Products referenced by sale lines are kept.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return nil
}

// FindByID retrieves a product by ID regardless of its active flag
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.queryOne(ctx, "ID", "p.id = $1", id)
}

// FindByCode matches an active product by barcode, ignoring case
func (r *productRepository) FindByCode(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrProductNotFound
	}
	return r.queryOne(ctx, "code", "p.active AND LOWER(p.barcode) = LOWER($1)", code)
}

// FindByBarcode matches a product by its exact barcode, including inactive ones
func (r *productRepository) FindByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	return r.queryOne(ctx, "barcode", "p.barcode = $1", barcode)
}

// FindByNameWithoutBarcode matches a product that has no barcode by its exact name
func (r *productRepository) FindByNameWithoutBarcode(ctx context.Context, name string) (*domain.Product, error) {
	return r.queryOne(ctx, "name", "p.barcode IS NULL AND p.name = $1 ORDER BY p.created_at LIMIT 1", name)
}

// SearchByName returns active products whose name contains query, ordered by name
func (r *productRepository) SearchByName(ctx context.Context, query string, limit int) ([]*domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []*domain.Product{}, nil
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	sqlQuery := "SELECT " + productColumns + productFrom + `
		WHERE p.active AND p.name ILIKE $1
		ORDER BY p.name ASC
		LIMIT $2
	`
	return r.queryMany(ctx, sqlQuery, pattern, limit)
}

// LockForUpdate takes row locks on the given products in ascending id order
// and returns the locked rows keyed by id. Missing ids are simply absent.
func (r *productRepository) LockForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	locked := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return locked, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	sort.Strings(keys)

	query := "SELECT " + productColumns + productFrom + `
		WHERE p.id = ANY($1::uuid[])
		ORDER BY p.id
		FOR UPDATE OF p
	`
	products, err := r.queryMany(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	for _, product := range products {
		locked[product.ID] = product
	}
	return locked, nil
}

// DecrementStock subtracts quantity from the product's stock. The update only
// applies while enough stock remains.
func (r *productRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}

	result, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, updated_at = $3
		WHERE id = $2 AND stock >= $1
	`, quantity, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 1 {
		return nil
	}

	var (
		name  string
		stock int
	)
	err = r.q.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, id).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to read stock: %w", err)
	}

	return &domain.StockError{ProductID: id, Name: name, Available: stock, Requested: quantity}
}

// List retrieves products with optional category filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	validSortFields := map[string]string{
		"name":       "p.name",
		"price":      "p.price",
		"stock":      "p.stock",
		"created_at": "p.created_at",
	}

	column, ok := validSortFields[sortBy]
	if !ok {
		column = "p.name"
	}

	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderAsc
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if categoryID != nil {
		whereClause = fmt.Sprintf("WHERE p.category_id = $%d", argIndex)
		args = append(args, *categoryID)
		argIndex++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM products p " + whereClause
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf("SELECT %s %s %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		productColumns, productFrom, whereClause, column, sortOrder, argIndex, argIndex+1)
	args = append(args, pageSize, offset)

	products, err := r.queryMany(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}
