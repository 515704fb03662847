package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/repository"

	"github.com/google/uuid"
)

// memState is an in-memory copy of the shop tables
type memState struct {
	products   map[uuid.UUID]domain.Product
	categories map[uuid.UUID]domain.Category
	sales      map[uuid.UUID]domain.Sale
	closings   map[uuid.UUID]domain.CashClosing
}

func newMemState() *memState {
	return &memState{
		products:   map[uuid.UUID]domain.Product{},
		categories: map[uuid.UUID]domain.Category{},
		sales:      map[uuid.UUID]domain.Sale{},
		closings:   map[uuid.UUID]domain.CashClosing{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.sales {
		v.Lines = append([]domain.SaleLine(nil), v.Lines...)
		c.sales[k] = v
	}
	for k, v := range s.closings {
		c.closings[k] = v
	}
	return c
}

// memDB serializes transactions with one mutex, which is a coarse stand-in
// for row locks: a second sale blocks until the first commits.
type memDB struct {
	mu    sync.Mutex
	state *memState

	// failAfterWrite, when set, makes the next transaction fail right before commit
	failAfterWrite error
}

func newMemDB() *memDB {
	return &memDB{state: newMemState()}
}

func (db *memDB) Stores() repository.Stores {
	return memStores(db.state)
}

func (db *memDB) Run(ctx context.Context, fn func(stores repository.Stores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.state.clone()
	if err := fn(memStores(work)); err != nil {
		return err
	}
	if db.failAfterWrite != nil {
		err := db.failAfterWrite
		db.failAfterWrite = nil
		return err
	}
	*db.state = *work
	return nil
}

func (db *memDB) product(id uuid.UUID) domain.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.products[id]
}

func (db *memDB) saleCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.state.sales)
}

func (db *memDB) addProduct(name, price string, stock int) *domain.Product {
	now := time.Now().UTC()
	p := domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Barcode:   domain.OptionalString("BC" + uuid.NewString()[:8]),
		Price:     mustDecimal(price),
		Stock:     stock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	db.mu.Lock()
	db.state.products[p.ID] = p
	db.mu.Unlock()
	return &p
}

func memStores(st *memState) repository.Stores {
	return repository.Stores{
		Products:   &memProducts{st: st},
		Categories: &memCategories{st: st},
		Sales:      &memSales{st: st},
		Closings:   &memClosings{st: st},
	}
}

type memProducts struct{ st *memState }

func (m *memProducts) withCategory(p domain.Product) *domain.Product {
	if p.CategoryID != nil {
		p.CategoryName = m.st.categories[*p.CategoryID].Name
	}
	return &p
}

func (m *memProducts) barcodeTaken(p *domain.Product) bool {
	if p.Barcode == nil {
		return false
	}
	for id, other := range m.st.products {
		if id != p.ID && other.Barcode != nil && *other.Barcode == *p.Barcode {
			return true
		}
	}
	return false
}

func (m *memProducts) Create(_ context.Context, p *domain.Product) error {
	if m.barcodeTaken(p) {
		return repository.ErrDuplicateBarcode
	}
	if p.Stock < 0 {
		return domain.NewValidationError("stock", "must not be negative")
	}
	m.st.products[p.ID] = *p
	return nil
}

func (m *memProducts) Update(_ context.Context, p *domain.Product) error {
	if _, ok := m.st.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	if m.barcodeTaken(p) {
		return repository.ErrDuplicateBarcode
	}
	if p.Stock < 0 {
		return domain.NewValidationError("stock", "must not be negative")
	}
	m.st.products[p.ID] = *p
	return nil
}

func (m *memProducts) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.st.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, sale := range m.st.sales {
		for _, line := range sale.Lines {
			if line.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	delete(m.st.products, id)
	return nil
}

func (m *memProducts) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.st.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return m.withCategory(p), nil
}

func (m *memProducts) find(match func(domain.Product) bool) (*domain.Product, error) {
	for _, p := range m.st.products {
		if match(p) {
			return m.withCategory(p), nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *memProducts) FindByCode(_ context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	return m.find(func(p domain.Product) bool {
		return code != "" && p.Active && strings.EqualFold(p.BarcodeValue(), code)
	})
}

func (m *memProducts) FindByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	return m.find(func(p domain.Product) bool { return p.BarcodeValue() == barcode && barcode != "" })
}

func (m *memProducts) FindByNameWithoutBarcode(_ context.Context, name string) (*domain.Product, error) {
	return m.find(func(p domain.Product) bool { return p.Barcode == nil && p.Name == name })
}

func (m *memProducts) SearchByName(_ context.Context, query string, limit int) ([]*domain.Product, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	found := []*domain.Product{}
	if query == "" {
		return found, nil
	}
	for _, p := range m.st.products {
		if p.Active && strings.Contains(strings.ToLower(p.Name), query) {
			found = append(found, m.withCategory(p))
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *memProducts) LockForUpdate(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	locked := make(map[uuid.UUID]*domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := m.st.products[id]; ok {
			locked[id] = m.withCategory(p)
		}
	}
	return locked, nil
}

func (m *memProducts) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	p, ok := m.st.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	if p.Stock < quantity {
		return &domain.StockError{ProductID: id, Name: p.Name, Available: p.Stock, Requested: quantity}
	}
	p.Stock -= quantity
	m.st.products[id] = p
	return nil
}

func (m *memProducts) List(_ context.Context, categoryID *uuid.UUID, page, pageSize int, _ string, _ repository.SortOrder) ([]*domain.Product, int, error) {
	all := []*domain.Product{}
	for _, p := range m.st.products {
		if categoryID != nil && (p.CategoryID == nil || *p.CategoryID != *categoryID) {
			continue
		}
		all = append(all, m.withCategory(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}
	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type memCategories struct{ st *memState }

func (m *memCategories) Create(_ context.Context, c *domain.Category) error {
	for _, other := range m.st.categories {
		if other.Name == c.Name {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.st.categories[c.ID] = *c
	return nil
}

func (m *memCategories) GetOrCreate(ctx context.Context, name string) (*domain.Category, error) {
	if c, err := m.FindByName(ctx, name); err == nil {
		return c, nil
	}
	c := &domain.Category{ID: uuid.New(), Name: name, CreatedAt: time.Now().UTC()}
	m.st.categories[c.ID] = *c
	return c, nil
}

func (m *memCategories) List(_ context.Context) ([]*domain.Category, error) {
	all := []*domain.Category{}
	for _, c := range m.st.categories {
		c := c
		all = append(all, &c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

func (m *memCategories) FindByID(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	c, ok := m.st.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

func (m *memCategories) FindByName(_ context.Context, name string) (*domain.Category, error) {
	for _, c := range m.st.categories {
		if c.Name == name {
			c := c
			return &c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

func (m *memCategories) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.st.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.st.categories, id)
	for pid, p := range m.st.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			m.st.products[pid] = p
		}
	}
	return nil
}

type memSales struct{ st *memState }

func (m *memSales) Create(_ context.Context, sale *domain.Sale) error {
	header := *sale
	header.Lines = []domain.SaleLine{}
	m.st.sales[sale.ID] = header
	return nil
}

func (m *memSales) CreateLines(_ context.Context, lines []domain.SaleLine) error {
	for _, line := range lines {
		sale, ok := m.st.sales[line.SaleID]
		if !ok {
			return repository.ErrSaleNotFound
		}
		if _, ok := m.st.products[line.ProductID]; !ok {
			return repository.ErrProductNotFound
		}
		sale.Lines = append(sale.Lines, line)
		m.st.sales[line.SaleID] = sale
	}
	return nil
}

func (m *memSales) FindByID(_ context.Context, id uuid.UUID) (*domain.Sale, error) {
	sale, ok := m.st.sales[id]
	if !ok {
		return nil, repository.ErrSaleNotFound
	}
	sale.Lines = append([]domain.SaleLine{}, sale.Lines...)
	return &sale, nil
}

func (m *memSales) filter(match func(domain.Sale) bool) []*domain.Sale {
	found := []*domain.Sale{}
	for _, sale := range m.st.sales {
		if match(sale) {
			sale := sale
			found = append(found, &sale)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].CreatedAt.Before(found[j].CreatedAt) })
	return found
}

func (m *memSales) ListByOperatorBetween(_ context.Context, operatorID uuid.UUID, from, to time.Time) ([]*domain.Sale, error) {
	return m.filter(func(s domain.Sale) bool {
		return s.OperatorID == operatorID && !s.CreatedAt.Before(from) && s.CreatedAt.Before(to)
	}), nil
}

func (m *memSales) ListRecentByOperator(_ context.Context, operatorID uuid.UUID, limit int) ([]*domain.Sale, error) {
	found := m.filter(func(s domain.Sale) bool { return s.OperatorID == operatorID })
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	if len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (m *memSales) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.st.sales[id]; !ok {
		return repository.ErrSaleNotFound
	}
	delete(m.st.sales, id)
	return nil
}

type memClosings struct{ st *memState }

func (m *memClosings) Create(_ context.Context, c *domain.CashClosing) error {
	for _, other := range m.st.closings {
		if other.OperatorID == c.OperatorID && other.BusinessDate.Equal(c.BusinessDate) {
			return repository.ErrClosingExists
		}
	}
	m.st.closings[c.ID] = *c
	return nil
}

func (m *memClosings) Update(_ context.Context, c *domain.CashClosing) error {
	if _, ok := m.st.closings[c.ID]; !ok {
		return repository.ErrClosingNotFound
	}
	m.st.closings[c.ID] = *c
	return nil
}

func (m *memClosings) FindByID(_ context.Context, id uuid.UUID) (*domain.CashClosing, error) {
	c, ok := m.st.closings[id]
	if !ok {
		return nil, repository.ErrClosingNotFound
	}
	return &c, nil
}

func (m *memClosings) LockByID(ctx context.Context, id uuid.UUID) (*domain.CashClosing, error) {
	return m.FindByID(ctx, id)
}

func (m *memClosings) LockForDate(_ context.Context, operatorID uuid.UUID, businessDate time.Time) (*domain.CashClosing, error) {
	for _, c := range m.st.closings {
		if c.OperatorID == operatorID && c.BusinessDate.Equal(businessDate) {
			return &c, nil
		}
	}
	return nil, repository.ErrClosingNotFound
}
