package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "transport-test-secret"

var (
	cashier = domain.Actor{OperatorID: uuid.New(), Username: "cashier"}
	manager = domain.Actor{OperatorID: uuid.New(), Username: "manager", Privileged: true}
)

type fakeSaleService struct {
	lastActor domain.Actor
	lastInput service.RecordSaleInput
	result    *service.SaleResult
	err       error
	sales     map[uuid.UUID]*domain.Sale
	deleted   []uuid.UUID
}

func (f *fakeSaleService) RecordSale(ctx context.Context, actor domain.Actor, input service.RecordSaleInput) (*service.SaleResult, error) {
	f.lastActor = actor
	f.lastInput = input
	return f.result, f.err
}

func (f *fakeSaleService) GetSale(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Sale, error) {
	sale, ok := f.sales[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if sale.OperatorID != actor.OperatorID && !actor.Privileged {
		return nil, domain.ErrPermissionDenied
	}
	return sale, nil
}

func (f *fakeSaleService) ListSales(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Sale, error) {
	var out []*domain.Sale
	for _, sale := range f.sales {
		if sale.OperatorID == actor.OperatorID {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (f *fakeSaleService) DeleteSale(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.Privileged {
		return domain.ErrPermissionDenied
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeCatalogService struct {
	service.CatalogService
	products   []*domain.Product
	lastQuery  string
	lastInput  service.ProductInput
	lastFilter service.ProductListFilter
	deleteErr  error
}

func (f *fakeCatalogService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	f.lastQuery = query
	return f.products, nil
}

func (f *fakeCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeCatalogService) ListProducts(ctx context.Context, filter service.ProductListFilter) ([]*domain.Product, int, error) {
	f.lastFilter = filter
	return f.products, len(f.products), nil
}

func (f *fakeCatalogService) CreateProduct(ctx context.Context, actor domain.Actor, input service.ProductInput) (*domain.Product, error) {
	f.lastInput = input
	return &domain.Product{ID: uuid.New(), Name: input.Name, Price: input.Price, Stock: input.Stock, Active: input.Active}, nil
}

func (f *fakeCatalogService) DeleteProduct(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	return f.deleteErr
}

func (f *fakeCatalogService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return []*domain.Category{{ID: uuid.New(), Name: "Sneakers"}}, nil
}

type fakeImportService struct {
	received string
	result   *service.ImportResult
	err      error
}

func (f *fakeImportService) ImportProducts(ctx context.Context, actor domain.Actor, r io.Reader) (*service.ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.received = string(data)
	return f.result, f.err
}

type fakeClosingService struct {
	today    time.Time
	lastDate time.Time
	lastDecl service.ClosingDeclaration
	closing  *domain.CashClosing
	err      error
}

func (f *fakeClosingService) Today() time.Time { return f.today }

func (f *fakeClosingService) ComputeClosing(ctx context.Context, actor domain.Actor, businessDate time.Time, decl service.ClosingDeclaration) (*domain.CashClosing, error) {
	f.lastDate = businessDate
	f.lastDecl = decl
	return f.closing, f.err
}

func (f *fakeClosingService) ViewClosing(ctx context.Context, actor domain.Actor, businessDate time.Time) (*service.ClosingView, error) {
	f.lastDate = businessDate
	return &service.ClosingView{Closing: f.closing, Sales: []*domain.Sale{}}, f.err
}

func (f *fakeClosingService) UpdateClosing(ctx context.Context, actor domain.Actor, id uuid.UUID, decl service.ClosingDeclaration) (*domain.CashClosing, error) {
	f.lastDecl = decl
	return f.closing, f.err
}

// newTestRouter mounts the handlers behind the real auth middleware
func newTestRouter(t *testing.T, register func(r chi.Router, auth, admin func(http.Handler) http.Handler)) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	r := chi.NewRouter()
	register(r, middleware.AuthMiddleware(testSecret, logger), middleware.RequireAdmin(logger))
	return r
}

func tokenFor(t *testing.T, actor domain.Actor) string {
	t.Helper()
	role := domain.RoleOperator
	if actor.Privileged {
		role = domain.RoleAdmin
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": actor.OperatorID.String(),
		"role":    role,
		"sub":     actor.Username,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, h http.Handler, actor *domain.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, *actor))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
