package transport

import (
	"net/http"
	"testing"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSaleRouter(t *testing.T, svc service.SaleService) http.Handler {
	handler := NewSaleHandler(svc, zap.NewNop())
	return newTestRouter(t, func(r chi.Router, auth, admin func(http.Handler) http.Handler) {
		handler.RegisterRoutes(r, auth, admin)
	})
}

func TestRecordSaleReturnsIDAndChange(t *testing.T) {
	saleID := uuid.New()
	productID := uuid.New()
	svc := &fakeSaleService{result: &service.SaleResult{
		Sale:   &domain.Sale{ID: saleID, Total: decimal.NewFromInt(100)},
		Change: decimal.NewFromInt(50),
	}}
	router := newSaleRouter(t, svc)

	w := doJSON(t, router, &cashier, "POST", "/api/sales", map[string]interface{}{
		"payment_method":  "cash",
		"amount_received": "150",
		"lines":           []map[string]interface{}{{"product_id": productID, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp RecordSaleResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, saleID.String(), resp.SaleID)
	require.NotNil(t, resp.Change)
	assert.True(t, resp.Change.Equal(decimal.NewFromInt(50)))

	assert.Equal(t, cashier.OperatorID, svc.lastActor.OperatorID)
	assert.False(t, svc.lastActor.Privileged)
	assert.Equal(t, "cash", svc.lastInput.PaymentMethod)
	require.Len(t, svc.lastInput.Lines, 1)
	assert.Equal(t, service.SaleLineInput{ProductID: productID, Quantity: 2}, svc.lastInput.Lines[0])
	require.NotNil(t, svc.lastInput.AmountReceived)
	assert.True(t, svc.lastInput.AmountReceived.Equal(decimal.NewFromInt(150)))
	assert.Nil(t, svc.lastInput.ManualTotal)
}

func TestRecordManualSaleForwardsTotal(t *testing.T) {
	svc := &fakeSaleService{result: &service.SaleResult{Sale: &domain.Sale{ID: uuid.New()}}}
	router := newSaleRouter(t, svc)

	w := doJSON(t, router, &cashier, "POST", "/api/sales", map[string]interface{}{
		"payment_method": "debit",
		"total":          "89.90",
		"is_manual":      true,
		"lines":          []map[string]interface{}{{"product_id": uuid.New(), "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Empty(t, svc.lastInput.Lines)
	require.NotNil(t, svc.lastInput.ManualTotal)
	assert.Equal(t, "89.9", svc.lastInput.ManualTotal.String())
}

func TestRecordSaleFailuresUseSuccessEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   map[string]interface{}
		status int
		substr string
	}{
		{
			name:   "insufficient stock",
			err:    &domain.StockError{ProductID: uuid.New(), Name: "Runner 42", Available: 1, Requested: 3},
			status: http.StatusConflict,
			substr: "insufficient stock for Runner 42",
		},
		{
			name:   "unknown product",
			err:    domain.ErrNotFound,
			status: http.StatusNotFound,
			substr: "not found",
		},
		{
			name:   "invalid payment",
			err:    domain.ErrInvalidPayment,
			status: http.StatusBadRequest,
			substr: "invalid payment",
		},
		{
			name:   "database failure is hidden",
			err:    assert.AnError,
			status: http.StatusInternalServerError,
			substr: "internal server error",
		},
		{
			name:   "negative quantity rejected before the service",
			body:   map[string]interface{}{"payment_method": "cash", "lines": []map[string]interface{}{{"product_id": uuid.New(), "quantity": -1}}},
			status: http.StatusBadRequest,
			substr: "Quantity",
		},
		{
			name:   "missing payment method",
			body:   map[string]interface{}{"lines": []map[string]interface{}{{"product_id": uuid.New(), "quantity": 1}}},
			status: http.StatusBadRequest,
			substr: "PaymentMethod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSaleService{err: tt.err}
			router := newSaleRouter(t, svc)

			body := tt.body
			if body == nil {
				body = map[string]interface{}{
					"payment_method": "cash",
					"lines":          []map[string]interface{}{{"product_id": uuid.New(), "quantity": 3}},
				}
			}

			w := doJSON(t, router, &cashier, "POST", "/api/sales", body)
			assert.Equal(t, tt.status, w.Code)

			var resp RecordSaleResponse
			decodeBody(t, w, &resp)
			assert.False(t, resp.Success)
			assert.Empty(t, resp.SaleID)
			assert.Contains(t, resp.Error, tt.substr)
		})
	}
}

func TestSaleRoutesRequireToken(t *testing.T) {
	router := newSaleRouter(t, &fakeSaleService{})

	w := doJSON(t, router, nil, "POST", "/api/sales", map[string]interface{}{"payment_method": "cash"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetSaleChecksOwnership(t *testing.T) {
	own := &domain.Sale{ID: uuid.New(), OperatorID: cashier.OperatorID, PaymentMethod: domain.PaymentCash}
	foreign := &domain.Sale{ID: uuid.New(), OperatorID: uuid.New(), PaymentMethod: domain.PaymentCash}
	svc := &fakeSaleService{sales: map[uuid.UUID]*domain.Sale{own.ID: own, foreign.ID: foreign}}
	router := newSaleRouter(t, svc)

	w := doJSON(t, router, &cashier, "GET", "/api/sales/"+own.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got domain.Sale
	decodeBody(t, w, &got)
	assert.Equal(t, own.ID, got.ID)

	w = doJSON(t, router, &cashier, "GET", "/api/sales/"+foreign.ID.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, &manager, "GET", "/api/sales/"+foreign.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, &cashier, "GET", "/api/sales/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	var errResp middleware.ErrorResponse
	decodeBody(t, w, &errResp)
	assert.Equal(t, "Not Found", errResp.Error.Code)

	w = doJSON(t, router, &cashier, "GET", "/api/sales/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, &cashier, "GET", "/api/sales", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Sales []domain.Sale `json:"sales"`
	}
	decodeBody(t, w, &list)
	require.Len(t, list.Sales, 1)
	assert.Equal(t, own.ID, list.Sales[0].ID)
}

func TestDeleteSaleRequiresSuperuser(t *testing.T) {
	svc := &fakeSaleService{}
	router := newSaleRouter(t, svc)
	id := uuid.New()

	w := doJSON(t, router, &cashier, "DELETE", "/api/sales/"+id.String(), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.deleted)

	w = doJSON(t, router, &manager, "DELETE", "/api/sales/"+id.String(), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{id}, svc.deleted)
}
