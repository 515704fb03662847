package transport

import (
	"net/http"
	"strconv"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleLineRequest is one cart entry
type SaleLineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// RecordSaleRequest is the payload the register posts when a sale is confirmed.
// Total is only used for manual sales; priced sales are totalled from the catalog.
type RecordSaleRequest struct {
	PaymentMethod  string            `json:"payment_method" validate:"required"`
	Total          *decimal.Decimal  `json:"total" validate:"omitempty,gte=0"`
	AmountReceived *decimal.Decimal  `json:"amount_received" validate:"omitempty,gte=0"`
	CardSurcharge  *decimal.Decimal  `json:"card_surcharge" validate:"omitempty,gte=0"`
	IsManual       bool              `json:"is_manual"`
	Notes          string            `json:"notes" validate:"max=500"`
	Lines          []SaleLineRequest `json:"lines" validate:"dive"`
}

func (req RecordSaleRequest) toInput() service.RecordSaleInput {
	input := service.RecordSaleInput{
		PaymentMethod:  req.PaymentMethod,
		AmountReceived: req.AmountReceived,
		Notes:          req.Notes,
	}
	if req.CardSurcharge != nil {
		input.CardSurcharge = *req.CardSurcharge
	}
	if !req.IsManual {
		input.Lines = make([]service.SaleLineInput, 0, len(req.Lines))
		for _, line := range req.Lines {
			input.Lines = append(input.Lines, service.SaleLineInput{ProductID: line.ProductID, Quantity: line.Quantity})
		}
	}
	if len(input.Lines) == 0 {
		input.ManualTotal = req.Total
	}
	return input
}

// RecordSaleResponse is the register's view of a submitted sale
type RecordSaleResponse struct {
	Success bool             `json:"success"`
	SaleID  string           `json:"sale_id,omitempty"`
	Total   *decimal.Decimal `json:"total,omitempty"`
	Change  *decimal.Decimal `json:"change,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// SaleHandler handles HTTP requests for sales
type SaleHandler struct {
	saleService service.SaleService
	logger      *zap.Logger
}

// NewSaleHandler creates a new SaleHandler
func NewSaleHandler(saleService service.SaleService, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{
		saleService: saleService,
		logger:      logger,
	}
}

// RegisterRoutes registers the sale routes behind authentication
func (h *SaleHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/sales", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.RecordSale)
		r.Get("/", h.ListSales)
		r.Get("/{id}", h.GetSale)
		r.With(adminMiddleware).Delete("/{id}", h.DeleteSale)
	})
}

// RecordSale records a sale. Failures are reported as {success: false, error}
// so the register can show the message as-is.
func (h *SaleHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req RecordSaleRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Sale request rejected", zap.Error(err))
		msg := "invalid request body"
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			msg = validationErrors[0].Field + ": " + validationErrors[0].Message
		}
		middleware.RespondWithJSON(w, http.StatusBadRequest, RecordSaleResponse{Error: msg})
		return
	}

	result, err := h.saleService.RecordSale(r.Context(), actor, req.toInput())
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to record sale", zap.Error(err))
		}
		middleware.RespondWithJSON(w, status, RecordSaleResponse{Error: errorMessage(err, status)})
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, RecordSaleResponse{
		Success: true,
		SaleID:  result.Sale.ID.String(),
		Total:   &result.Sale.Total,
		Change:  &result.Change,
	})
}

// ListSales returns the operator's recent sales, newest first
func (h *SaleHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sales, err := h.saleService.ListSales(r.Context(), actor, limit)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to list sales")
		return
	}
	if sales == nil {
		sales = []*domain.Sale{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"sales": sales})
}

// GetSale returns one sale with its lines
func (h *SaleHandler) GetSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "sale")
	if !ok {
		return
	}

	sale, err := h.saleService.GetSale(r.Context(), actor, id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to get sale")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, sale)
}

// DeleteSale removes a sale
func (h *SaleHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "sale")
	if !ok {
		return
	}

	if err := h.saleService.DeleteSale(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to delete sale")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
