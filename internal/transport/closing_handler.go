package transport

import (
	"net/http"
	"time"

	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// ClosingRequest is the drawer count submitted at the end of the day.
// BusinessDate defaults to today in the shop time zone.
type ClosingRequest struct {
	OpeningCash  decimal.Decimal `json:"opening_cash" validate:"gte=0"`
	ClosingCash  decimal.Decimal `json:"closing_cash" validate:"gte=0"`
	Notes        string          `json:"notes" validate:"max=1000"`
	BusinessDate string          `json:"business_date" validate:"omitempty,datetime=2006-01-02"`
}

func (req ClosingRequest) declaration() service.ClosingDeclaration {
	return service.ClosingDeclaration{
		OpeningCash: req.OpeningCash,
		ClosingCash: req.ClosingCash,
		Notes:       req.Notes,
	}
}

// ClosingHandler handles cash closing requests
type ClosingHandler struct {
	closingService service.ClosingService
	logger         *zap.Logger
}

// NewClosingHandler creates a new ClosingHandler
func NewClosingHandler(closingService service.ClosingService, logger *zap.Logger) *ClosingHandler {
	return &ClosingHandler{
		closingService: closingService,
		logger:         logger,
	}
}

// RegisterRoutes registers the closing routes
func (h *ClosingHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/closings", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/today", h.GetToday)
		r.Post("/", h.SubmitClosing)
		r.With(adminMiddleware).Put("/{id}", h.UpdateClosing)
	})
}

// GetToday returns today's closing for the operator with the sales it covers
func (h *ClosingHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	view, err := h.closingService.ViewClosing(r.Context(), actor, h.closingService.Today())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to load closing")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, view)
}

// SubmitClosing computes and stores the operator's closing
func (h *ClosingHandler) SubmitClosing(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req ClosingRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	businessDate := h.closingService.Today()
	if req.BusinessDate != "" {
		parsed, err := time.Parse(dateLayout, req.BusinessDate)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid business_date")
			return
		}
		businessDate = parsed
	}

	closing, err := h.closingService.ComputeClosing(r.Context(), actor, businessDate, req.declaration())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to compute closing")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, closing)
}

// UpdateClosing lets a superuser correct a closing
func (h *ClosingHandler) UpdateClosing(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "closing")
	if !ok {
		return
	}

	var req ClosingRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	closing, err := h.closingService.UpdateClosing(r.Context(), actor, id, req.declaration())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to update closing")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, closing)
}
