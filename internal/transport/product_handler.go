package transport

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"kiosk-pos/internal/domain"
	"kiosk-pos/internal/middleware"
	"kiosk-pos/internal/repository"
	"kiosk-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest represents the create/update product payload
type ProductRequest struct {
	Name       string          `json:"name" validate:"required,max=200"`
	Barcode    string          `json:"barcode" validate:"max=50"`
	Price      decimal.Decimal `json:"price" validate:"gte=0"`
	Stock      int             `json:"stock" validate:"gte=0"`
	CategoryID *uuid.UUID      `json:"category_id"`
	Size       string          `json:"size" validate:"max=20"`
	Active     *bool           `json:"active"`
}

func (req ProductRequest) toInput() service.ProductInput {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return service.ProductInput{
		Name:       req.Name,
		Barcode:    req.Barcode,
		Price:      req.Price,
		Stock:      req.Stock,
		CategoryID: req.CategoryID,
		Size:       req.Size,
		Active:     active,
	}
}

// ProductSummary is the search result shape the register renders
type ProductSummary struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	Barcode  string          `json:"barcode"`
	Size     string          `json:"size"`
	Category string          `json:"category"`
}

func newProductSummary(p *domain.Product) ProductSummary {
	return ProductSummary{
		ID:       p.ID.String(),
		Name:     p.Name,
		Price:    p.Price,
		Stock:    p.Stock,
		Barcode:  p.BarcodeValue(),
		Size:     p.SizeValue(),
		Category: p.CategoryName,
	}
}

// ProductListResponse represents a paginated product list
type ProductListResponse struct {
	Products   []*domain.Product `json:"products"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int               `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}

// CategoryRequest represents the create category payload
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

// ProductHandler handles catalog and import requests
type ProductHandler struct {
	catalogService service.CatalogService
	importService  service.ImportService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(
	catalogService service.CatalogService,
	importService service.ImportService,
	maxUploadBytes int64,
	logger *zap.Logger,
) *ProductHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &ProductHandler{
		catalogService: catalogService,
		importService:  importService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers product and category routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListProducts)
		r.Get("/search", h.SearchProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.CreateProduct)
			r.Post("/import", h.ImportProducts)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListCategories)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.CreateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})
	})
}

// SearchProducts handles GET /api/products/search?q=
func (h *ProductHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalogService.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product search failed")
		return
	}

	summaries := make([]ProductSummary, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, newProductSummary(p))
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"products": summaries})
}

// ListProducts handles GET /api/products with pagination and sorting
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(query.Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := service.ProductListFilter{
		Page:      page,
		PageSize:  pageSize,
		SortBy:    query.Get("sort_by"),
		SortOrder: repository.SortOrder(strings.ToUpper(query.Get("sort_order"))),
	}
	if raw := query.Get("category_id"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		filter.CategoryID = &categoryID
	}

	products, total, err := h.catalogService.ListProducts(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to list products")
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Products:   products,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
		TotalPages: (total + pageSize - 1) / pageSize,
	})
}

// GetProduct handles GET /api/products/{id}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	product, err := h.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct handles POST /api/products
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.catalogService.CreateProduct(r.Context(), actor, req.toInput())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /api/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.catalogService.UpdateProduct(r.Context(), actor, id, req.toInput())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/{id}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "product")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteProduct(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportProducts handles POST /api/products/import. The CSV is either the
// multipart field "file" or the raw request body.
func (h *ProductHandler) ImportProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var src io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart upload")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.importService.ImportProducts(r.Context(), actor, src)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Product import failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

// ListCategories handles GET /api/categories
func (h *ProductHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalogService.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to list categories")
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// CreateCategory handles POST /api/categories
func (h *ProductHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	category, err := h.catalogService.CreateCategory(r.Context(), actor, req.Name, req.Description)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// DeleteCategory handles DELETE /api/categories/{id}
func (h *ProductHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := idParam(w, r, "category")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteCategory(r.Context(), actor, id); err != nil {
		respondWithServiceError(w, h.logger, err, "Failed to delete category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
