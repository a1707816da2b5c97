// Package rest provides HTTP handlers for catalog operations.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/abgdnv/gocommerce-catalog/internal/service"
	"github.com/abgdnv/gocommerce-catalog/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Handler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *slog.Logger
	guard    func(http.Handler) http.Handler
}

// NewHandler creates a new instance of Handler. guard protects the write and admin routes; nil leaves them open.
func NewHandler(service service.ProductService, logger *slog.Logger, guard func(http.Handler) http.Handler) *Handler {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{
		service:  service,
		validate: newValidator(),
		logger:   logger.With("component", "rest"),
		guard:    guard,
	}
}

// RegisterRoutes registers the HTTP routes of the catalog.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", h.GetAllProducts)
		r.With(h.guard).Post("/", h.AddProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.With(h.guard).Put("/", h.UpdatePrice)
			r.With(h.guard).Delete("/", h.SoftDeleteProduct)
		})
	})
	r.With(h.guard).Get("/api/v1/admin/products", h.ListAllProducts)
	r.Get("/api/v1/cache/stats", h.CacheStats)

	r.Get("/healthz", h.HealthCheck)
}

// GetProductByID retrieves a visible product by its ID.
func (h *Handler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to find product by ID", "ID", id)
	found, err := h.service.GetProductByID(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, id, fmt.Sprintf("Failed to retrieve product with ID %s", id))
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, toDto(found))
}

// GetAllProducts returns one page of visible products.
func (h *Handler) GetAllProducts(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.parsePageSpec(w, r)
	if !ok {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to list products", "sort", spec.Sort, "offset", spec.Offset, "limit", spec.Limit)
	page, err := h.service.GetAllProducts(r.Context(), spec)
	if err != nil {
		h.respondServiceError(w, r, err, uuid.Nil, "Failed to fetch products")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, toPageDto(page, toDto))
}

// ListAllProducts returns one page of all products, soft-deleted ones included.
func (h *Handler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.parsePageSpec(w, r)
	if !ok {
		return
	}
	h.logger.InfoContext(r.Context(), "Audit listing requested", "subject", web.GetSubject(r.Context()))
	page, err := h.service.ListAllProducts(r.Context(), spec)
	if err != nil {
		h.respondServiceError(w, r, err, uuid.Nil, "Failed to fetch products")
		return
	}
	web.RespondJSON(w, h.logger, http.StatusOK, toPageDto(page, toAuditDto))
}

// AddProduct handles the creation of a new product.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var dto ProductCreateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	created, err := h.service.AddProduct(r.Context(), dto.Name, *dto.Price)
	if err != nil {
		h.respondServiceError(w, r, err, uuid.Nil, "Failed to create product")
		return
	}
	h.logger.InfoContext(r.Context(), "Product created successfully", "ID", created.ID, "Name", created.Name)
	web.RespondJSON(w, h.logger, http.StatusCreated, toDto(created))
}

// UpdatePrice changes the price of a product, optionally guarded by the caller's version.
func (h *Handler) UpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	var dto PriceUpdateDto
	if !h.decodeAndValidate(w, r, &dto) {
		return
	}
	h.logger.DebugContext(r.Context(), "Received request to update price", "ID", id, "version", dto.Version)
	updated, err := h.service.UpdatePrice(r.Context(), id, *dto.Price, dto.Version)
	if err != nil {
		h.respondServiceError(w, r, err, id, fmt.Sprintf("Failed to update product with ID %s", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Price updated successfully", "ID", updated.ID, "Version", updated.Version)
	web.RespondJSON(w, h.logger, http.StatusOK, toDto(updated))
}

// SoftDeleteProduct hides a product from the active catalog.
func (h *Handler) SoftDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := web.ParseID(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.service.SoftDeleteProduct(r.Context(), id); err != nil {
		h.respondServiceError(w, r, err, id, fmt.Sprintf("Failed to delete product with ID %s", id))
		return
	}
	h.logger.InfoContext(r.Context(), "Product deleted successfully", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// CacheStats reports product cache usage.
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	web.RespondJSON(w, h.logger, http.StatusOK, h.service.CacheStats())
}

// HealthCheck is a simple health check endpoint.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) parsePageSpec(w http.ResponseWriter, r *http.Request) (product.PageSpec, bool) {
	page, ok := web.QueryInt(r, w, h.logger, "page", 0, web.Gte(0))
	if !ok {
		return product.PageSpec{}, false
	}
	size, ok := web.QueryInt(r, w, h.logger, "size", 10, web.Between(1, product.MaxPageSize))
	if !ok {
		return product.PageSpec{}, false
	}
	spec, err := product.NewPageSpec(page, size,
		web.QueryString(r, "sortBy", string(product.SortByID)),
		web.QueryString(r, "direction", string(product.Asc)))
	if err != nil {
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
		return product.PageSpec{}, false
	}
	return spec, true
}

// decodeAndValidate reads a JSON body into dst and runs its validation tags, answering 400 on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.WarnContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			errorResponse := make(map[string]string)
			for _, fieldErr := range validationErrors {
				errorResponse[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
			}
			h.logger.WarnContext(r.Context(), "Validation errors occurred", "errors", errorResponse)
			web.RespondJSON(w, h.logger, http.StatusBadRequest, map[string]any{"validation_errors": errorResponse})
			return false
		}
		h.logger.ErrorContext(r.Context(), "Error validating request body", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respondServiceError maps service errors onto HTTP statuses.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, id uuid.UUID, message string) {
	switch {
	case errors.Is(err, perrors.ErrInvalidInput):
		h.logger.WarnContext(r.Context(), "Invalid input", "error", err)
		web.RespondError(w, h.logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, perrors.ErrProductNotFound):
		h.logger.WarnContext(r.Context(), "Product not found", "ID", id)
		web.RespondError(w, h.logger, http.StatusNotFound, fmt.Sprintf("Product with ID %s not found", id))
	case errors.Is(err, perrors.ErrVersionConflict):
		h.logger.WarnContext(r.Context(), "Version conflict", "ID", id, "error", err)
		web.RespondError(w, h.logger, http.StatusConflict, err.Error())
	case errors.Is(err, perrors.ErrStoreUnavailable):
		h.logger.ErrorContext(r.Context(), "Store unavailable", "error", err)
		web.RespondError(w, h.logger, http.StatusServiceUnavailable, "Catalog is temporarily unavailable")
	default:
		web.RespondInternalError(w, r, h.logger, message, err)
	}
}
