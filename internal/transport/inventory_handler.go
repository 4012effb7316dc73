package transport

import (
	"net/http"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/middleware"
	"velvet-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateProductRequest represents a new inventory item
type CreateProductRequest struct {
	ID          string           `json:"id" validate:"omitempty,max=64"`
	Name        string           `json:"name" validate:"required,max=200"`
	SKU         string           `json:"sku" validate:"required,max=64"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Category    string           `json:"category" validate:"max=100"`
	Description string           `json:"description"`
	Stock       int              `json:"stock" validate:"gte=0"`
	ImageURL    string           `json:"image_url"`
	Barcode     string           `json:"barcode"`
}

// CreateCategoryRequest represents a new product category
type CreateCategoryRequest struct {
	ID        string `json:"id" validate:"omitempty,max=64"`
	Name      string `json:"name" validate:"required,max=100"`
	SortOrder int    `json:"sort_order"`
}

// InventoryHandler handles HTTP requests for products and categories
type InventoryHandler struct {
	inventoryService service.InventoryService
	logger           *zap.Logger
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(inventoryService service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// RegisterRoutes registers the inventory and category routes
func (h *InventoryHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/inventory", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(adminOnly)
			r.Post("/", h.CreateProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Delete("/{id}", h.DeleteProduct)
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListCategories)
		r.With(adminOnly).Post("/", h.CreateCategory)
	})
}

// ListProducts lists the store's products, optionally filtered by ?search=
func (h *InventoryHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	products, err := h.inventoryService.ListProducts(r.Context(), actor.StoreID, r.URL.Query().Get("search"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list inventory")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"inventory": products})
}

// GetProduct returns a single product
func (h *InventoryHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	product, err := h.inventoryService.GetProduct(r.Context(), actor.StoreID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"product": product})
}

// CreateProduct adds a product to the store's inventory
func (h *InventoryHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	product, err := h.inventoryService.CreateProduct(r.Context(), actor, service.NewProduct{
		ID:          req.ID,
		Name:        req.Name,
		SKU:         req.SKU,
		Price:       *req.Price,
		Category:    req.Category,
		Description: req.Description,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		Barcode:     req.Barcode,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("Product created",
		zap.String("store_id", actor.StoreID),
		zap.String("product_id", product.ID),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"product": product,
	})
}

// UpdateProduct merges the submitted fields into a product
func (h *InventoryHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	fields, err := middleware.DecodeFields(r)
	if err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	product, err := h.inventoryService.UpdateProduct(r.Context(), actor, chi.URLParam(r, "id"), fields)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"product": product,
	})
}

// DeleteProduct removes a product from the inventory
func (h *InventoryHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.inventoryService.DeleteProduct(r.Context(), actor, id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	h.logger.Info("Product deleted",
		zap.String("store_id", actor.StoreID),
		zap.String("product_id", id),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ListCategories lists the store's categories
func (h *InventoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	categories, err := h.inventoryService.ListCategories(r.Context(), actor.StoreID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// CreateCategory adds a category
func (h *InventoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	category, err := h.inventoryService.CreateCategory(r.Context(), actor.StoreID, &domain.Category{
		ID:        req.ID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create category")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"category": category,
	})
}
