package transport

import (
	"net/http"

	"velvet-pos/internal/middleware"
	"velvet-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateCustomerRequest represents a new customer record
type CreateCustomerRequest struct {
	Name        string `json:"name" validate:"max=200"`
	Email       string `json:"email" validate:"omitempty,email"`
	Phone       string `json:"phone" validate:"required,max=32"`
	Points      int    `json:"points" validate:"gte=0"`
	LoyaltyTier string `json:"loyalty_tier" validate:"max=32"`
	Notes       string `json:"notes"`
}

// CustomerHandler handles HTTP requests for customers
type CustomerHandler struct {
	customerService service.CustomerService
	logger          *zap.Logger
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(customerService service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		logger:          logger,
	}
}

// RegisterRoutes registers the customer routes
func (h *CustomerHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/customers", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListCustomers)
		r.Post("/", h.CreateCustomer)
		r.Get("/{id}", h.GetCustomer)
	})
}

func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	customers, err := h.customerService.ListCustomers(r.Context(), actor.StoreID, r.URL.Query().Get("search"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list customers")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"customers": customers})
}

func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	customer, err := h.customerService.GetCustomer(r.Context(), actor.StoreID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get customer")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"customer": customer})
}

func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateCustomerRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	customer, err := h.customerService.CreateCustomer(r.Context(), actor.StoreID, service.NewCustomer{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Points:      req.Points,
		LoyaltyTier: req.LoyaltyTier,
		Notes:       req.Notes,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create customer")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success":  true,
		"customer": customer,
	})
}
