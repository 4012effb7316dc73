package transport

import (
	"net/http"
	"strconv"
	"strings"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/middleware"
	"velvet-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyHeader carries the client's retry key for a sale
const IdempotencyHeader = "Idempotency-Key"

// SaleItemRequest is one cart line as sent by the register
type SaleItemRequest struct {
	ID       string           `json:"id" validate:"required"`
	Name     string           `json:"name"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity int              `json:"quantity" validate:"gt=0,lte=1000000"`
}

// SaleRequest represents a checkout
type SaleRequest struct {
	Items          []SaleItemRequest `json:"items" validate:"dive"`
	Discount       decimal.Decimal   `json:"discount"`
	PaymentMethod  string            `json:"payment_method" validate:"max=32"`
	CashAmount     decimal.Decimal   `json:"cash_amount"`
	CardAmount     decimal.Decimal   `json:"card_amount"`
	StaffName      string            `json:"staff_name"`
	CustomerID     string            `json:"customer_id"`
	Notes          string            `json:"notes"`
	IdempotencyKey string            `json:"idempotency_key" validate:"max=128"`
}

func (req *SaleRequest) toCart() *domain.Cart {
	items := make([]domain.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.LineItem{
			ProductID: item.ID,
			Name:      item.Name,
			UnitPrice: *item.Price,
			Quantity:  item.Quantity,
		})
	}

	return &domain.Cart{
		Items:          items,
		Discount:       req.Discount,
		PaymentMethod:  req.PaymentMethod,
		CashAmount:     req.CashAmount,
		CardAmount:     req.CardAmount,
		StaffName:      req.StaffName,
		CustomerID:     req.CustomerID,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
}

// SaleResponse is the committed transaction and the cash to hand back
type SaleResponse struct {
	Success     bool                `json:"success"`
	Transaction *domain.Transaction `json:"transaction"`
	ChangeDue   decimal.Decimal     `json:"change_due"`
	Replayed    bool                `json:"replayed,omitempty"`
}

// TransactionHandler handles HTTP requests for sales
type TransactionHandler struct {
	saleService service.SaleService
	logger      *zap.Logger
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(saleService service.SaleService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{
		saleService: saleService,
		logger:      logger,
	}
}

// RegisterRoutes registers the transaction routes
func (h *TransactionHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/transactions", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.ListTransactions)
		r.Post("/", h.CreateTransaction)
		r.Get("/{id}", h.GetTransaction)
	})
}

// CreateTransaction processes a sale. A replayed sale answers 200 with the
// original transaction instead of 201.
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req SaleRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	cart := req.toCart()
	if cart.IdempotencyKey == "" {
		cart.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	}

	result, err := h.saleService.ProcessSale(r.Context(), actor.StoreID, cart, actor)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to process sale")
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	middleware.RespondWithJSON(w, status, SaleResponse{
		Success:     true,
		Transaction: result.Transaction,
		ChangeDue:   result.ChangeDue,
		Replayed:    result.Replayed,
	})
}

// ListTransactions lists recent sales, newest first, up to ?limit=
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			middleware.RespondWithErrorCode(w, http.StatusBadRequest, "INVALID_QUERY", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}

	transactions, err := h.saleService.ListTransactions(r.Context(), actor.StoreID, limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list transactions")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"transactions": transactions})
}

// GetTransaction returns a single sale
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	tx, err := h.saleService.GetTransaction(r.Context(), actor.StoreID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get transaction")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"transaction": tx})
}
