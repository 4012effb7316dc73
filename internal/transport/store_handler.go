package transport

import (
	"errors"
	"net/http"
	"strconv"

	"velvet-pos/internal/middleware"
	"velvet-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxAnalyticsDays bounds the ?days= window of the sales report
const maxAnalyticsDays = 366

// StoreHandler handles store settings and sales reporting
type StoreHandler struct {
	configService    service.StoreConfigService
	analyticsService service.AnalyticsService
	logger           *zap.Logger
}

// NewStoreHandler creates a new StoreHandler
func NewStoreHandler(configService service.StoreConfigService, analyticsService service.AnalyticsService, logger *zap.Logger) *StoreHandler {
	return &StoreHandler{
		configService:    configService,
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// RegisterRoutes registers the store config and analytics routes
func (h *StoreHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/store/config", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.GetConfig)
		r.With(adminOnly).Put("/", h.UpdateConfig)
	})

	r.With(authMiddleware).Get("/api/analytics/sales", h.SalesSummary)
}

func (h *StoreHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	cfg, err := h.configService.GetConfig(r.Context(), actor.StoreID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get store config")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"config": cfg})
}

// UpdateConfig merges the submitted settings into the store's config
func (h *StoreHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	fields, err := middleware.DecodeFields(r)
	if err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	cfg, err := h.configService.UpdateConfig(r.Context(), actor.StoreID, fields)
	if err != nil {
		// A rate rejected here came from the client, unlike one read back
		// from storage during a sale.
		if errors.Is(err, service.ErrInvalidTaxRate) {
			middleware.RespondWithErrorCode(w, http.StatusBadRequest, "INVALID_TAX_RATE", err.Error(), nil)
			return
		}
		respondServiceError(w, h.logger, err, "failed to update store config")
		return
	}

	h.logger.Info("Store config updated",
		zap.String("store_id", actor.StoreID),
		zap.String("user_id", actor.UserID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"config":  cfg,
	})
}

// SalesSummary reports the last ?days= days of sales
func (h *StoreHandler) SalesSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	days := service.DefaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxAnalyticsDays {
			middleware.RespondWithErrorCode(w, http.StatusBadRequest, "INVALID_QUERY", "days must be between 1 and 366", nil)
			return
		}
		days = n
	}

	report, err := h.analyticsService.SalesSummary(r.Context(), actor.StoreID, days)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to build sales summary")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, report)
}
