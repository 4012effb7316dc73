package transport

import (
	"context"
	"net/http"

	"velvet-pos/internal/middleware"
	"velvet-pos/internal/seed"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// DemoSeeder loads the sample store
type DemoSeeder interface {
	Seed(ctx context.Context, storeID string) (*seed.Result, error)
}

// DemoHandler exposes demo data loading. It is only registered in development.
type DemoHandler struct {
	seeder DemoSeeder
	logger *zap.Logger
}

// NewDemoHandler creates a new DemoHandler
func NewDemoHandler(seeder DemoSeeder, logger *zap.Logger) *DemoHandler {
	return &DemoHandler{seeder: seeder, logger: logger}
}

// RegisterRoutes registers POST /api/demo/initialize
func (h *DemoHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/demo/initialize", h.Initialize)
}

func (h *DemoHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	res, err := h.seeder.Seed(r.Context(), seed.DefaultStoreID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to initialize demo data")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Demo data initialized",
		"store_id":   seed.DefaultStoreID,
		"categories": res.Categories,
		"products":   res.Products,
		"customers":  res.Customers,
		"config":     res.Config,
	})
}
