package transport

import (
	"net/http"

	"velvet-pos/internal/logger"
	"velvet-pos/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Version is reported by the health endpoints
const Version = "1.0.0"

// HealthCheck reports the state of one backing resource. A "status" of
// "down" marks the service unhealthy.
type HealthCheck func() map[string]string

// HealthHandler answers liveness probes
type HealthHandler struct {
	env    string
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(env string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{env: env, checks: checks}
}

// RegisterRoutes registers /health and /api/health
func (h *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Get("/api/health", h.Health)
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	checks := make(map[string]map[string]string, len(h.checks))
	for name, check := range h.checks {
		result := check()
		if result["status"] == "down" {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		checks[name] = result
	}

	body := map[string]interface{}{
		"status":      status,
		"service":     logger.ServiceName + "-api",
		"version":     Version,
		"environment": h.env,
	}
	if len(checks) > 0 {
		body["checks"] = checks
	}

	middleware.RespondWithJSON(w, code, body)
}
