package middleware

import (
	"net/http"
	"slices"

	"velvet-pos/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin lets through owners, admins and managers of the token's store.
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole(domain.AdminRoles, logger)
}

// RequireRole rejects requests whose authenticated actor holds none of
// allowedRoles. It must run after the auth middleware.
func RequireRole(allowedRoles []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				logger.Warn("No authenticated actor for role check", zap.String("path", r.URL.Path))
				forbid(w)
				return
			}

			if !slices.Contains(allowedRoles, actor.Role) {
				logger.Warn("Role not permitted",
					zap.String("store_id", actor.StoreID),
					zap.String("user_id", actor.UserID),
					zap.String("role", actor.Role),
					zap.String("path", r.URL.Path),
				)
				forbid(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func forbid(w http.ResponseWriter) {
	RespondWithErrorCode(w, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions", nil)
}
