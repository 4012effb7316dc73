package transport

import (
	"errors"
	"net/http"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/middleware"
	"velvet-pos/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh and logout payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// CreateUserRequest represents a new staff account
type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=staff manager admin owner"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// VerifyResponse is the signed-in user together with their store settings
type VerifyResponse struct {
	User        *domain.User        `json:"user"`
	StoreConfig *domain.StoreConfig `json:"store_config"`
}

// AuthHandler handles HTTP requests for authentication and staff accounts
type AuthHandler struct {
	authService   service.AuthService
	configService service.StoreConfigService
	logger        *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, configService service.StoreConfigService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		configService: configService,
		logger:        logger,
	}
}

// TokenValidator adapts AuthService.ValidateToken for the auth middleware
func TokenValidator(authService service.AuthService) middleware.TokenValidator {
	return func(token string) (string, string, string, error) {
		claims, err := authService.ValidateToken(token)
		if err != nil {
			if errors.Is(err, service.ErrTokenExpired) {
				return "", "", "", middleware.ErrTokenExpired
			}
			return "", "", "", err
		}
		return claims.UserID, claims.StoreID, claims.Role, nil
	}
}

// RegisterRoutes registers the auth and staff routes
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		// Public routes
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/logout", h.Logout)
			r.Post("/verify", h.Verify)
			r.Get("/profile", h.GetProfile)

			r.With(adminOnly).Post("/users", h.CreateUser)
			r.With(adminOnly).Post("/create-user", h.CreateUser)
		})
	})

	r.With(authMiddleware, adminOnly).Get("/api/staff", h.ListStaff)
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	accessToken, refreshToken, user, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to login")
		return
	}

	h.logger.Info("User logged in",
		zap.String("user_id", user.ID),
		zap.String("store_id", user.StoreID),
	)
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// Logout revokes the given refresh token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	if err := h.authService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, h.logger, err, "failed to logout")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken mints a new access token from a refresh token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	accessToken, err := h.authService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to refresh token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}

// Verify returns the signed-in user and their store's settings
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(r.Context(), actor.StoreID, actor.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to verify user")
		return
	}

	cfg, err := h.configService.GetConfig(r.Context(), actor.StoreID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load store config")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, VerifyResponse{User: user, StoreConfig: cfg})
}

// GetProfile returns the signed-in user
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(r.Context(), actor.StoreID, actor.UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get user profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, user)
}

// CreateUser adds a staff account to the creator's store
func (h *AuthHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, h.logger, err)
		return
	}

	user, err := h.authService.CreateUser(r.Context(), actor, service.CreateUserInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create user")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// ListStaff lists the accounts of the caller's store
func (h *AuthHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOrUnauthorized(w, r)
	if !ok {
		return
	}

	staff, err := h.authService.ListStaff(r.Context(), actor.StoreID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list staff")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"staff": staff})
}
