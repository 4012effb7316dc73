package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"velvet-pos/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	StoreIDKey  contextKey = "store_id"
)

// TokenValidator turns a bearer token into the claims it carries
type TokenValidator func(token string) (userID, storeID, role string, err error)

// ErrTokenExpired is returned by a TokenValidator for expired tokens
var ErrTokenExpired = errors.New("token expired")

// HMACValidator validates HS256 tokens signed with secret
func HMACValidator(secret string) TokenValidator {
	return func(tokenString string) (string, string, string, error) {
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return "", "", "", ErrTokenExpired
			}
			return "", "", "", err
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			return "", "", "", jwt.ErrTokenMalformed
		}

		userID, _ := claims["user_id"].(string)
		storeID, _ := claims["store_id"].(string)
		role, _ := claims["role"].(string)
		if userID == "" || storeID == "" || role == "" {
			return "", "", "", jwt.ErrTokenInvalidClaims
		}
		return userID, storeID, role, nil
	}
}

// AuthMiddleware validates JWT tokens and extracts user claims
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return AuthMiddlewareWith(HMACValidator(jwtSecret), logger)
}

// AuthMiddlewareWith authenticates requests with a custom validator
func AuthMiddlewareWith(validate TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithErrorCode(w, http.StatusUnauthorized, "AUTH_REQUIRED", "missing authorization header", nil)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithErrorCode(w, http.StatusUnauthorized, "AUTH_REQUIRED", "invalid authorization header format", nil)
				return
			}

			userID, storeID, role, err := validate(parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, ErrTokenExpired) {
					RespondWithErrorCode(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired", nil)
				} else {
					RespondWithErrorCode(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token", nil)
				}
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			ctx = context.WithValue(ctx, StoreIDKey, storeID)
			ctx = context.WithValue(ctx, UserRoleKey, role)

			logger.Debug("User authenticated",
				zap.String("user_id", userID),
				zap.String("store_id", storeID),
				zap.String("role", role),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from request context
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetUserRole extracts user role from request context
func GetUserRole(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(UserRoleKey).(string)
	return role, ok
}

// GetStoreID extracts the store the user belongs to from request context
func GetStoreID(ctx context.Context) (string, bool) {
	storeID, ok := ctx.Value(StoreIDKey).(string)
	return storeID, ok
}

// ActorFromContext returns the authenticated user as a domain.Actor
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	userID, ok1 := GetUserID(ctx)
	storeID, ok2 := GetStoreID(ctx)
	role, ok3 := GetUserRole(ctx)
	if !ok1 || !ok2 || !ok3 {
		return domain.Actor{}, false
	}
	return domain.Actor{UserID: userID, StoreID: storeID, Role: role}, true
}
