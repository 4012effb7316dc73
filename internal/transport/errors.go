package transport

import (
	"errors"
	"net/http"

	"velvet-pos/internal/domain"
	"velvet-pos/internal/ledger"
	"velvet-pos/internal/middleware"
	"velvet-pos/internal/repository"
	"velvet-pos/internal/service"

	"go.uber.org/zap"
)

// apiError is the HTTP form of a service error
type apiError struct {
	status  int
	code    string
	message string
	details map[string]interface{}
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrEmptyCart, http.StatusBadRequest, "EMPTY_TRANSACTION"},
	{service.ErrInvalidCart, http.StatusBadRequest, "INVALID_CART"},
	{service.ErrNegativeTotal, http.StatusUnprocessableEntity, "NEGATIVE_TOTAL"},
	{service.ErrProductInactive, http.StatusUnprocessableEntity, "PRODUCT_INACTIVE"},
	{service.ErrInvalidTaxRate, http.StatusInternalServerError, "INVALID_TAX_RATE"},
	{service.ErrStoreUnreachable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},
	{ledger.ErrConflict, http.StatusServiceUnavailable, "STORE_UNAVAILABLE"},

	{service.ErrInvalidProduct, http.StatusBadRequest, "INVALID_PRODUCT"},
	{service.ErrPhoneRequired, http.StatusBadRequest, "MISSING_PHONE"},
	{service.ErrInvalidConfig, http.StatusBadRequest, "INVALID_CONFIG"},
	{service.ErrInvalidRole, http.StatusBadRequest, "INVALID_ROLE"},
	{ledger.ErrInvalidPath, http.StatusBadRequest, "INVALID_ID"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{service.ErrTokenExpired, http.StatusUnauthorized, "TOKEN_EXPIRED"},
	{service.ErrInvalidToken, http.StatusUnauthorized, "INVALID_TOKEN"},
	{repository.ErrRefreshTokenNotFound, http.StatusUnauthorized, "INVALID_TOKEN"},
	{repository.ErrRefreshTokenRevoked, http.StatusUnauthorized, "INVALID_TOKEN"},
	{service.ErrInsufficientPermissions, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS"},

	{repository.ErrProductNotFound, http.StatusNotFound, "NOT_FOUND"},
	{repository.ErrTransactionNotFound, http.StatusNotFound, "NOT_FOUND"},
	{repository.ErrCustomerNotFound, http.StatusNotFound, "NOT_FOUND"},
	{repository.ErrCategoryNotFound, http.StatusNotFound, "NOT_FOUND"},
	{repository.ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},

	{repository.ErrProductAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{repository.ErrCustomerAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{repository.ErrCategoryAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
	{repository.ErrUserAlreadyExists, http.StatusConflict, "ALREADY_EXISTS"},
}

// toAPIError maps err to a status and code. Unknown errors become a 500
// carrying fallback as the message.
func toAPIError(err error, fallback string) apiError {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		return apiError{
			status:  http.StatusConflict,
			code:    "INSUFFICIENT_STOCK",
			message: stockErr.Error(),
			details: map[string]interface{}{
				"product_id": stockErr.ProductID,
				"name":       stockErr.Name,
				"available":  stockErr.Available,
				"requested":  stockErr.Requested,
			},
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			message := err.Error()
			if m.status >= http.StatusInternalServerError {
				message = m.target.Error()
			}
			return apiError{status: m.status, code: m.code, message: message}
		}
	}

	return apiError{status: http.StatusInternalServerError, code: "INTERNAL_ERROR", message: fallback}
}

// respondServiceError logs err and writes its structured error response
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	apiErr := toAPIError(err, fallback)

	if apiErr.status >= http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err), zap.String("code", apiErr.code))
	} else {
		logger.Debug(fallback, zap.Error(err), zap.String("code", apiErr.code))
	}

	middleware.RespondWithErrorCode(w, apiErr.status, apiErr.code, apiErr.message, apiErr.details)
}

// respondDecodeError answers a body that failed decoding or validation
func respondDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithErrorCode(w, http.StatusBadRequest, "INVALID_BODY", "invalid request body", nil)
}

// actorOrUnauthorized reads the authenticated actor set by the auth middleware
func actorOrUnauthorized(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		middleware.RespondWithErrorCode(w, http.StatusUnauthorized, "AUTH_REQUIRED", "unauthorized", nil)
	}
	return actor, ok
}
