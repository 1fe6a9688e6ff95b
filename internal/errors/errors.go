// Package errors provides custom error types for the DasWos API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Ledger errors.
var (
	ErrInvalidAmount       = &AppError{Code: "INVALID_AMOUNT", Message: "Amount must be greater than zero", StatusCode: http.StatusBadRequest}
	ErrInvalidKind         = &AppError{Code: "INVALID_KIND", Message: "Unsupported transaction kind", StatusCode: http.StatusBadRequest}
	ErrInsufficientBalance = &AppError{Code: "INSUFFICIENT_BALANCE", Message: "Insufficient coin balance", StatusCode: http.StatusBadRequest}
	ErrWalletNotFound      = &AppError{Code: "WALLET_NOT_FOUND", Message: "Wallet not found", StatusCode: http.StatusNotFound}
	ErrSettlementFailed    = &AppError{Code: "SETTLEMENT_FAILED", Message: "Payment settlement failed", StatusCode: http.StatusPaymentRequired}
)

// Recommendation errors.
var (
	ErrRecommendationNotFound  = &AppError{Code: "RECOMMENDATION_NOT_FOUND", Message: "Recommendation not found", StatusCode: http.StatusNotFound}
	ErrRecommendationTerminal  = &AppError{Code: "RECOMMENDATION_TERMINAL", Message: "Recommendation is already in a terminal state", StatusCode: http.StatusConflict}
	ErrRecommendationConflict  = &AppError{Code: "RECOMMENDATION_CONFLICT", Message: "Recommendation was updated concurrently", StatusCode: http.StatusConflict}
	ErrNoMatch                 = &AppError{Code: "NO_MATCH", Message: "No product matched the current preferences", StatusCode: http.StatusNotFound}
	ErrCatalogUnavailable      = &AppError{Code: "CATALOG_UNAVAILABLE", Message: "Product catalog is unavailable", StatusCode: http.StatusBadGateway}
	ErrInvalidStatusTransition = &AppError{Code: "INVALID_STATUS_TRANSITION", Message: "Invalid recommendation status transition", StatusCode: http.StatusBadRequest}
)

// AutoShop errors.
var (
	ErrAutoShopDisabled     = &AppError{Code: "AUTOSHOP_DISABLED", Message: "Autonomous shopping is disabled for this user", StatusCode: http.StatusBadRequest}
	ErrSessionAlreadyActive = &AppError{Code: "SESSION_ALREADY_ACTIVE", Message: "An autonomous shopping session is already active", StatusCode: http.StatusConflict}
	ErrSessionNotFound      = &AppError{Code: "SESSION_NOT_FOUND", Message: "No autonomous shopping session found", StatusCode: http.StatusNotFound}
	ErrInvalidDuration      = &AppError{Code: "INVALID_DURATION", Message: "Session duration must be greater than zero", StatusCode: http.StatusBadRequest}
)
