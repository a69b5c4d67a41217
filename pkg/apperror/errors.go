package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a classified error that maps to an HTTP response.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to clients
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code returns the code of the first AppError in err's chain, or "".
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Validation (VAL) ----

func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}

func ErrAmountBelowMinimum(min int64) *AppError {
	return New("VAL_001", fmt.Sprintf("Amount must be at least %d", min), http.StatusBadRequest)
}

func ErrUnsupportedCurrency(currency string) *AppError {
	return New("VAL_002", fmt.Sprintf("Currency %q is not supported", currency), http.StatusBadRequest)
}

func ErrCurrencyNotAccepted(currency string) *AppError {
	return New("VAL_003", fmt.Sprintf("Merchant does not accept %q", currency), http.StatusUnprocessableEntity)
}

func ErrInvalidExpiry() *AppError {
	return New("VAL_004", "Expiry is outside the allowed window", http.StatusBadRequest)
}

func ErrUnderpayment(expected, observed int64) *AppError {
	return New("VAL_005",
		fmt.Sprintf("Observed amount %d is below expected amount %d", observed, expected),
		http.StatusUnprocessableEntity)
}

func ErrMerchantInactive() *AppError {
	return New("VAL_006", "Merchant account is not active", http.StatusForbidden)
}

// ---- Payment lifecycle (PAY) ----

func ErrNotFound(entity string) *AppError {
	return New("PAY_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidTransition(from, to string) *AppError {
	return New("PAY_002", fmt.Sprintf("Payment cannot move from %s to %s", from, to), http.StatusConflict)
}

func ErrCannotCancel(status string) *AppError {
	return New("PAY_003", fmt.Sprintf("Payment in status %s cannot be cancelled", status), http.StatusConflict)
}

func ErrPaymentExpired() *AppError {
	return New("PAY_004", "Payment has expired", http.StatusGone)
}

func ErrSettlementInProgress() *AppError {
	return New("PAY_005", "Settlement is already in progress", http.StatusConflict)
}

func ErrIdempotencyInProgress() *AppError {
	return New("PAY_006", "A request with this Idempotency-Key is still in progress", http.StatusConflict)
}

// ---- Key material (KEY) ----

func ErrKeyMaterial(err error) *AppError {
	return Wrap("KEY_001", "Deposit key material failure", http.StatusInternalServerError, err)
}

// ---- Ledger (LDG) ----

func ErrLedgerUnavailable(err error) *AppError {
	return Wrap("LDG_001", "Ledger unavailable, outcome will be reconciled", http.StatusServiceUnavailable, err)
}

func ErrLedgerRejected(err error) *AppError {
	return Wrap("LDG_002", "Ledger rejected the operation", http.StatusUnprocessableEntity, err)
}

// ---- Webhooks (WHK) ----

func ErrWebhookEnqueue(err error) *AppError {
	return Wrap("WHK_001", "Webhook could not be enqueued", http.StatusServiceUnavailable, err)
}

// ---- Authentication (AUTH) ----

func ErrMissingMerchant() *AppError {
	return New("AUTH_001", "Merchant identity missing", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_005", "Caller is not allowed to perform this action", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
