package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Reason     string `json:"reason,omitempty"` // Machine-readable reason code for gate denials
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
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

// ---- Account Gate (GATE) ----

// ErrAccessDenied converts a gate denial into an error at a mutating entry point.
// The reason code (kyc_required, account_suspended, ...) is preserved so the UI
// collaborator can render an actionable message.
func ErrAccessDenied(reasonCode string, message string) *AppError {
	e := New("GATE_001", message, http.StatusForbidden)
	e.Reason = reasonCode
	return e
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New("LED_001", "Insufficient wallet balance", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("LED_002", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidTransactionType() *AppError {
	return New("LED_003", "Unknown transaction type", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_004", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Submissions (SUB) ----

func ErrConflictingState(message string) *AppError {
	return New("SUB_001", message, http.StatusConflict)
}

func ErrInvalidSubmissionKind() *AppError {
	return New("SUB_002", "Unknown submission kind", http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("AUTH_002", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Monitor webhooks (MON) ----

func ErrInvalidSignature() *AppError {
	return New("MON_001", "Invalid signature", http.StatusUnauthorized)
}

func ErrNonceUsed() *AppError {
	return New("MON_002", "Nonce has already been used", http.StatusForbidden)
}

// ---- Validation (VAL) ----

// Validation returns a malformed-input error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an infrastructure fault. The operation is retryable by the
// caller with the same idempotency reference.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}
