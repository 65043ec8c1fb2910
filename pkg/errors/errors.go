package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenInvalid = errors.New("invalid token")
)

// Inventory error types
var (
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrDuplicateOrderNumber   = errors.New("duplicate order number")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

func TokenInvalid() *AppError {
	return &AppError{
		Err:        ErrTokenInvalid,
		Code:       "TOKEN_INVALID",
		Message:    "invalid token",
		StatusCode: http.StatusUnauthorized,
	}
}

// Inventory error constructors

// InsufficientStock reports a withdrawal larger than the quantity on hand.
func InsufficientStock(onHand, requested string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: %s on hand, %s requested", onHand, requested),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"on_hand": onHand, "requested": requested},
	}
}

func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_STATUS_TRANSITION",
		Message:    fmt.Sprintf("cannot move order from %s to %s", from, to),
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"from": from, "to": to},
	}
}

// ConcurrentModification is returned once the bounded retry budget for an
// item update is exhausted. The whole call may be retried by the caller.
func ConcurrentModification(resource string) *AppError {
	return &AppError{
		Err:        ErrConcurrentModification,
		Code:       "CONCURRENT_MODIFICATION",
		Message:    fmt.Sprintf("%s was modified concurrently, retry the request", resource),
		StatusCode: http.StatusConflict,
	}
}

func DuplicateOrderNumber(orderNumber string) *AppError {
	return &AppError{
		Err:        ErrDuplicateOrderNumber,
		Code:       "DUPLICATE_ORDER_NUMBER",
		Message:    fmt.Sprintf("order number %s already taken", orderNumber),
		StatusCode: http.StatusConflict,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
