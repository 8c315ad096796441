package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	CodeInternal         = "INTERNAL_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeMalformedPayload = "MALFORMED_PAYLOAD"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeQuotaExceeded    = "QUOTA_EXCEEDED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	// CodeOptionalInfra marks a degraded optional dependency (queue, cache,
	// semantic scorer). It is logged and counted but never returned to a
	// caller of the ingest API.
	CodeOptionalInfra = "OPTIONAL_INFRA_UNAVAILABLE"
)

// AppError represents an application error with context
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	StatusCode int               `json:"-"`
	Err        error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithError wraps an underlying error
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Internal creates an internal server error
func Internal(message string) *AppError {
	return New(CodeInternal, message, http.StatusInternalServerError)
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// Validation creates a validation error
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// MalformedPayload creates a client payload error. Not retryable.
func MalformedPayload(message string) *AppError {
	return New(CodeMalformedPayload, message, http.StatusBadRequest)
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

// QuotaExceeded creates a daily quota error carrying the limit state the
// client needs to schedule a retry.
func QuotaExceeded(limit, current int64, resetTime string) *AppError {
	e := New(CodeQuotaExceeded, "daily trace quota exceeded", http.StatusTooManyRequests)
	e.WithDetail("limit", fmt.Sprintf("%d", limit))
	e.WithDetail("current", fmt.Sprintf("%d", current))
	e.WithDetail("resetTime", resetTime)
	return e
}

// StoreUnavailable marks a failed durable write. This is the one dependency
// failure that surfaces to the ingest caller.
func StoreUnavailable(err error) *AppError {
	return New(CodeStoreUnavailable, "trace store unavailable", http.StatusServiceUnavailable).WithError(err)
}

// OptionalInfra marks a degraded optional dependency for logging and metrics.
func OptionalInfra(dependency string, err error) *AppError {
	e := New(CodeOptionalInfra, fmt.Sprintf("%s unavailable", dependency), http.StatusServiceUnavailable)
	return e.WithError(err)
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// GetAppError extracts AppError from error if present
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsMalformedPayload checks if the error is a malformed payload error
func IsMalformedPayload(err error) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == CodeMalformedPayload
	}
	return false
}

// IsQuotaExceeded checks if the error is a quota error
func IsQuotaExceeded(err error) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == CodeQuotaExceeded
	}
	return false
}

// IsStoreUnavailable checks if the error is a store availability error
func IsStoreUnavailable(err error) bool {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Code == CodeStoreUnavailable
	}
	return false
}
